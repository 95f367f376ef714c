// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full service configuration. Every field has an environment
// override; only the Gemini API key and the API token are required.
type Config struct {
	Port     int    `env:"QUERYSCOPE_PORT" envDefault:"4800"`
	APIToken string `env:"QUERYSCOPE_API_TOKEN,notEmpty"`
	DataDir  string `env:"QUERYSCOPE_DATA_DIR" envDefault:"./data"`
	LogLevel string `env:"QUERYSCOPE_LOG_LEVEL" envDefault:"info"`

	GeminiAPIKey  string `env:"QUERYSCOPE_GEMINI_API_KEY,notEmpty"`
	GeminiModel   string `env:"QUERYSCOPE_GEMINI_MODEL" envDefault:"gemini-2.0-flash"`
	GeminiBaseURL string `env:"QUERYSCOPE_GEMINI_BASE_URL" envDefault:""`

	RequestsPerMinute int `env:"QUERYSCOPE_RPM" envDefault:"15"`
	TokensPerMinute   int `env:"QUERYSCOPE_TPM" envDefault:"1000000"`
	RequestsPerDay    int `env:"QUERYSCOPE_RPD" envDefault:"1500"`

	BatchSize  int           `env:"QUERYSCOPE_BATCH_SIZE" envDefault:"5"`
	BatchPause time.Duration `env:"QUERYSCOPE_BATCH_PAUSE" envDefault:"1500ms"`
	MaxRetries int           `env:"QUERYSCOPE_MAX_RETRIES" envDefault:"3"`
}

// Load parses configuration from the environment.
func Load() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parsing environment: %w", err)
	}
	return c, nil
}
