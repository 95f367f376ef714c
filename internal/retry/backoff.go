package retry

import (
	"math"
	"math/rand"
	"time"
)

// rateLimitFloor is the minimum delay after a rate-limit failure. The
// upstream quota is per-minute, so anything shorter just burns an attempt.
const rateLimitFloor = 60 * time.Second

// Config bounds the attempt loop. Zero values are not usable; start from
// DefaultConfig and override per call site.
type Config struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultConfig is the orchestrator's standard retry policy.
func DefaultConfig() Config {
	return Config{
		MaxRetries:   3,
		InitialDelay: 2 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2,
	}
}

// Delay computes the backoff before the next attempt: exponential growth
// from InitialDelay capped at MaxDelay, with ±25% uniform jitter. Rate-limit
// failures are floored at rateLimitFloor regardless of attempt number.
// rnd must not be nil; tests inject a seeded source for determinism.
func Delay(cfg Config, attempt int, class ErrorClass, rnd *rand.Rand) time.Duration {
	base := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt))
	if base > float64(cfg.MaxDelay) {
		base = float64(cfg.MaxDelay)
	}

	// jitter in [-0.25, +0.25) of base
	jitter := (rnd.Float64()*0.5 - 0.25) * base
	d := time.Duration(base + jitter)

	if class == ClassRateLimit && d < rateLimitFloor {
		d = rateLimitFloor
	}
	if d < 0 {
		d = 0
	}
	return d
}
