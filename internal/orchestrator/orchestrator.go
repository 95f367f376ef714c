// Package orchestrator drives query generation and analysis over the
// retry/rate-limit pipeline and owns every work-item state transition in
// the store. It is the single place where exhausted failures become safe,
// fully populated fallback records.
package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"queryscope/internal/gemini"
	"queryscope/internal/retry"
	"queryscope/internal/storage"
)

const (
	defaultBatchSize  = 5
	defaultBatchPause = 1500 * time.Millisecond

	// maxTopUps bounds the supplementary generation calls issued when the
	// first batch comes back short of the target.
	maxTopUps = 3
)

// TextGenerator is the model call the orchestrator drives. Satisfied by
// *gemini.Client; tests substitute mocks.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string, cfg gemini.GenerationConfig) (string, error)
}

// Config tunes batching and retries. Zero fields take defaults.
type Config struct {
	BatchSize  int
	BatchPause time.Duration
	Retry      retry.Config
}

// Orchestrator runs generation and analysis for projects.
type Orchestrator struct {
	store    *storage.Store
	model    TextGenerator
	invoker  *retry.Invoker
	retryCfg retry.Config

	batchSize  int
	batchPause time.Duration
	logger     *slog.Logger

	// pause is swapped out in tests to skip inter-batch sleeps.
	pause func(ctx context.Context, d time.Duration) error
}

// New creates an Orchestrator.
func New(store *storage.Store, model TextGenerator, invoker *retry.Invoker, cfg Config) *Orchestrator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.BatchPause <= 0 {
		cfg.BatchPause = defaultBatchPause
	}
	if cfg.Retry == (retry.Config{}) {
		cfg.Retry = retry.DefaultConfig()
	}
	return &Orchestrator{
		store:      store,
		model:      model,
		invoker:    invoker,
		retryCfg:   cfg.Retry,
		batchSize:  cfg.BatchSize,
		batchPause: cfg.BatchPause,
		logger:     slog.Default(),
		pause:      pauseCtx,
	}
}

func pauseCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
