package retry

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"queryscope/internal/ratelimit"
)

// Invoker runs model calls through the shared rate limiter with bounded
// retries. It is constructed once and shared by all call sites; per-call
// policy comes from the Config passed to Do.
type Invoker struct {
	limiter *ratelimit.Limiter
	logger  *slog.Logger
	rnd     *rand.Rand

	// sleep is swapped out in tests to observe backoff without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewInvoker creates an Invoker. limiter may be nil, in which case calls go
// out unthrottled (tests, one-off CLI use). logger may be nil.
func NewInvoker(limiter *ratelimit.Limiter, logger *slog.Logger) *Invoker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Invoker{
		limiter: limiter,
		logger:  logger,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:   sleepCtx,
	}
}

// Do runs call with up to cfg.MaxRetries+1 attempts. Each attempt is
// admitted through the rate limiter; on failure the error is classified,
// fatal classes propagate immediately, retryable classes wait out the
// computed backoff. The last error is always surfaced after exhaustion —
// fallback synthesis is the caller's job, not this layer's.
func Do[T any](ctx context.Context, inv *Invoker, cfg Config, op string, call func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		var result T
		var err error
		if inv.limiter != nil {
			err = inv.limiter.Do(ctx, func(cctx context.Context) error {
				r, cerr := call(cctx)
				if cerr != nil {
					return cerr
				}
				result = r
				return nil
			})
		} else {
			result, err = call(ctx)
		}
		if err == nil {
			if attempt > 0 {
				inv.logger.Info("call succeeded after retry", "op", op, "attempt", attempt+1)
			}
			return result, nil
		}

		lastErr = err
		class := Classify(err)

		if attempt == cfg.MaxRetries {
			break
		}
		if !Retryable(class) {
			inv.logger.Warn("fatal error class, not retrying",
				"op", op, "class", class, "error", truncateMsg(err))
			return zero, err
		}

		delay := Delay(cfg, attempt, class, inv.rnd)
		inv.logger.Warn("attempt failed, backing off",
			"op", op,
			"attempt", attempt+1,
			"total_attempts", cfg.MaxRetries+1,
			"class", class,
			"delay", delay,
			"error", truncateMsg(err))

		if err := inv.sleep(ctx, delay); err != nil {
			return zero, err
		}
	}

	return zero, fmt.Errorf("%s failed after %d attempts: %w", op, cfg.MaxRetries+1, lastErr)
}

// truncateMsg bounds logged error messages to 500 characters.
func truncateMsg(err error) string {
	msg := err.Error()
	if len(msg) > 500 {
		return msg[:500]
	}
	return msg
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
