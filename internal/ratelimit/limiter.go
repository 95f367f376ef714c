// Package ratelimit provides a cooperative, process-wide throttle for
// outbound model calls. Admission is strictly FIFO across all callers: a
// single loop drains the queue, executing one call at a time against a
// sliding 60-second window of recorded start times.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

const (
	window       = time.Minute
	windowMargin = 100 * time.Millisecond
	requestGap   = 200 * time.Millisecond
)

// Policy is the upstream quota. Only RequestsPerMinute gates admission;
// the token and daily quotas are carried for diagnostics.
type Policy struct {
	RequestsPerMinute int
	TokensPerMinute   int
	RequestsPerDay    int
}

// DefaultPolicy matches the Gemini free-tier quota.
func DefaultPolicy() Policy {
	return Policy{
		RequestsPerMinute: 15,
		TokensPerMinute:   1_000_000,
		RequestsPerDay:    1500,
	}
}

// Status is a read-only snapshot for diagnostics.
type Status struct {
	QueueLength          int `json:"queue_length"`
	RequestsInLastMinute int `json:"requests_in_last_minute"`
	RequestsPerMinute    int `json:"requests_per_minute"`
}

type waiter struct {
	ctx context.Context
	fn  func(context.Context) error

	// admitted is closed the moment the run loop commits a window slot to
	// this waiter; after that the call's outcome is authoritative.
	admitted chan struct{}
	done     chan error
}

// Limiter serializes calls through a sliding-window request budget. It is
// constructed once at process start and injected everywhere a model call is
// made; there is deliberately no package-level instance.
type Limiter struct {
	policy Policy

	mu         sync.Mutex
	queue      []*waiter
	starts     []time.Time
	processing bool

	// now and sleep are swapped for a manual clock in tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Limiter for the given policy. A non-positive
// RequestsPerMinute is clamped to 1.
func New(policy Policy) *Limiter {
	if policy.RequestsPerMinute <= 0 {
		policy.RequestsPerMinute = 1
	}
	return &Limiter{
		policy: policy,
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

// Do enqueues fn and blocks until it has been admitted and executed. ctx
// cancellation only rejects the call while it is still queued: once a window
// slot has been committed the call's own result is returned, so a caller
// never sees a cancellation for a request that actually went out. fn's error
// (or nil) is returned as-is; a failing call does not stall the admission
// loop.
func (l *Limiter) Do(ctx context.Context, fn func(context.Context) error) error {
	w := &waiter{ctx: ctx, fn: fn, admitted: make(chan struct{}), done: make(chan error, 1)}

	l.mu.Lock()
	l.queue = append(l.queue, w)
	start := !l.processing
	if start {
		l.processing = true
	}
	l.mu.Unlock()

	if start {
		go l.run()
	}

	select {
	case err := <-w.done:
		return err
	case <-ctx.Done():
	}

	select {
	case <-w.admitted:
		// Admitted before the cancellation won the race; the slot is spent,
		// so surface what the call actually did.
		return <-w.done
	default:
		// Still queued; run() will notice the dead context and skip it.
		return ctx.Err()
	}
}

// Status returns a snapshot of the queue and window.
func (l *Limiter) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pruneLocked(l.now())
	return Status{
		QueueLength:          len(l.queue),
		RequestsInLastMinute: len(l.starts),
		RequestsPerMinute:    l.policy.RequestsPerMinute,
	}
}

// run is the single admission loop. Only one instance executes at a time,
// guarded by the processing flag; concurrent Do calls queue rather than
// race.
func (l *Limiter) run() {
	for {
		now := l.now()

		l.mu.Lock()
		l.pruneLocked(now)

		if len(l.queue) == 0 {
			l.processing = false
			l.mu.Unlock()
			return
		}

		if len(l.starts) >= l.policy.RequestsPerMinute {
			wait := l.starts[0].Add(window).Sub(now) + windowMargin
			l.mu.Unlock()
			if wait > 0 {
				l.sleep(context.Background(), wait)
			}
			continue
		}

		w := l.queue[0]
		l.queue = l.queue[1:]
		if w.ctx.Err() != nil {
			l.mu.Unlock()
			w.done <- w.ctx.Err()
			continue
		}
		l.starts = append(l.starts, now)
		l.mu.Unlock()

		close(w.admitted)
		w.done <- w.fn(w.ctx)

		l.mu.Lock()
		pending := len(l.queue) > 0
		l.mu.Unlock()
		if pending {
			l.sleep(context.Background(), requestGap)
		}
	}
}

// pruneLocked drops start timestamps older than the window. Caller holds mu.
func (l *Limiter) pruneLocked(now time.Time) {
	cutoff := now.Add(-window)
	i := 0
	for i < len(l.starts) && !l.starts[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.starts = append(l.starts[:0], l.starts[i:]...)
	}
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
