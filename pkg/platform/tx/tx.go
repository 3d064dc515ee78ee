// Package tx runs store transactions under a bounded retry policy.
//
// Stores execute a single attempt and report conflicts as sentinel.ErrConflict
// (or sentinel.ErrUnavailable when nothing reached the store). The Runner
// retries those attempts with jittered backoff and gives up after MaxAttempts.
package tx

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	dErrors "eventreg/pkg/domain-errors"
	"eventreg/pkg/platform/sentinel"
)

const (
	defaultMaxAttempts = 5
	defaultBaseDelay   = 10 * time.Millisecond
	defaultMaxDelay    = 250 * time.Millisecond
	defaultTimeout     = 5 * time.Second
)

// Outcome labels passed to the attempt observer.
const (
	OutcomeCommitted = "committed"
	OutcomeConflict  = "conflict"
	OutcomeFailed    = "failed"
)

// ErrRetriesExhausted is returned when every attempt hit a retryable error.
var ErrRetriesExhausted = errors.New("transaction retries exhausted")

// Runner retries retryable transaction attempts.
type Runner struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	timeout     time.Duration
	observe     func(outcome string)
}

// Option configures a Runner.
type Option func(*Runner)

// WithMaxAttempts bounds the number of attempts. Values below 1 are ignored.
func WithMaxAttempts(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// WithBackoff sets the base and maximum delay between attempts.
func WithBackoff(base, max time.Duration) Option {
	return func(r *Runner) {
		r.baseDelay = base
		r.maxDelay = max
	}
}

// WithTimeout bounds each attempt when the caller context has no deadline.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithObserver receives one outcome per attempt.
func WithObserver(fn func(outcome string)) Option {
	return func(r *Runner) {
		r.observe = fn
	}
}

// NewRunner builds a Runner with defaults of 5 attempts and a 5s attempt timeout.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
		maxDelay:    defaultMaxDelay,
		timeout:     defaultTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// IsRetryable reports whether an attempt error may be retried without risk of
// applying the transaction twice.
func IsRetryable(err error) bool {
	return errors.Is(err, sentinel.ErrConflict) || errors.Is(err, sentinel.ErrUnavailable)
}

// Run calls fn until it succeeds, fails with a non-retryable error, or the
// attempt budget is spent.
func (r *Runner) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
		}

		err := r.attempt(ctx, fn)
		if err == nil {
			r.record(OutcomeCommitted)
			return nil
		}
		if !IsRetryable(err) {
			r.record(OutcomeFailed)
			return err
		}
		r.record(OutcomeConflict)
		lastErr = err

		if attempt < r.maxAttempts {
			if err := r.sleep(ctx, attempt); err != nil {
				return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
			}
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, r.maxAttempts, lastErr)
}

func (r *Runner) attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	return fn(ctx)
}

func (r *Runner) sleep(ctx context.Context, attempt int) error {
	delay := r.backoff(attempt)
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// backoff doubles the base delay per attempt, caps it, and picks a random
// point in [delay/2, delay] so competing writers spread out.
func (r *Runner) backoff(attempt int) time.Duration {
	if r.baseDelay <= 0 {
		return 0
	}
	delay := r.baseDelay << (attempt - 1)
	if delay > r.maxDelay || delay <= 0 {
		delay = r.maxDelay
	}
	half := delay / 2
	return half + rand.N(half+1)
}

func (r *Runner) record(outcome string) {
	if r.observe != nil {
		r.observe(outcome)
	}
}
