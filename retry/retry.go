// Package retry repeats backend calls that fail transiently.
//
// An Executor runs an action up to MaxAttempts times. Failures classified as
// transient by loaderr.Classify are retried after an exponential delay of
// BaseDelay * 2^n capped at MaxDelay; any other failure is returned at once.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/zero-day-ai/bulkload/loaderr"
)

// Defaults used when an Executor field is left zero.
const (
	DefaultMaxAttempts = 7
	DefaultBaseDelay   = time.Second
	DefaultMaxDelay    = 300 * time.Second
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Executor applies the retry policy. The zero value uses the package defaults.
type Executor struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	// Sleep replaces the wall-clock wait, mostly for tests.
	Sleep SleepFunc

	// OnAttempt is called after every failed attempt with the attempt number
	// (1-based) and the error.
	OnAttempt func(op string, attempt int, err error)

	Logger *slog.Logger
}

// New returns an Executor with the default policy.
func New(logger *slog.Logger) *Executor {
	return &Executor{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
		Logger:      logger,
	}
}

// Delay returns the wait before the retry that follows failed attempt n (0-based).
func (e *Executor) Delay(n int) time.Duration {
	limit := e.maxDelay()
	d := e.baseDelay()
	for i := 0; i < n; i++ {
		d *= 2
		if d >= limit || d <= 0 {
			return limit
		}
	}
	if d > limit {
		return limit
	}
	return d
}

func (e *Executor) attempts() int {
	if e == nil || e.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return e.MaxAttempts
}

func (e *Executor) baseDelay() time.Duration {
	if e == nil || e.BaseDelay <= 0 {
		return DefaultBaseDelay
	}
	return e.BaseDelay
}

func (e *Executor) maxDelay() time.Duration {
	if e == nil || e.MaxDelay <= 0 {
		return DefaultMaxDelay
	}
	return e.MaxDelay
}

func (e *Executor) logger() *slog.Logger {
	if e == nil || e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

func (e *Executor) sleep(ctx context.Context, d time.Duration) error {
	if e != nil && e.Sleep != nil {
		return e.Sleep(ctx, d)
	}
	return Sleep(ctx, d)
}

// Sleep waits for d, returning ctx.Err() if ctx ends first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do runs action under the retry policy. See Execute.
func (e *Executor) Do(ctx context.Context, op string, action func(ctx context.Context) error) error {
	_, err := Execute(ctx, e, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, action(ctx)
	})
	return err
}

// Execute runs action until it succeeds, fails terminally, or MaxAttempts
// transient failures have been seen.
//
// A terminal failure is wrapped in a *loaderr.Error naming op, unless it
// already is one for op; the cause stays reachable with errors.As. When every
// attempt failed transiently the result is a RETRIES_EXHAUSTED *loaderr.Error
// wrapping the last failure. If ctx ends during a backoff wait the last
// failure is returned wrapped with CANCELLED.
func Execute[T any](ctx context.Context, e *Executor, op string, action func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	logger := e.logger().With("op", op)
	maxAttempts := e.attempts()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		v, err := action(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Debug("succeeded after retry", "attempt", attempt)
			}
			return v, nil
		}
		lastErr = err
		if e != nil && e.OnAttempt != nil {
			e.OnAttempt(op, attempt, err)
		}

		if !loaderr.IsTransient(err) {
			return zero, terminal(ctx, op, err)
		}
		if attempt == maxAttempts {
			break
		}

		delay := e.Delay(attempt - 1)
		logger.Warn("transient failure, retrying",
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"delay", delay,
			"error", err)
		if serr := e.sleep(ctx, delay); serr != nil {
			return zero, loaderr.New(op, loaderr.CodeCancelled, "cancelled while waiting to retry").
				WithCause(lastErr).
				WithDetails(map[string]any{"attempt": attempt})
		}
	}

	logger.Error("giving up", "attempts", maxAttempts, "error", lastErr)
	return zero, loaderr.New(op, loaderr.CodeRetriesExhausted, "every attempt failed transiently").
		WithCause(lastErr).
		WithDetails(map[string]any{"attempts": maxAttempts})
}

// terminal gives a failure that will not be retried the operation it came from.
func terminal(ctx context.Context, op string, err error) error {
	var le *loaderr.Error
	if errors.As(err, &le) && le.Op == op {
		return err
	}
	code := loaderr.CodeTerminalAPI
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		code = loaderr.CodeCancelled
	}
	return loaderr.New(op, code, "terminal failure").WithCause(err)
}
