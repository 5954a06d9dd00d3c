// Package retry repeats an operation that fails with transient errors, such
// as connecting to a database that is still starting up.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/ridge/quarry/tlog"
	"go.uber.org/zap"
)

// Backoff describes the delays between attempts: the first retry waits Min,
// every next one waits Scale times longer, up to Max. At most MaxAttempts
// attempts are made (0 = until the context is closed).
type Backoff struct {
	Min         time.Duration
	Max         time.Duration
	Scale       float64
	MaxAttempts int
}

// DefaultBackoff is a suggested configuration for connecting to services
var DefaultBackoff = Backoff{
	Min:         50 * time.Millisecond,
	Max:         5 * time.Second,
	Scale:       2.0,
	MaxAttempts: 20,
}

// delays returns the delay before each retry; ok is false when no more
// attempts should be made
func (b Backoff) delays() func() (time.Duration, bool) {
	attempts := 1
	next := b.Min
	return func() (time.Duration, bool) {
		if b.MaxAttempts != 0 && attempts >= b.MaxAttempts {
			return 0, false
		}
		attempts++
		delay := next
		next = time.Duration(float64(next) * b.Scale)
		if next > b.Max {
			next = b.Max
		}
		return delay, true
	}
}

type retriableError struct {
	err error
}

func (r retriableError) Error() string {
	return r.err.Error()
}

func (r retriableError) Unwrap() error {
	return r.err
}

// Retriable wraps an error to tell Do that it should keep trying.
// Returns nil if err is nil.
func Retriable(err error) error {
	if err == nil {
		return nil
	}
	return retriableError{err: err}
}

// Do calls f until it returns nil or an error not wrapped with Retriable, the
// attempts run out or the context is closed. Returns the last error of f
// (unwrapped) or the context error.
//
// A retriable error is logged unless its message is exactly the same as the
// previous one.
func Do(ctx context.Context, b Backoff, f func(ctx context.Context) error) error {
	startedAt := time.Now()
	delays := b.delays()
	var lastMessage string
	for attempt := 1; ; attempt++ {
		logger := tlog.Get(ctx).With(zap.Int("attempt", attempt))

		var r retriableError
		err := f(ctx)
		if !errors.As(err, &r) {
			if attempt > 1 {
				logger.Debug("Retry finished", zap.Error(err), zap.Duration("duration", time.Since(startedAt)))
			}
			return err
		}

		delay, ok := delays()
		if !ok {
			logger.Debug("Retry failed after maximum number of attempts", zap.Error(r.err), zap.Duration("duration", time.Since(startedAt)))
			return r.err
		}
		if message := r.err.Error(); message != lastMessage {
			logger.Debug("Will retry", zap.Error(r.err), zap.Duration("delay", delay))
			lastMessage = message
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// Do1 is a single return value version of Do
func Do1[T any](ctx context.Context, b Backoff, f func(ctx context.Context) (T, error)) (T, error) {
	var t T
	err := Do(ctx, b, func(ctx context.Context) error {
		var err error
		t, err = f(ctx)
		return err
	})
	return t, err
}
