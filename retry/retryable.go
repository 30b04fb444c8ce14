package retry

import (
	"context"
	"time"
)

// Retryable is one unit of work driven by an Executor.
type Retryable[T any] interface {
	// Call performs a single attempt.
	Call(ctx context.Context) (T, error)
	// IsRetryableError decides whether a failed attempt may be retried.
	IsRetryableError(err error) bool
	// OnRetry is invoked before waiting for the next attempt. retryCount starts at 1.
	OnRetry(err error, retryCount, retryLimit int, retryWait time.Duration)
	// OnGiveup is invoked once when the executor stops retrying.
	OnGiveup(first, last error)
}

// Funcs adapts plain functions to Retryable. A nil Retryable classifies every
// error as retryable; nil hooks are skipped.
type Funcs[T any] struct {
	Do        func(ctx context.Context) (T, error)
	Retryable func(err error) bool
	Retry     func(err error, retryCount, retryLimit int, retryWait time.Duration)
	Giveup    func(first, last error)
}

func (f Funcs[T]) Call(ctx context.Context) (T, error) { return f.Do(ctx) }

func (f Funcs[T]) IsRetryableError(err error) bool {
	if f.Retryable == nil {
		return true
	}
	return f.Retryable(err)
}

func (f Funcs[T]) OnRetry(err error, retryCount, retryLimit int, retryWait time.Duration) {
	if f.Retry != nil {
		f.Retry(err, retryCount, retryLimit, retryWait)
	}
}

func (f Funcs[T]) OnGiveup(first, last error) {
	if f.Giveup != nil {
		f.Giveup(first, last)
	}
}
