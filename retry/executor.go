// Package retry runs a unit of work until it succeeds, fails with an error its
// classifier rejects, or exhausts its retry budget.
//
// The wait before the first retry is the initial retry wait. Each following wait
// doubles, capped at the max retry wait. A retry limit of 0 means the work runs
// exactly once. Waits honour the context: cancellation while waiting yields an
// *InterruptedError, while exhausting the budget yields a *GiveupError.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

const (
	DefaultRetryLimit       = 3
	DefaultInitialRetryWait = 500 * time.Millisecond
	DefaultMaxRetryWait     = 30 * time.Minute
)

// SleepFunc blocks for d or until ctx is done, returning ctx.Err() in the latter case.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Executor holds an immutable retry policy. It is safe for concurrent use; each
// run gets its own backoff state.
type Executor struct {
	retryLimit    int
	initialWait   time.Duration
	maxWait       time.Duration
	randomization float64
	limiter       *rate.Limiter
	sleep         SleepFunc
}

// Builder configures an Executor.
type Builder struct {
	executor Executor
}

// New starts a builder with the default policy.
func New() *Builder {
	return &Builder{executor: Executor{
		retryLimit:  DefaultRetryLimit,
		initialWait: DefaultInitialRetryWait,
		maxWait:     DefaultMaxRetryWait,
		sleep:       sleepContext,
	}}
}

// WithRetryLimit sets how many retries follow the first attempt. Negative values mean 0.
func (b *Builder) WithRetryLimit(limit int) *Builder {
	b.executor.retryLimit = max(limit, 0)
	return b
}

// WithInitialRetryWait sets the wait before the first retry.
func (b *Builder) WithInitialRetryWait(d time.Duration) *Builder {
	b.executor.initialWait = d
	return b
}

// WithMaxRetryWait caps the wait between attempts.
func (b *Builder) WithMaxRetryWait(d time.Duration) *Builder {
	b.executor.maxWait = d
	return b
}

// WithRandomizationFactor spreads each wait over [wait*(1-f), wait*(1+f)].
// Zero, the default, keeps the schedule deterministic.
func (b *Builder) WithRandomizationFactor(f float64) *Builder {
	b.executor.randomization = f
	return b
}

// WithRateLimiter makes every attempt, including the first, wait for a limiter token.
func (b *Builder) WithRateLimiter(limiter *rate.Limiter) *Builder {
	b.executor.limiter = limiter
	return b
}

// WithSleep replaces the wait implementation. Tests use it to record the schedule.
func (b *Builder) WithSleep(sleep SleepFunc) *Builder {
	if sleep != nil {
		b.executor.sleep = sleep
	}
	return b
}

// Build returns the configured executor. Non-positive waits fall back to the
// defaults and a max wait below the initial wait is raised to it.
func (b *Builder) Build() *Executor {
	e := b.executor
	if e.initialWait <= 0 {
		e.initialWait = DefaultInitialRetryWait
	}
	if e.maxWait <= 0 {
		e.maxWait = DefaultMaxRetryWait
	}
	if e.maxWait < e.initialWait {
		e.maxWait = e.initialWait
	}
	if e.randomization < 0 || e.randomization >= 1 {
		e.randomization = 0
	}
	return &e
}

// RetryLimit returns the number of retries allowed after the first attempt.
func (e *Executor) RetryLimit() int { return e.retryLimit }

// InitialRetryWait returns the wait before the first retry.
func (e *Executor) InitialRetryWait() time.Duration { return e.initialWait }

// MaxRetryWait returns the cap on the wait between attempts.
func (e *Executor) MaxRetryWait() time.Duration { return e.maxWait }

func (e *Executor) newBackOff() *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     e.initialWait,
		RandomizationFactor: e.randomization,
		Multiplier:          2,
		MaxInterval:         e.maxWait,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	b.Reset()
	return b
}

// Run drives op with the executor's policy and returns the first successful result.
func Run[T any](ctx context.Context, e *Executor, op Retryable[T]) (T, error) {
	var zero T
	schedule := e.newBackOff()

	var first error
	retryCount := 0
	for {
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return zero, &InterruptedError{Err: ctxErr, Attempts: retryCount}
				}
				return zero, err
			}
		}

		result, err := op.Call(ctx)
		if err == nil {
			return result, nil
		}
		if first == nil {
			first = err
		}

		if !op.IsRetryableError(err) || retryCount >= e.retryLimit {
			op.OnGiveup(first, err)
			return zero, &GiveupError{First: first, Last: err, Attempts: retryCount + 1}
		}

		retryCount++
		wait := schedule.NextBackOff()
		op.OnRetry(err, retryCount, e.retryLimit, wait)

		if err := e.sleep(ctx, wait); err != nil {
			return zero, &InterruptedError{Err: err, Attempts: retryCount}
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsGiveup reports whether err is a *GiveupError.
func IsGiveup(err error) bool {
	var giveup *GiveupError
	return errors.As(err, &giveup)
}

// IsInterrupted reports whether err is an *InterruptedError.
func IsInterrupted(err error) bool {
	var interrupted *InterruptedError
	return errors.As(err, &interrupted)
}
