package retryhelper

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/gaborage/go-restclient/logger"
	"github.com/gaborage/go-restclient/retry"
	"github.com/gaborage/go-restclient/retryhelper/internal/tracking"
	"github.com/gaborage/go-restclient/trace"
)

// stackEvery is how often a retry warning carries the full error and its stack.
const stackEvery = 3

// Option configures a helper of either family.
type Option func(*options)

type options struct {
	logger   logger.Logger
	limiter  *rate.Limiter
	tracking bool
	sleep    retry.SleepFunc
}

// WithLogger sets the sink for retry warnings. The default discards them.
func WithLogger(log logger.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.logger = log
		}
	}
}

// WithRateLimiter makes every attempt wait for a token from limiter.
func WithRateLimiter(limiter *rate.Limiter) Option {
	return func(o *options) {
		o.limiter = limiter
	}
}

// WithTracking toggles the OpenTelemetry span and metrics. Enabled by default.
func WithTracking(enabled bool) Option {
	return func(o *options) {
		o.tracking = enabled
	}
}

// WithSleep replaces the wait between attempts. Tests use it to avoid real waits.
func WithSleep(sleep retry.SleepFunc) Option {
	return func(o *options) {
		o.sleep = sleep
	}
}

// Core is the family-independent part of a retry helper.
type Core struct {
	family   string
	settings Settings
	executor *retry.Executor
	logger   logger.Logger
	tracking bool
}

// NewCore validates settings and applies opts. family names the helper family in
// logs and telemetry.
func NewCore(family string, settings Settings, opts ...Option) (*Core, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	o := &options{logger: logger.Nop(), tracking: true}
	for _, opt := range opts {
		opt(o)
	}
	return &Core{
		family:   family,
		settings: settings,
		executor: settings.executor(o),
		logger:   o.logger,
		tracking: o.tracking,
	}, nil
}

// Settings returns the retry policy.
func (c *Core) Settings() Settings { return c.settings }

// Logger returns the configured logger.
func (c *Core) Logger() logger.Logger { return c.logger }

// Family returns the helper family name.
func (c *Core) Family() string { return c.family }

// Attempt performs one try. status is the HTTP status received, or 0 when the
// attempt failed before a response arrived.
type Attempt[T any] func(ctx context.Context) (result T, status int, err error)

// Run drives attempt through the retry executor. toRetry classifies failed attempts.
// Every attempt shares one request ID and sees its 1-based attempt number in ctx.
func Run[T any](ctx context.Context, c *Core, attempt Attempt[T], toRetry func(error) bool) (result T, err error) {
	ctx, _ = trace.EnsureRequestID(ctx)

	var call *tracking.Call
	if c.tracking {
		ctx, call = tracking.Start(ctx, c.family)
		defer func() { call.End(ctx, err) }()
	}

	attempts := 0
	return retry.Run[T](ctx, c.executor, retry.Funcs[T]{
		Do: func(ctx context.Context) (T, error) {
			attempts++
			result, status, err := attempt(trace.WithAttempt(ctx, attempts))
			call.Attempt(ctx, status, err)
			return result, err
		},
		Retryable: toRetry,
		Retry: func(err error, retryCount, retryLimit int, retryWait time.Duration) {
			LogRetry(c.logger, err, retryCount, retryLimit, retryWait)
		},
		Giveup: func(first, last error) {
			c.logger.Debug().
				Str("family", c.family).
				Int("attempts", attempts).
				Str("first_error", first.Error()).
				Msg("Giving up retries")
		},
	})
}

// LogRetry emits the warning for one retry. Every third retry also carries the error
// and its stack rendering.
func LogRetry(log logger.Logger, err error, retryCount, retryLimit int, retryWait time.Duration) {
	message := fmt.Sprintf("Retrying %d/%d after %d seconds. Message: %s",
		retryCount, retryLimit, int64(retryWait/time.Second), err.Error())

	event := log.Warn()
	if retryCount%stackEvery == 0 {
		event = event.Err(err).Str("stack", Diagnose(err))
	}
	event.Msg(message)
}
