package listener

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gaborage/go-restclient/config"
	"github.com/gaborage/go-restclient/httpclient"
	"github.com/gaborage/go-restclient/logger"
	"github.com/gaborage/go-restclient/retryhelper"
	"github.com/gaborage/go-restclient/trace"
)

// Option configures a RetryHelper.
type Option = retryhelper.Option

var (
	WithLogger      = retryhelper.WithLogger
	WithRateLimiter = retryhelper.WithRateLimiter
	WithTracking    = retryhelper.WithTracking
	WithSleep       = retryhelper.WithSleep
)

// ClientCreator builds and starts the client a helper owns.
type ClientCreator interface {
	CreateAndStart() (*Client, error)
}

// ClientCreatorFunc adapts a function to ClientCreator.
type ClientCreatorFunc func() (*Client, error)

func (f ClientCreatorFunc) CreateAndStart() (*Client, error) { return f() }

// RetryHelper runs exchanges on one started Client with retries.
type RetryHelper struct {
	core            *retryhelper.Core
	client          *Client
	ownership       retryhelper.Ownership
	responseTimeout time.Duration
}

// New creates a helper that owns the client made by creator.
func New(settings retryhelper.Settings, creator ClientCreator, opts ...Option) (*RetryHelper, error) {
	core, err := retryhelper.NewCore(Family, settings, opts...)
	if err != nil {
		return nil, err
	}
	client, err := creator.CreateAndStart()
	if err != nil {
		return nil, fmt.Errorf("listener: create client: %w", err)
	}
	if client == nil {
		return nil, errors.New("listener: client creator returned no client")
	}
	return &RetryHelper{
		core:            core,
		client:          client,
		ownership:       retryhelper.Owned,
		responseTimeout: DefaultResponseTimeout,
	}, nil
}

// NewWithReadyMadeClient creates a helper around a started client the caller keeps owning.
func NewWithReadyMadeClient(settings retryhelper.Settings, client *Client, opts ...Option) (*RetryHelper, error) {
	if client == nil {
		return nil, errors.New("listener: client is required")
	}
	core, err := retryhelper.NewCore(Family, settings, opts...)
	if err != nil {
		return nil, err
	}
	return &RetryHelper{
		core:            core,
		client:          client,
		ownership:       retryhelper.Borrowed,
		responseTimeout: DefaultResponseTimeout,
	}, nil
}

// NewFromConfig creates a helper owning a started client built from cfg.
func NewFromConfig(cfg *config.Config, log logger.Logger, opts ...Option) (*RetryHelper, error) {
	creator := ClientCreatorFunc(func() (*Client, error) {
		httpClient := httpclient.NewBuilderFromConfig(cfg.Client, log).
			WithRequestIDHeader(trace.HeaderXRequestID).
			Build()
		client := NewClient(httpClient,
			WithMaxConnections(cfg.Client.MaxConnections),
			WithClientLogger(log),
		)
		if err := client.Start(); err != nil {
			return nil, err
		}
		return client, nil
	})
	opts = append([]Option{WithLogger(log)}, opts...)
	h, err := New(retryhelper.SettingsFromConfig(cfg.Retry), creator, opts...)
	if err != nil {
		return nil, err
	}
	h.responseTimeout = cfg.Client.ResponseTimeout
	return h, nil
}

// Client returns the client exchanges are sent with.
func (h *RetryHelper) Client() *Client { return h.client }

// Ownership reports whether Close shuts the client down.
func (h *RetryHelper) Ownership() retryhelper.Ownership { return h.ownership }

// Settings returns the retry policy.
func (h *RetryHelper) Settings() retryhelper.Settings { return h.core.Settings() }

// ResponseTimeout is the header wait configured for readers built from this helper's
// configuration.
func (h *RetryHelper) ResponseTimeout() time.Duration { return h.responseTimeout }

// Close shuts an owned client down: Stop when started, then Destroy even if Stop
// failed. The Stop error is returned. Borrowed clients are untouched.
func (h *RetryHelper) Close() error {
	if h.ownership != retryhelper.Owned {
		return nil
	}
	var stopErr error
	if h.client.IsStarted() {
		stopErr = h.client.Stop()
	}
	h.client.Destroy()
	return stopErr
}

// RequestWithRetry runs requester's exchange until it yields a 2xx response, which
// reader turns into T. Each attempt gets a fresh listener from reader. Non-2xx
// responses fail the attempt with a *ResponseError. When retries end the error is
// a *retry.GiveupError wrapping the last failure, or a *retry.InterruptedError when
// ctx ended during a wait.
func RequestWithRetry[T any](ctx context.Context, h *RetryHelper, reader ResponseReader[T], requester SingleRequester) (T, error) {
	return retryhelper.Run[T](ctx, h.core, func(ctx context.Context) (T, int, error) {
		return attempt(ctx, h.client, reader, requester)
	}, func(err error) bool {
		return ToRetry(requester, err)
	})
}

func attempt[T any](ctx context.Context, client *Client, reader ResponseReader[T], requester SingleRequester) (T, int, error) {
	var zero T
	l := reader.Listener()
	if err := requester.RequestOnce(ctx, client, l); err != nil {
		return zero, 0, err
	}

	resp, err := reader.Response(ctx)
	if err != nil {
		return zero, 0, err
	}

	if !httpclient.IsSuccessStatus(resp.StatusCode) {
		body, bodyErr := reader.ReadResponseContentInString()
		return zero, resp.StatusCode, retryhelper.NewResponseError(resp.StatusCode, resp.Reason, body, bodyErr, resp)
	}

	result, err := reader.ReadResponseContent()
	return result, resp.StatusCode, err
}
