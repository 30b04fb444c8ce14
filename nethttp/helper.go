package nethttp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

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

// ClientCreator builds the client a helper owns.
type ClientCreator interface {
	CreateAndStart() (*http.Client, error)
}

// ClientCreatorFunc adapts a function to ClientCreator.
type ClientCreatorFunc func() (*http.Client, error)

func (f ClientCreatorFunc) CreateAndStart() (*http.Client, error) { return f() }

// RetryHelper runs requests against one *http.Client with retries. It is safe for
// concurrent use when the requesters and readers passed to it are.
type RetryHelper struct {
	core      *retryhelper.Core
	client    *http.Client
	ownership retryhelper.Ownership
}

// New creates a helper that owns the client made by creator.
func New(settings retryhelper.Settings, creator ClientCreator, opts ...Option) (*RetryHelper, error) {
	core, err := retryhelper.NewCore(Family, settings, opts...)
	if err != nil {
		return nil, err
	}
	client, err := creator.CreateAndStart()
	if err != nil {
		return nil, fmt.Errorf("nethttp: create client: %w", err)
	}
	if client == nil {
		return nil, errors.New("nethttp: client creator returned no client")
	}
	return &RetryHelper{core: core, client: client, ownership: retryhelper.Owned}, nil
}

// NewWithReadyMadeClient creates a helper around a client the caller keeps owning.
func NewWithReadyMadeClient(settings retryhelper.Settings, client *http.Client, opts ...Option) (*RetryHelper, error) {
	if client == nil {
		return nil, errors.New("nethttp: client is required")
	}
	core, err := retryhelper.NewCore(Family, settings, opts...)
	if err != nil {
		return nil, err
	}
	return &RetryHelper{core: core, client: client, ownership: retryhelper.Borrowed}, nil
}

// NewFromConfig creates a helper owning a client built from cfg. Retry warnings and
// exchange logs go to log.
func NewFromConfig(cfg *config.Config, log logger.Logger, opts ...Option) (*RetryHelper, error) {
	creator := ClientCreatorFunc(func() (*http.Client, error) {
		return httpclient.NewBuilderFromConfig(cfg.Client, log).
			WithRequestIDHeader(trace.HeaderXRequestID).
			Build(), nil
	})
	opts = append([]Option{WithLogger(log)}, opts...)
	return New(retryhelper.SettingsFromConfig(cfg.Retry), creator, opts...)
}

// Client returns the client attempts are sent with.
func (h *RetryHelper) Client() *http.Client { return h.client }

// Ownership reports whether Close shuts the client down.
func (h *RetryHelper) Ownership() retryhelper.Ownership { return h.ownership }

// Settings returns the retry policy.
func (h *RetryHelper) Settings() retryhelper.Settings { return h.core.Settings() }

// Close releases idle connections of an owned client. Borrowed clients are untouched.
func (h *RetryHelper) Close() error {
	if h.ownership == retryhelper.Owned {
		h.client.CloseIdleConnections()
	}
	return nil
}

// RequestWithRetry performs requester's request until it yields a 2xx response, which
// reader turns into T. Non-2xx responses fail the attempt with a *ResponseError;
// requester decides which failures are retried. When retries end the error is a
// *retry.GiveupError wrapping the last failure, or a *retry.InterruptedError when
// ctx ended during a wait.
func RequestWithRetry[T any](ctx context.Context, h *RetryHelper, reader ResponseReader[T], requester SingleRequester) (T, error) {
	return retryhelper.Run[T](ctx, h.core, func(ctx context.Context) (T, int, error) {
		return attempt(ctx, h.client, reader, requester)
	}, func(err error) bool {
		return ToRetry(requester, err)
	})
}

func attempt[T any](ctx context.Context, client *http.Client, reader ResponseReader[T], requester SingleRequester) (T, int, error) {
	var zero T
	resp, err := requester.RequestOnce(ctx, client)
	if err != nil {
		return zero, 0, err
	}
	if resp == nil {
		return zero, 0, errors.New("nethttp: requester returned no response")
	}
	defer drainAndClose(resp)

	if !httpclient.IsSuccessStatus(resp.StatusCode) {
		body, bodyErr := reader.ReadResponseContentInString(resp)
		return zero, resp.StatusCode, retryhelper.NewResponseError(resp.StatusCode, reasonPhrase(resp), body, bodyErr, resp)
	}

	result, err := reader.ReadResponse(resp)
	return result, resp.StatusCode, err
}

// reasonPhrase extracts the reason from a status line such as "503 Service Unavailable".
func reasonPhrase(resp *http.Response) string {
	reason := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if reason == "" {
		reason = http.StatusText(resp.StatusCode)
	}
	return reason
}

func drainAndClose(resp *http.Response) {
	if resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
