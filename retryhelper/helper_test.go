package retryhelper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-restclient/config"
	"github.com/gaborage/go-restclient/httpclient"
	"github.com/gaborage/go-restclient/internal/testutil"
	"github.com/gaborage/go-restclient/retry"
	"github.com/gaborage/go-restclient/trace"
)

type fakeResponse struct {
	status int
}

type statusOnly struct {
	retry func(int) bool
}

func (r statusOnly) IsResponseStatusToRetry(resp *fakeResponse) bool {
	return r.retry(resp.status)
}

type withErrors struct {
	statusOnly
	errorToRetry bool
}

func (r withErrors) IsErrorToRetry(error) bool { return r.errorToRetry }

func noSleep(context.Context, time.Duration) error { return nil }

func TestToRetry(t *testing.T) {
	respErr := NewResponseError(503, "Service Unavailable", "busy", nil, &fakeResponse{status: 503})
	transport := errors.New("connection reset")

	tests := []struct {
		name      string
		requester StatusClassifier[*fakeResponse]
		err       error
		expected  bool
	}{
		{
			name:      "status classifier decides response errors",
			requester: statusOnly{retry: RetryOnServerErrors},
			err:       respErr,
			expected:  true,
		},
		{
			name:      "wrapped response error",
			requester: statusOnly{retry: RetryOnServerErrors},
			err:       fmt.Errorf("attempt: %w", respErr),
			expected:  true,
		},
		{
			name:      "status classifier wins over error classifier",
			requester: withErrors{statusOnly: statusOnly{retry: RetryOnStatus(429)}, errorToRetry: true},
			err:       respErr,
			expected:  false,
		},
		{
			name:      "other errors default to no retry",
			requester: statusOnly{retry: RetryOnServerErrors},
			err:       transport,
			expected:  false,
		},
		{
			name:      "error classifier opts in",
			requester: withErrors{statusOnly: statusOnly{retry: RetryOnServerErrors}, errorToRetry: true},
			err:       transport,
			expected:  true,
		},
		{
			name:      "nil error",
			requester: withErrors{errorToRetry: true},
			err:       nil,
			expected:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ToRetry(tt.requester, tt.err))
		})
	}
}

func TestStockStatusClassifiers(t *testing.T) {
	assert.True(t, RetryOnServerErrors(500))
	assert.True(t, RetryOnServerErrors(599))
	assert.False(t, RetryOnServerErrors(404))
	assert.False(t, RetryOnServerErrors(600))

	only := RetryOnStatus(http.StatusTooManyRequests, http.StatusBadGateway)
	assert.True(t, only(429))
	assert.True(t, only(502))
	assert.False(t, only(503))

	assert.True(t, RetryOnThrottleOrServerErrors(429))
	assert.True(t, RetryOnThrottleOrServerErrors(503))
	assert.False(t, RetryOnThrottleOrServerErrors(400))
}

func TestResponseErrorMessage(t *testing.T) {
	t.Run("with body", func(t *testing.T) {
		err := NewResponseError(404, "Not Found", `{"error":"missing"}`, nil, &fakeResponse{status: 404})
		assert.Equal(t, `Response not 2xx: 404 Not Found {"error":"missing"}`, err.Error())
		assert.Equal(t, 404, err.Response.status)
	})

	t.Run("body unavailable", func(t *testing.T) {
		err := NewResponseError(500, "Internal Server Error", "ignored", errors.New("stream closed"), &fakeResponse{status: 500})
		msg := err.Error()
		assert.Contains(t, msg, "Response not 2xx: 500 Internal Server Error Response body not available by: stream closed")
		assert.Contains(t, msg, "retryhelper.TestResponseErrorMessage")
		assert.Empty(t, err.Body)
	})
}

func TestResponseErrorIsHTTPClientError(t *testing.T) {
	var err error = NewResponseError(503, "Service Unavailable", "busy", nil, &fakeResponse{status: 503})
	wrapped := &retry.GiveupError{First: err, Last: err, Attempts: 3}

	assert.True(t, httpclient.IsErrorType(wrapped, httpclient.HTTPError))
	assert.True(t, httpclient.IsHTTPStatusError(wrapped, 503))
	assert.False(t, httpclient.IsHTTPStatusError(wrapped, 500))
	assert.False(t, httpclient.IsTransientError(wrapped))
}

func TestDiagnose(t *testing.T) {
	assert.Empty(t, Diagnose(nil))
	assert.Contains(t, Diagnose(errors.New("plain")), "plain\n")
	assert.Contains(t, Diagnose(errors.New("plain")), "retryhelper.TestDiagnose")
}

func TestLogRetry(t *testing.T) {
	log := &testutil.FakeLogger{}
	cause := errors.New("Response not 2xx: 503 Service Unavailable busy")

	for i := 1; i <= 4; i++ {
		LogRetry(log, cause, i, 7, 2500*time.Millisecond)
	}

	warns := log.EventsByLevel("warn")
	require.Len(t, warns, 4)
	assert.Equal(t, "Retrying 1/7 after 2 seconds. Message: Response not 2xx: 503 Service Unavailable busy", warns[0].Message)
	assert.NotContains(t, warns[0].Fields, "error")
	assert.NotContains(t, warns[1].Fields, "stack")
	assert.Equal(t, cause, warns[2].Fields["error"])
	assert.Contains(t, warns[2].Fields["stack"], "busy")
	assert.NotContains(t, warns[3].Fields, "error")
}

func TestSettings(t *testing.T) {
	assert.NoError(t, DefaultSettings().Validate())

	fromConfig := SettingsFromConfig(config.RetryConfig{
		MaxRetries:    2,
		InitialWait:   10 * time.Millisecond,
		MaxWait:       time.Second,
		Randomization: 0.1,
	})
	assert.Equal(t, Settings{
		MaxRetries:       2,
		InitialRetryWait: 10 * time.Millisecond,
		MaxRetryWait:     time.Second,
		Randomization:    0.1,
	}, fromConfig)

	invalid := []Settings{
		{MaxRetries: -1, InitialRetryWait: time.Second, MaxRetryWait: time.Second},
		{MaxRetries: 1, InitialRetryWait: 0, MaxRetryWait: time.Second},
		{MaxRetries: 1, InitialRetryWait: time.Second, MaxRetryWait: time.Millisecond},
		{MaxRetries: 1, InitialRetryWait: time.Second, MaxRetryWait: time.Second, Randomization: 1},
	}
	for _, s := range invalid {
		assert.Error(t, s.Validate(), "%+v", s)
	}

	_, err := NewCore("nethttp", invalid[0])
	assert.Error(t, err)
}

func TestOwnershipString(t *testing.T) {
	assert.Equal(t, "owned", Owned.String())
	assert.Equal(t, "borrowed", Borrowed.String())
	assert.Equal(t, "Ownership(9)", Ownership(9).String())
}

func TestRun(t *testing.T) {
	settings := Settings{MaxRetries: 2, InitialRetryWait: 10 * time.Millisecond, MaxRetryWait: time.Second}
	requester := statusOnly{retry: RetryOnServerErrors}

	t.Run("retries then succeeds", func(t *testing.T) {
		log := &testutil.FakeLogger{}
		core, err := NewCore("test", settings, WithLogger(log), WithSleep(noSleep), WithTracking(false))
		require.NoError(t, err)

		statuses := []int{503, 503, 200}
		var attempts []int
		var requestIDs []string
		result, err := Run[string](context.Background(), core, func(ctx context.Context) (string, int, error) {
			n := trace.AttemptFromContext(ctx)
			attempts = append(attempts, n)
			id, _ := trace.RequestIDFromContext(ctx)
			requestIDs = append(requestIDs, id)
			status := statuses[n-1]
			if status != 200 {
				return "", status, NewResponseError(status, "Service Unavailable", "", nil, &fakeResponse{status: status})
			}
			return "ok", status, nil
		}, func(err error) bool { return ToRetry(requester, err) })

		require.NoError(t, err)
		assert.Equal(t, "ok", result)
		assert.Equal(t, []int{1, 2, 3}, attempts)
		assert.Len(t, log.EventsByLevel("warn"), 2)
		require.Len(t, requestIDs, 3)
		assert.NotEmpty(t, requestIDs[0])
		assert.Equal(t, requestIDs[0], requestIDs[2])
	})

	t.Run("gives up with last cause", func(t *testing.T) {
		core, err := NewCore("test", settings, WithSleep(noSleep), WithTracking(false))
		require.NoError(t, err)

		calls := 0
		_, err = Run[string](context.Background(), core, func(context.Context) (string, int, error) {
			calls++
			return "", 500, NewResponseError(500, "Internal Server Error", fmt.Sprintf("call %d", calls), nil, &fakeResponse{status: 500})
		}, func(err error) bool { return ToRetry(requester, err) })

		require.Error(t, err)
		assert.Equal(t, 3, calls)
		assert.True(t, retry.IsGiveup(err))

		var respErr *ResponseError[*fakeResponse]
		require.ErrorAs(t, err, &respErr)
		assert.Equal(t, "call 3", respErr.Body)
	})
}
