package retryhelper

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/gaborage/go-restclient/httpclient"
)

// ResponseError reports an attempt that got a response whose status is not 2xx.
// R is the family's response type; the response is kept so the requester can
// classify it.
type ResponseError[R any] struct {
	StatusCode int
	Reason     string
	// Body is the response body read for diagnostics; empty when it was unavailable.
	Body     string
	Response R
	// BodyErr is the failure that prevented reading Body, if any.
	BodyErr error
}

// NewResponseError builds the error for a non-2xx response. bodyErr is the
// failure of the diagnostic body read; it is rendered into the message and
// never replaces the response failure itself.
func NewResponseError[R any](status int, reason, body string, bodyErr error, resp R) *ResponseError[R] {
	e := &ResponseError[R]{
		StatusCode: status,
		Reason:     reason,
		Response:   resp,
		BodyErr:    bodyErr,
	}
	if bodyErr == nil {
		e.Body = body
	}
	return e
}

func (e *ResponseError[R]) Error() string {
	if e.BodyErr != nil {
		return fmt.Sprintf("Response not 2xx: %d %s Response body not available by: %s",
			e.StatusCode, e.Reason, Diagnose(e.BodyErr))
	}
	return fmt.Sprintf("Response not 2xx: %d %s %s", e.StatusCode, e.Reason, e.Body)
}

// Type reports the failure as an httpclient.HTTPError, so httpclient.IsErrorType and
// httpclient.IsHTTPStatusError recognise helper failures.
func (e *ResponseError[R]) Type() httpclient.ErrorType { return httpclient.HTTPError }

func (e *ResponseError[R]) HTTPStatus() int { return e.StatusCode }

// stackTracer is implemented by errors created through github.com/pkg/errors.
type stackTracer interface {
	StackTrace() errors.StackTrace
}

// Diagnose renders err with a stack trace. Errors that already carry a stack keep
// it; others get the stack of the caller.
func Diagnose(err error) string {
	if err == nil {
		return ""
	}
	if _, ok := err.(stackTracer); ok {
		return fmt.Sprintf("%+v", err)
	}
	return fmt.Sprintf("%+v", errors.WithStack(err))
}
