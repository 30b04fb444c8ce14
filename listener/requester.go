package listener

import (
	"context"

	"github.com/gaborage/go-restclient/retryhelper"
)

// Family names this helper family in logs and telemetry.
const Family = "listener"

// ResponseError is the failure raised for a non-2xx response.
type ResponseError = retryhelper.ResponseError[*Response]

// SingleRequester starts one exchange whose response goes to l, and classifies
// non-2xx responses. Implement retryhelper.ErrorClassifier as well to retry failures
// without a response.
type SingleRequester interface {
	RequestOnce(ctx context.Context, client *Client, l ResponseListener) error
	IsResponseStatusToRetry(resp *Response) bool
}

// ToRetry classifies a failed attempt of requester.
func ToRetry(requester SingleRequester, err error) bool {
	return retryhelper.ToRetry[*Response](requester, err)
}

// RequestFunc starts one exchange.
type RequestFunc func(ctx context.Context, client *Client, l ResponseListener) error

// RequesterOption configures a requester built by NewSingleRequester.
type RequesterOption func(*funcRequester)

// WithErrorToRetry sets the classifier for failures that carry no response.
func WithErrorToRetry(fn func(err error) bool) RequesterOption {
	return func(r *funcRequester) {
		r.errorToRetry = fn
	}
}

// NewSingleRequester adapts functions to SingleRequester.
func NewSingleRequester(request RequestFunc, statusToRetry func(status int) bool, opts ...RequesterOption) SingleRequester {
	r := &funcRequester{request: request, statusToRetry: statusToRetry}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type funcRequester struct {
	request       RequestFunc
	statusToRetry func(int) bool
	errorToRetry  func(error) bool
}

func (r *funcRequester) RequestOnce(ctx context.Context, client *Client, l ResponseListener) error {
	return r.request(ctx, client, l)
}

func (r *funcRequester) IsResponseStatusToRetry(resp *Response) bool {
	return r.statusToRetry != nil && r.statusToRetry(resp.StatusCode)
}

func (r *funcRequester) IsErrorToRetry(err error) bool {
	return r.errorToRetry != nil && r.errorToRetry(err)
}
