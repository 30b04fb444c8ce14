package retryhelper

import (
	"errors"
	"net/http"
	"slices"
)

// StatusClassifier decides whether a non-2xx response of type R is worth another attempt.
type StatusClassifier[R any] interface {
	IsResponseStatusToRetry(resp R) bool
}

// ErrorClassifier is the optional second tier: requesters implement it to retry
// failures that carry no response, such as transport errors.
type ErrorClassifier interface {
	IsErrorToRetry(err error) bool
}

// ToRetry classifies a failed attempt. A *ResponseError[R] is always decided by the
// status classifier. Any other error goes to the requester's ErrorClassifier when it
// has one and is otherwise not retried.
func ToRetry[R any](requester StatusClassifier[R], err error) bool {
	if err == nil {
		return false
	}
	var respErr *ResponseError[R]
	if errors.As(err, &respErr) {
		return requester.IsResponseStatusToRetry(respErr.Response)
	}
	if classifier, ok := requester.(ErrorClassifier); ok {
		return classifier.IsErrorToRetry(err)
	}
	return false
}

// RetryOnServerErrors retries 5xx responses.
func RetryOnServerErrors(status int) bool {
	return status >= http.StatusInternalServerError && status <= 599
}

// RetryOnStatus retries exactly the listed statuses.
func RetryOnStatus(codes ...int) func(status int) bool {
	codes = slices.Clone(codes)
	return func(status int) bool {
		return slices.Contains(codes, status)
	}
}

// RetryOnThrottleOrServerErrors retries 429 Too Many Requests and 5xx responses.
func RetryOnThrottleOrServerErrors(status int) bool {
	return status == http.StatusTooManyRequests || RetryOnServerErrors(status)
}
