package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// DefaultResponseTimeout bounds the wait for response headers in the stock readers.
const DefaultResponseTimeout = 60 * time.Second

// ResponseReader is stateful per attempt: Listener hands out a fresh listener and the
// other methods read the exchange that listener observed. Readers are not safe for
// concurrent attempts.
type ResponseReader[T any] interface {
	Listener() ResponseListener
	Response(ctx context.Context) (*Response, error)
	ReadResponseContent() (T, error)
	ReadResponseContentInString() (string, error)
}

// streamReader buffers the body of the current attempt once, so decoding and
// diagnostics share the same bytes.
type streamReader struct {
	timeout  time.Duration
	current  *StreamResponseListener
	body     []byte
	bodyErr  error
	bodyRead bool
}

func newStreamReader(timeout time.Duration) streamReader {
	if timeout <= 0 {
		timeout = DefaultResponseTimeout
	}
	return streamReader{timeout: timeout}
}

func (r *streamReader) Listener() ResponseListener {
	r.current = NewStreamResponseListener()
	r.body, r.bodyErr, r.bodyRead = nil, nil, false
	return r.current
}

func (r *streamReader) Response(ctx context.Context) (*Response, error) {
	if r.current == nil {
		return nil, errListenerUnused
	}
	return r.current.Get(ctx, r.timeout)
}

func (r *streamReader) readBody() ([]byte, error) {
	if r.current == nil {
		return nil, errListenerUnused
	}
	if !r.bodyRead {
		body := r.current.Body()
		r.body, r.bodyErr = io.ReadAll(body)
		_ = body.Close()
		r.bodyRead = true
		if r.bodyErr != nil {
			r.bodyErr = fmt.Errorf("listener: read response body: %w", r.bodyErr)
		}
	}
	return r.body, r.bodyErr
}

func (r *streamReader) ReadResponseContentInString() (string, error) {
	body, err := r.readBody()
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// StringResponseEntityReader reads the whole body as a string.
type StringResponseEntityReader struct {
	streamReader
}

// NewStringResponseEntityReader waits up to timeout for response headers; a
// non-positive timeout means DefaultResponseTimeout.
func NewStringResponseEntityReader(timeout time.Duration) *StringResponseEntityReader {
	return &StringResponseEntityReader{streamReader: newStreamReader(timeout)}
}

func (r *StringResponseEntityReader) ReadResponseContent() (string, error) {
	return r.ReadResponseContentInString()
}

// JSONResponseEntityReader decodes the body as JSON into T.
type JSONResponseEntityReader[T any] struct {
	streamReader
}

// NewJSONResponseEntityReader waits up to timeout for response headers; a
// non-positive timeout means DefaultResponseTimeout.
func NewJSONResponseEntityReader[T any](timeout time.Duration) *JSONResponseEntityReader[T] {
	return &JSONResponseEntityReader[T]{streamReader: newStreamReader(timeout)}
}

func (r *JSONResponseEntityReader[T]) ReadResponseContent() (T, error) {
	var out T
	body, err := r.readBody()
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, fmt.Errorf("listener: decode %T response: %w", out, err)
	}
	return out, nil
}
