package httpclient

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gaborage/go-restclient/logger"
	"github.com/gaborage/go-restclient/trace"
)

// transport is the round tripper behind every client handle built by Builder.
type transport struct {
	base      http.RoundTripper
	config    *Config
	logger    logger.Logger
	callCount int64
}

// RoundTrip implements http.RoundTripper. The caller's request is never mutated.
func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	start := time.Now()
	callCount := atomic.AddInt64(&t.callCount, 1)

	out := req.Clone(ctx)
	t.applyHeaders(out)
	t.applyAuth(out)

	if err := t.runRequestInterceptors(ctx, out); err != nil {
		return nil, NewInterceptorError("request interceptor failed", "request", err)
	}

	requestID := t.requestID(out)
	t.logRequest(out, requestID)

	resp, err := t.base.RoundTrip(out)
	if err != nil {
		t.logFailure(out, err, time.Since(start), requestID)
		if IsTimeout(err) {
			return nil, NewTimeoutError("request timeout", t.config.Timeout, err)
		}
		return nil, NewNetworkError("request execution failed", err)
	}

	if err := t.runResponseInterceptors(ctx, out, resp); err != nil {
		resp.Body.Close()
		return nil, NewInterceptorError("response interceptor failed", "response", err)
	}

	t.logResponse(resp, time.Since(start), callCount, requestID)
	return resp, nil
}

func (t *transport) applyHeaders(req *http.Request) {
	for key, value := range t.config.DefaultHeaders {
		if req.Header.Get(key) == "" {
			req.Header.Set(key, value)
		}
	}
}

func (t *transport) applyAuth(req *http.Request) {
	if t.config.BasicAuth == nil {
		return
	}
	if _, _, ok := req.BasicAuth(); ok {
		return
	}
	req.SetBasicAuth(t.config.BasicAuth.Username, t.config.BasicAuth.Password)
}

func (t *transport) requestID(req *http.Request) string {
	if t.config.RequestIDHeader == "" {
		return ""
	}
	if id := req.Header.Get(t.config.RequestIDHeader); id != "" {
		return id
	}
	_, id := trace.EnsureRequestID(req.Context())
	req.Header.Set(t.config.RequestIDHeader, id)
	return id
}

func (t *transport) runRequestInterceptors(ctx context.Context, req *http.Request) error {
	for _, interceptor := range t.config.RequestInterceptors {
		if err := interceptor(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

func (t *transport) runResponseInterceptors(ctx context.Context, req *http.Request, resp *http.Response) error {
	for _, interceptor := range t.config.ResponseInterceptors {
		if err := interceptor(ctx, req, resp); err != nil {
			return err
		}
	}
	return nil
}

func (t *transport) logRequest(req *http.Request, requestID string) {
	event := t.logger.Info().
		Str("direction", "outbound").
		Str("method", req.Method).
		Str("url", req.URL.String())

	if attempt := trace.AttemptFromContext(req.Context()); attempt > 0 {
		event = event.Int("attempt", attempt)
	}
	if requestID != "" {
		event = event.Str("request_id", requestID)
	}
	if len(req.Header) > 0 {
		event = event.Int("header_count", len(req.Header))
	}
	if req.ContentLength > 0 {
		event = event.Int64("body_size", req.ContentLength)
	}
	event.Msg("REST client request")

	if !t.config.LogPayloads {
		return
	}

	debug := t.logger.Debug().
		Str("direction", "outbound").
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Interface("headers", req.Header)
	if requestID != "" {
		debug = debug.Str("request_id", requestID)
	}
	if preview, truncated, ok := t.requestBodyPreview(req); ok {
		debug = debug.
			Bytes("body_preview", preview).
			Str("body_truncated", strconv.FormatBool(truncated))
	}
	debug.Msg("REST client request")
}

// requestBodyPreview reads a preview from a fresh copy of the body so the body
// that goes on the wire stays intact. Requests without GetBody are not previewed.
func (t *transport) requestBodyPreview(req *http.Request) ([]byte, bool, bool) {
	if req.GetBody == nil || req.ContentLength == 0 {
		return nil, false, false
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, false, false
	}
	defer body.Close()

	preview, truncated, err := readPreview(body, t.config.MaxPayloadLogBytes)
	if err != nil {
		return nil, false, false
	}
	if truncated {
		preview = preview[:t.config.MaxPayloadLogBytes]
	}
	return preview, truncated, true
}

func (t *transport) logResponse(resp *http.Response, elapsed time.Duration, callCount int64, requestID string) {
	event := t.logger.Info().
		Str("direction", "inbound").
		Int("status", resp.StatusCode).
		Dur("elapsed", elapsed).
		Int64("call_count", callCount)
	if requestID != "" {
		event = event.Str("request_id", requestID)
	}
	event.Msg("REST client response")

	if !t.config.LogPayloads {
		return
	}

	debug := t.logger.Debug().
		Str("direction", "inbound").
		Int("status", resp.StatusCode).
		Interface("headers", resp.Header)
	if requestID != "" {
		debug = debug.Str("request_id", requestID)
	}
	if resp.Body != nil && resp.Body != http.NoBody {
		preview, truncated, err := readPreview(resp.Body, t.config.MaxPayloadLogBytes)
		resp.Body = &replayBody{Reader: io.MultiReader(bytes.NewReader(preview), resp.Body), Closer: resp.Body}
		if err == nil {
			if len(preview) > t.config.MaxPayloadLogBytes {
				preview = preview[:t.config.MaxPayloadLogBytes]
			}
			debug = debug.
				Bytes("body_preview", preview).
				Str("body_truncated", strconv.FormatBool(truncated))
		}
	}
	debug.Msg("REST client response")
}

func (t *transport) logFailure(req *http.Request, err error, elapsed time.Duration, requestID string) {
	event := t.logger.Warn().
		Err(err).
		Str("direction", "outbound").
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Dur("elapsed", elapsed)
	if requestID != "" {
		event = event.Str("request_id", requestID)
	}
	event.Msg("REST client request failed")
}

// readPreview reads up to limit+1 bytes from r. The returned slice holds every
// byte consumed (so it can be replayed); truncated reports whether more than
// limit bytes were available.
func readPreview(r io.Reader, limit int) ([]byte, bool, error) {
	buf, err := io.ReadAll(io.LimitReader(r, int64(limit)+1))
	if err != nil {
		return buf, false, err
	}
	return buf, len(buf) > limit, nil
}

// replayBody serves consumed preview bytes before the rest of the original body.
type replayBody struct {
	io.Reader
	io.Closer
}
