package nethttp

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// ResponseReader turns a 2xx response into T. ReadResponseContentInString is used only
// to describe non-2xx responses in errors.
type ResponseReader[T any] interface {
	ReadResponse(resp *http.Response) (T, error)
	ReadResponseContentInString(resp *http.Response) (string, error)
}

// StringResponseEntityReader reads the whole body as a string.
type StringResponseEntityReader struct{}

func (StringResponseEntityReader) ReadResponse(resp *http.Response) (string, error) {
	return readBodyString(resp)
}

func (StringResponseEntityReader) ReadResponseContentInString(resp *http.Response) (string, error) {
	return readBodyString(resp)
}

// JSONResponseEntityReader decodes the body as JSON into T.
type JSONResponseEntityReader[T any] struct {
	// DisallowUnknownFields rejects objects with fields T does not declare.
	DisallowUnknownFields bool
}

func (r JSONResponseEntityReader[T]) ReadResponse(resp *http.Response) (T, error) {
	var out T
	decoder := json.NewDecoder(resp.Body)
	if r.DisallowUnknownFields {
		decoder.DisallowUnknownFields()
	}
	if err := decoder.Decode(&out); err != nil {
		return out, fmt.Errorf("nethttp: decode %T response: %w", out, err)
	}
	return out, nil
}

func (JSONResponseEntityReader[T]) ReadResponseContentInString(resp *http.Response) (string, error) {
	return readBodyString(resp)
}

func readBodyString(resp *http.Response) (string, error) {
	if resp.Body == nil {
		return "", nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("nethttp: read response body: %w", err)
	}
	return string(body), nil
}
