// Package httpclient builds the *http.Client handles that retry helpers drive.
//
// The client returned by Builder.Build performs no retries of its own. Its transport
// applies default headers, basic auth and a request ID, runs request and response
// interceptors, logs each exchange, and converts transport failures into the
// ClientError taxonomy so requesters can classify them.
package httpclient

import (
	"context"
	"maps"
	"net/http"
	"slices"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/gaborage/go-restclient/config"
	"github.com/gaborage/go-restclient/logger"
)

const (
	// DefaultTimeout is the default request timeout duration
	DefaultTimeout = 30 * time.Second

	// DefaultMaxPayloadLogBytes caps body previews when payload logging is on.
	DefaultMaxPayloadLogBytes = 1024
)

// RequestInterceptor is called before sending the request
type RequestInterceptor func(ctx context.Context, req *http.Request) error

// ResponseInterceptor is called after receiving the response
type ResponseInterceptor func(ctx context.Context, req *http.Request, resp *http.Response) error

// BasicAuth contains basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// Config holds the client handle configuration
type Config struct {
	Timeout              time.Duration
	BasicAuth            *BasicAuth
	DefaultHeaders       map[string]string
	RequestInterceptors  []RequestInterceptor
	ResponseInterceptors []ResponseInterceptor
	// LogPayloads enables debug-level logging of headers and body previews
	LogPayloads bool
	// MaxPayloadLogBytes caps the number of body bytes logged when LogPayloads is enabled
	MaxPayloadLogBytes int
	// RequestIDHeader is set on every request from the context's request ID; empty disables it
	RequestIDHeader string
	// Tracing wraps the base transport with otelhttp client spans
	Tracing bool
}

// Builder provides a fluent interface for configuring the client handle
type Builder struct {
	config *Config
	base   http.RoundTripper
	logger logger.Logger
}

// NewBuilder creates a new client builder. A nil logger disables exchange logging.
func NewBuilder(log logger.Logger) *Builder {
	if log == nil {
		log = logger.Nop()
	}
	return &Builder{
		config: &Config{
			Timeout:            DefaultTimeout,
			DefaultHeaders:     make(map[string]string),
			MaxPayloadLogBytes: DefaultMaxPayloadLogBytes,
		},
		logger: log,
	}
}

// NewBuilderFromConfig seeds a builder from the client section of the configuration.
func NewBuilderFromConfig(cfg config.ClientConfig, log logger.Logger) *Builder {
	b := NewBuilder(log).
		WithTimeout(cfg.Timeout).
		WithPayloadLogging(cfg.LogPayloads, cfg.MaxPayloadLogBytes).
		WithTracing(cfg.Tracing)
	if cfg.UserAgent != "" {
		b.WithDefaultHeader("User-Agent", cfg.UserAgent)
	}
	return b
}

// WithTimeout sets the request timeout. Zero means no client-side timeout.
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.config.Timeout = timeout
	return b
}

// WithBasicAuth sets basic authentication credentials
func (b *Builder) WithBasicAuth(username, password string) *Builder {
	b.config.BasicAuth = &BasicAuth{Username: username, Password: password}
	return b
}

// WithDefaultHeader adds a header sent with every request unless the request sets it
func (b *Builder) WithDefaultHeader(key, value string) *Builder {
	b.config.DefaultHeaders[key] = value
	return b
}

// WithRequestInterceptor adds a request interceptor
func (b *Builder) WithRequestInterceptor(interceptor RequestInterceptor) *Builder {
	b.config.RequestInterceptors = append(b.config.RequestInterceptors, interceptor)
	return b
}

// WithResponseInterceptor adds a response interceptor
func (b *Builder) WithResponseInterceptor(interceptor ResponseInterceptor) *Builder {
	b.config.ResponseInterceptors = append(b.config.ResponseInterceptors, interceptor)
	return b
}

// WithPayloadLogging toggles debug logging of headers and body previews
func (b *Builder) WithPayloadLogging(enabled bool, maxBytes int) *Builder {
	b.config.LogPayloads = enabled
	b.config.MaxPayloadLogBytes = maxBytes
	return b
}

// WithRequestIDHeader propagates the context request ID (generated when absent) in header
func (b *Builder) WithRequestIDHeader(header string) *Builder {
	b.config.RequestIDHeader = header
	return b
}

// WithTracing toggles an OpenTelemetry client span around every exchange
func (b *Builder) WithTracing(enabled bool) *Builder {
	b.config.Tracing = enabled
	return b
}

// WithTransport replaces the underlying round tripper (default: http.DefaultTransport clone)
func (b *Builder) WithTransport(rt http.RoundTripper) *Builder {
	b.base = rt
	return b
}

// Build creates the client handle
func (b *Builder) Build() *http.Client {
	cfg := *b.config
	cfg.DefaultHeaders = maps.Clone(b.config.DefaultHeaders)
	cfg.RequestInterceptors = slices.Clone(b.config.RequestInterceptors)
	cfg.ResponseInterceptors = slices.Clone(b.config.ResponseInterceptors)
	if b.config.BasicAuth != nil {
		auth := *b.config.BasicAuth
		cfg.BasicAuth = &auth
	}
	if cfg.MaxPayloadLogBytes <= 0 {
		cfg.MaxPayloadLogBytes = DefaultMaxPayloadLogBytes
	}

	base := b.base
	if base == nil {
		base = http.DefaultTransport.(*http.Transport).Clone()
	}
	if cfg.Tracing {
		base = otelhttp.NewTransport(base)
	}

	return &http.Client{
		Timeout: cfg.Timeout,
		Transport: &transport{
			base:   base,
			config: &cfg,
			logger: b.logger,
		},
	}
}
