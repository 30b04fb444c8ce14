package config

import (
	"time"

	"github.com/knadh/koanf/v2"
)

// Config is the complete configuration of the REST client toolkit.
type Config struct {
	Retry  RetryConfig  `koanf:"retry" json:"retry" yaml:"retry"`
	Client ClientConfig `koanf:"client" json:"client" yaml:"client"`
	Log    LogConfig    `koanf:"log" json:"log" yaml:"log"`

	Observability ObservabilityConfig `koanf:"observability" json:"observability" yaml:"observability"`

	k *koanf.Koanf
}

// RetryConfig holds the retry policy handed to the retry executor.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt. 0 disables retrying.
	MaxRetries int `koanf:"maxretries" json:"maxretries" yaml:"maxretries" validate:"gte=0,lte=100"`
	// InitialWait is the wait before the first retry. It doubles on every retry.
	InitialWait time.Duration `koanf:"initialwait" json:"initialwait" yaml:"initialwait" validate:"gt=0"`
	// MaxWait caps the wait between retries.
	MaxWait time.Duration `koanf:"maxwait" json:"maxwait" yaml:"maxwait" validate:"gtefield=InitialWait"`
	// Randomization spreads each wait by +/- the given factor. 0 keeps waits exact.
	Randomization float64 `koanf:"randomization" json:"randomization" yaml:"randomization" validate:"gte=0,lt=1"`
}

// ClientConfig holds settings for the HTTP client handle owned by a retry helper.
type ClientConfig struct {
	// Timeout bounds a single synchronous exchange, body included.
	Timeout time.Duration `koanf:"timeout" json:"timeout" yaml:"timeout" validate:"gt=0"`
	// ResponseTimeout bounds the wait for response headers in the listener family.
	ResponseTimeout time.Duration `koanf:"responsetimeout" json:"responsetimeout" yaml:"responsetimeout" validate:"gt=0"`
	// MaxConnections caps in-flight exchanges of a listener client.
	MaxConnections int `koanf:"maxconnections" json:"maxconnections" yaml:"maxconnections" validate:"gte=1"`
	UserAgent      string `koanf:"useragent" json:"useragent" yaml:"useragent"`
	// LogPayloads enables debug-level logging of headers and body previews.
	LogPayloads        bool `koanf:"logpayloads" json:"logpayloads" yaml:"logpayloads"`
	MaxPayloadLogBytes int  `koanf:"maxpayloadlogbytes" json:"maxpayloadlogbytes" yaml:"maxpayloadlogbytes" validate:"gte=0"`
	// Tracing wraps the transport with OpenTelemetry client spans per exchange.
	Tracing bool `koanf:"tracing" json:"tracing" yaml:"tracing"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `koanf:"level" json:"level" yaml:"level" validate:"oneof=trace debug info warn error disabled"`
	Pretty bool   `koanf:"pretty" json:"pretty" yaml:"pretty"`
}

// ObservabilityConfig selects where spans and metrics of retried calls are exported.
type ObservabilityConfig struct {
	Enabled        bool   `koanf:"enabled" json:"enabled" yaml:"enabled"`
	ServiceName    string `koanf:"servicename" json:"servicename" yaml:"servicename" validate:"required_if=Enabled true"`
	ServiceVersion string `koanf:"serviceversion" json:"serviceversion" yaml:"serviceversion"`
	Environment    string `koanf:"environment" json:"environment" yaml:"environment"`
	// Endpoint is the host:port of an OTLP collector, or "stdout" for local output.
	Endpoint string `koanf:"endpoint" json:"endpoint" yaml:"endpoint" validate:"required_if=Enabled true"`
	Protocol string `koanf:"protocol" json:"protocol" yaml:"protocol" validate:"oneof=http grpc"`
	Insecure bool   `koanf:"insecure" json:"insecure" yaml:"insecure"`
	// Headers are sent with every export, e.g. collector API keys.
	Headers        map[string]string `koanf:"headers" json:"headers" yaml:"headers"`
	SampleRate     float64           `koanf:"samplerate" json:"samplerate" yaml:"samplerate" validate:"gte=0,lte=1"`
	MetricInterval time.Duration     `koanf:"metricinterval" json:"metricinterval" yaml:"metricinterval" validate:"gt=0"`
}

// Exists reports whether key was set by any configuration source.
func (c *Config) Exists(key string) bool {
	if c.k == nil {
		return false
	}
	return c.k.Exists(key)
}

// String returns the raw string value of key, for settings outside the typed schema.
func (c *Config) String(key string) string {
	if c.k == nil {
		return ""
	}
	return c.k.String(key)
}
