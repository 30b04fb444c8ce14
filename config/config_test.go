package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(WithoutEnv())
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Retry.MaxRetries)
	assert.Equal(t, time.Second, cfg.Retry.InitialWait)
	assert.Equal(t, 60*time.Second, cfg.Retry.MaxWait)
	assert.Zero(t, cfg.Retry.Randomization)

	assert.Equal(t, 30*time.Second, cfg.Client.Timeout)
	assert.Equal(t, 60*time.Second, cfg.Client.ResponseTimeout)
	assert.Equal(t, 64, cfg.Client.MaxConnections)
	assert.Equal(t, "go-restclient", cfg.Client.UserAgent)
	assert.Equal(t, 1024, cfg.Client.MaxPayloadLogBytes)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Log.Pretty)

	assert.False(t, cfg.Client.Tracing)
	assert.False(t, cfg.Observability.Enabled)
	assert.Equal(t, "stdout", cfg.Observability.Endpoint)
	assert.Equal(t, "http", cfg.Observability.Protocol)
	assert.InDelta(t, 1.0, cfg.Observability.SampleRate, 1e-9)
	assert.Equal(t, time.Minute, cfg.Observability.MetricInterval)
}

func TestLoadFileThenYAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "restclient.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
retry:
  maxretries: 3
  initialwait: 250ms
client:
  useragent: from-file
custom:
  endpoint: https://api.example.com
`), 0o600))

	t.Setenv("RESTCLIENT_RETRY_MAXRETRIES", "5")
	t.Setenv("RESTCLIENT_LOG_LEVEL", "debug")

	cfg, err := Load(
		WithFile(path),
		WithYAML([]byte("client:\n  useragent: from-bytes\n  logpayloads: true\n")),
	)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Retry.MaxRetries, "env overrides file")
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.InitialWait)
	assert.Equal(t, "from-bytes", cfg.Client.UserAgent, "inline yaml overrides file")
	assert.True(t, cfg.Client.LogPayloads)
	assert.Equal(t, "debug", cfg.Log.Level)

	assert.True(t, cfg.Exists("custom.endpoint"))
	assert.Equal(t, "https://api.example.com", cfg.String("custom.endpoint"))
	assert.False(t, cfg.Exists("custom.missing"))
}

func TestLoadMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.yaml")

	t.Run("optional by default", func(t *testing.T) {
		_, err := Load(WithoutEnv(), WithFile(missing))
		assert.NoError(t, err)
	})

	t.Run("required", func(t *testing.T) {
		_, err := Load(WithoutEnv(), WithFile(missing), WithRequiredFiles())
		assert.Error(t, err)
	})
}

func TestLoadCustomEnvPrefix(t *testing.T) {
	t.Setenv("MYAPP_CLIENT_MAXCONNECTIONS", "8")

	cfg, err := Load(WithEnvPrefix("MYAPP_"))
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Client.MaxConnections)
}

func TestLoadValidationErrors(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		field    string
		contains string
	}{
		{
			name:     "negative retries",
			yaml:     "retry:\n  maxretries: -1\n",
			field:    "retry.maxretries",
			contains: "must be at least 0",
		},
		{
			name:     "max wait below initial wait",
			yaml:     "retry:\n  initialwait: 10s\n  maxwait: 1s\n",
			field:    "retry.maxwait",
			contains: "must not be smaller than initialwait",
		},
		{
			name:     "randomization out of range",
			yaml:     "retry:\n  randomization: 1.5\n",
			field:    "retry.randomization",
			contains: "must be less than 1",
		},
		{
			name:     "zero connections",
			yaml:     "client:\n  maxconnections: 0\n",
			field:    "client.maxconnections",
			contains: "must be at least 1",
		},
		{
			name:     "unknown log level",
			yaml:     "log:\n  level: chatty\n",
			field:    "log.level",
			contains: "must be one of",
		},
		{
			name:     "observability without service name",
			yaml:     "observability:\n  enabled: true\n  servicename: \"\"\n",
			field:    "observability.servicename",
			contains: "is required when enabled is true",
		},
		{
			name:     "unknown export protocol",
			yaml:     "observability:\n  protocol: thrift\n",
			field:    "observability.protocol",
			contains: "must be one of: http, grpc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(WithoutEnv(), WithYAML([]byte(tt.yaml)))
			require.Error(t, err)

			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, "invalid", cfgErr.Category)
			assert.Equal(t, tt.field, cfgErr.Field)
			assert.Contains(t, cfgErr.Error(), tt.contains)
			assert.Contains(t, cfgErr.Error(), "config_invalid:")
		})
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	_, err := Load(WithoutEnv(), WithYAML([]byte("retry: [unterminated")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inline yaml")
}

func TestConfigErrorFormatting(t *testing.T) {
	err := NewInvalidFieldError("client.timeout", "must be greater than 0 (got 0s)")
	assert.Equal(t,
		"config_invalid: client.timeout must be greater than 0 (got 0s) set RESTCLIENT_CLIENT_TIMEOUT env var or fix client.timeout in the yaml",
		err.Error())
}

func TestZeroConfigAccessors(t *testing.T) {
	var cfg Config
	assert.False(t, cfg.Exists("retry.maxretries"))
	assert.Empty(t, cfg.String("retry.maxretries"))
}
