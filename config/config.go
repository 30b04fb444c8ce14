// Package config loads the REST client toolkit configuration from defaults, YAML
// files, raw YAML bytes and environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the prefix of environment variables read by Load.
// RESTCLIENT_RETRY_MAXRETRIES maps to retry.maxretries.
const DefaultEnvPrefix = "RESTCLIENT_"

type loadOptions struct {
	files        []string
	requireFiles bool
	raw          [][]byte
	envPrefix    string
	skipEnv      bool
}

// LoadOption customizes Load.
type LoadOption func(*loadOptions)

// WithFile adds a YAML file. Missing files are skipped unless WithRequiredFiles is set.
func WithFile(path string) LoadOption {
	return func(o *loadOptions) { o.files = append(o.files, path) }
}

// WithRequiredFiles makes a missing file given to WithFile an error.
func WithRequiredFiles() LoadOption {
	return func(o *loadOptions) { o.requireFiles = true }
}

// WithYAML adds raw YAML content, loaded after files.
func WithYAML(data []byte) LoadOption {
	return func(o *loadOptions) { o.raw = append(o.raw, data) }
}

// WithEnvPrefix changes the environment variable prefix.
func WithEnvPrefix(prefix string) LoadOption {
	return func(o *loadOptions) { o.envPrefix = prefix }
}

// WithoutEnv disables the environment source.
func WithoutEnv() LoadOption {
	return func(o *loadOptions) { o.skipEnv = true }
}

// Load builds a validated Config. Sources are applied in this order, later ones
// overriding earlier ones: defaults, YAML files, raw YAML, environment.
func Load(opts ...LoadOption) (*Config, error) {
	o := &loadOptions{envPrefix: DefaultEnvPrefix}
	for _, opt := range opts {
		opt(o)
	}

	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	for _, path := range o.files {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) && !o.requireFiles {
			continue
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	for i, data := range o.raw {
		if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load inline yaml #%d: %w", i, err)
		}
	}

	if !o.skipEnv {
		if err := k.Load(envProvider(o.envPrefix), nil); err != nil {
			return nil, fmt.Errorf("failed to load environment variables: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.k = k

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func envProvider(prefix string) *env.Env {
	return env.Provider(".", env.Opt{
		Prefix: prefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.TrimPrefix(key, prefix)
			return strings.ReplaceAll(strings.ToLower(key), "_", "."), value
		},
	})
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"retry.maxretries":    7,
		"retry.initialwait":   "1s",
		"retry.maxwait":       "60s",
		"retry.randomization": 0.0,

		"client.timeout":            "30s",
		"client.responsetimeout":    "60s",
		"client.maxconnections":     64,
		"client.useragent":          "go-restclient",
		"client.logpayloads":        false,
		"client.maxpayloadlogbytes": 1024,
		"client.tracing":            false,

		"log.level":  "info",
		"log.pretty": false,

		"observability.enabled":        false,
		"observability.servicename":    "go-restclient",
		"observability.environment":    "development",
		"observability.endpoint":       "stdout",
		"observability.protocol":       "http",
		"observability.insecure":       false,
		"observability.samplerate":     1.0,
		"observability.metricinterval": "60s",
	}

	return k.Load(confmap.Provider(defaults, "."), nil)
}
