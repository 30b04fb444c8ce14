package config

import (
	"fmt"
	"strings"
)

// ConfigError describes a configuration problem with an actionable hint.
// Messages are lowercase following Go conventions.
//
//nolint:revive // ConfigError reads better than Error at call sites outside the package
type ConfigError struct {
	Category string // "missing" or "invalid"
	Field    string // koanf path, e.g. "retry.maxwait"
	Message  string
	Action   string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	var parts []string

	if e.Category != "" {
		parts = append(parts, fmt.Sprintf("config_%s:", e.Category))
	}
	if e.Field != "" {
		parts = append(parts, e.Field)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.Action != "" {
		parts = append(parts, e.Action)
	}

	return strings.Join(parts, " ")
}

// NewInvalidFieldError reports an out-of-range or malformed value.
func NewInvalidFieldError(field, message string) *ConfigError {
	return &ConfigError{
		Category: "invalid",
		Field:    field,
		Message:  message,
		Action:   fmt.Sprintf("set %s env var or fix %s in the yaml", envVarFor(field), field),
	}
}

func envVarFor(field string) string {
	return DefaultEnvPrefix + strings.ToUpper(strings.ReplaceAll(field, ".", "_"))
}
