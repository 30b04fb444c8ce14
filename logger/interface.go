// Package logger defines the structured logging contract used by the REST client
// toolkit and a zerolog-backed implementation of it.
//
// Retry helpers, the HTTP client builder and the column writers only depend on the
// Logger interface, so callers may plug in their own implementation.
package logger

import "time"

// Logger is the structured logging contract. Each level method starts a new event
// which is emitted by Msg or Msgf.
type Logger interface {
	Info() LogEvent
	Error() LogEvent
	Debug() LogEvent
	Warn() LogEvent
	WithFields(fields map[string]any) Logger
}

// LogEvent is a log entry under construction.
type LogEvent interface {
	Msg(msg string)
	Msgf(format string, args ...any)
	Err(err error) LogEvent
	Str(key, value string) LogEvent
	Int(key string, value int) LogEvent
	Int64(key string, value int64) LogEvent
	Bool(key string, value bool) LogEvent
	Dur(key string, d time.Duration) LogEvent
	Interface(key string, i any) LogEvent
	Bytes(key string, val []byte) LogEvent
}
