// Package testutil provides shared helpers for tests across go-restclient packages.
package testutil

import (
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/gaborage/go-restclient/logger"
)

// LoggedEvent is one captured log entry.
type LoggedEvent struct {
	Level   string
	Fields  map[string]any
	Message string
}

// FakeLogger implements logger.Logger and records every emitted event.
// It is safe for concurrent use.
type FakeLogger struct {
	mu     sync.Mutex
	events []LoggedEvent
}

var _ logger.Logger = (*FakeLogger)(nil)

func (l *FakeLogger) newEvent(level string) logger.LogEvent {
	return &fakeLogEvent{logger: l, level: level, fields: make(map[string]any)}
}

func (l *FakeLogger) Info() logger.LogEvent  { return l.newEvent("info") }
func (l *FakeLogger) Error() logger.LogEvent { return l.newEvent("error") }
func (l *FakeLogger) Debug() logger.LogEvent { return l.newEvent("debug") }
func (l *FakeLogger) Warn() logger.LogEvent  { return l.newEvent("warn") }

// WithFields returns the same logger; attached fields are not tracked.
func (l *FakeLogger) WithFields(_ map[string]any) logger.Logger { return l }

// Events returns a copy of all captured events.
func (l *FakeLogger) Events() []LoggedEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]LoggedEvent(nil), l.events...)
}

// EventsByLevel returns the captured events of one level, in emission order.
func (l *FakeLogger) EventsByLevel(level string) []LoggedEvent {
	var out []LoggedEvent
	for _, e := range l.Events() {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

func (l *FakeLogger) record(e LoggedEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

type fakeLogEvent struct {
	logger *FakeLogger
	level  string
	fields map[string]any
}

func (e *fakeLogEvent) Msg(msg string) {
	e.logger.record(LoggedEvent{Level: e.level, Fields: maps.Clone(e.fields), Message: msg})
}

func (e *fakeLogEvent) Msgf(format string, args ...any) {
	e.Msg(fmt.Sprintf(format, args...))
}

func (e *fakeLogEvent) Err(err error) logger.LogEvent {
	e.fields["error"] = err
	return e
}

func (e *fakeLogEvent) Str(key, value string) logger.LogEvent {
	e.fields[key] = value
	return e
}

func (e *fakeLogEvent) Int(key string, value int) logger.LogEvent {
	e.fields[key] = value
	return e
}

func (e *fakeLogEvent) Int64(key string, value int64) logger.LogEvent {
	e.fields[key] = value
	return e
}

func (e *fakeLogEvent) Bool(key string, value bool) logger.LogEvent {
	e.fields[key] = value
	return e
}

func (e *fakeLogEvent) Dur(key string, d time.Duration) logger.LogEvent {
	e.fields[key] = d
	return e
}

func (e *fakeLogEvent) Interface(key string, i any) logger.LogEvent {
	e.fields[key] = i
	return e
}

func (e *fakeLogEvent) Bytes(key string, val []byte) logger.LogEvent {
	e.fields[key] = val
	return e
}
