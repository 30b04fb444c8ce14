package logger

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ZeroLogger implements Logger on top of zerolog.
type ZeroLogger struct {
	zlog   *zerolog.Logger
	filter *SensitiveDataFilter
}

var _ Logger = (*ZeroLogger)(nil)

var callerMarshalOnce sync.Once

// New creates a ZeroLogger writing to stdout. Unknown levels fall back to info.
// If pretty is true, output is formatted for humans.
func New(level string, pretty bool) *ZeroLogger {
	var out io.Writer = os.Stdout
	if pretty {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return newZeroLogger(out, level, NewSensitiveDataFilter(DefaultFilterConfig()))
}

// NewWithWriter creates a JSON ZeroLogger writing to w.
func NewWithWriter(w io.Writer, level string) *ZeroLogger {
	return newZeroLogger(w, level, NewSensitiveDataFilter(DefaultFilterConfig()))
}

// NewWithFilter creates a ZeroLogger writing to w with a custom sensitive-data filter.
func NewWithFilter(w io.Writer, level string, filterConfig *FilterConfig) *ZeroLogger {
	return newZeroLogger(w, level, NewSensitiveDataFilter(filterConfig))
}

// Nop returns a logger that discards everything.
func Nop() *ZeroLogger {
	l := zerolog.Nop()
	return &ZeroLogger{zlog: &l}
}

func newZeroLogger(w io.Writer, level string, filter *SensitiveDataFilter) *ZeroLogger {
	callerMarshalOnce.Do(func() {
		zerolog.CallerMarshalFunc = func(_ uintptr, file string, line int) string {
			base := filepath.Base(file)
			parent := filepath.Base(filepath.Dir(file))
			if parent != "." && parent != "" {
				return parent + "/" + base + ":" + strconv.Itoa(line)
			}
			return base + ":" + strconv.Itoa(line)
		}
	})

	l := zerolog.New(w).With().Timestamp().CallerWithSkipFrameCount(3).Logger()

	zLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		zLevel = zerolog.InfoLevel
	}
	l = l.Level(zLevel)

	return &ZeroLogger{zlog: &l, filter: filter}
}

// Level reports the minimum level this logger emits.
func (l *ZeroLogger) Level() zerolog.Level {
	return l.zlog.GetLevel()
}

// WithFields returns a logger with additional fields attached to all entries.
func (l *ZeroLogger) WithFields(fields map[string]any) Logger {
	if l.filter != nil {
		fields = l.filter.FilterFields(fields)
	}
	log := l.zlog.With().Fields(fields).Logger()
	return &ZeroLogger{zlog: &log, filter: l.filter}
}

// Info starts an info-level event.
func (l *ZeroLogger) Info() LogEvent {
	return &zeroEvent{event: l.zlog.Info(), filter: l.filter}
}

// Error starts an error-level event.
func (l *ZeroLogger) Error() LogEvent {
	return &zeroEvent{event: l.zlog.Error(), filter: l.filter}
}

// Debug starts a debug-level event.
func (l *ZeroLogger) Debug() LogEvent {
	return &zeroEvent{event: l.zlog.Debug(), filter: l.filter}
}

// Warn starts a warn-level event.
func (l *ZeroLogger) Warn() LogEvent {
	return &zeroEvent{event: l.zlog.Warn(), filter: l.filter}
}

// zeroEvent adapts *zerolog.Event to LogEvent. A nil zerolog event (level disabled)
// is safe to call; zerolog turns every method into a no-op.
type zeroEvent struct {
	event  *zerolog.Event
	filter *SensitiveDataFilter
}

func (e *zeroEvent) Msg(msg string) {
	e.event.Msg(msg)
}

func (e *zeroEvent) Msgf(format string, args ...any) {
	e.event.Msgf(format, args...)
}

func (e *zeroEvent) Err(err error) LogEvent {
	e.event = e.event.Err(err)
	return e
}

func (e *zeroEvent) Str(key, value string) LogEvent {
	if e.filter != nil {
		value = e.filter.FilterString(key, value)
	}
	e.event = e.event.Str(key, value)
	return e
}

func (e *zeroEvent) Int(key string, value int) LogEvent {
	e.event = e.event.Int(key, value)
	return e
}

func (e *zeroEvent) Int64(key string, value int64) LogEvent {
	e.event = e.event.Int64(key, value)
	return e
}

func (e *zeroEvent) Bool(key string, value bool) LogEvent {
	e.event = e.event.Bool(key, value)
	return e
}

func (e *zeroEvent) Dur(key string, d time.Duration) LogEvent {
	e.event = e.event.Dur(key, d)
	return e
}

func (e *zeroEvent) Interface(key string, i any) LogEvent {
	if e.filter != nil {
		i = e.filter.FilterValue(key, i)
	}
	e.event = e.event.Interface(key, i)
	return e
}

func (e *zeroEvent) Bytes(key string, val []byte) LogEvent {
	e.event = e.event.Bytes(key, val)
	return e
}
