// Logging setup and configuration
//
// Structured logging framework built on zerolog:
// - Log level management
// - JSON or console output formatting
// - Field standardization via With/WithField
// - Contextual logging
package telemetry

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Logger defines the interface for logging used throughout the proxy.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})

	With(args ...interface{}) Logger
	WithField(key string, value interface{}) Logger
	WithContext(ctx context.Context) Logger
}

// zerologLogger adapts zerolog.Logger to the Logger interface, accepting
// the same variadic key/value pairs the proxy already logs with.
type zerologLogger struct {
	zl zerolog.Logger
}

// NewLogger creates a new Logger. format is "json" or "console"; output is
// "stdout" or "stderr".
func NewLogger(level string, format string, output string) Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	var writer io.Writer
	switch strings.ToLower(output) {
	case "stderr":
		writer = os.Stderr
	default:
		writer = os.Stdout
	}

	var zl zerolog.Logger
	if strings.ToLower(format) == "console" {
		zl = zerolog.New(zerolog.ConsoleWriter{Out: writer}).With().Timestamp().Logger()
	} else {
		zl = zerolog.New(writer).With().Timestamp().Logger()
	}
	zl = zl.Level(parseLevel(level))

	return &zerologLogger{zl: zl}
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (l *zerologLogger) Debug(msg string, args ...interface{}) { l.event(l.zl.Debug(), args).Msg(msg) }
func (l *zerologLogger) Info(msg string, args ...interface{})  { l.event(l.zl.Info(), args).Msg(msg) }
func (l *zerologLogger) Warn(msg string, args ...interface{})  { l.event(l.zl.Warn(), args).Msg(msg) }
func (l *zerologLogger) Error(msg string, args ...interface{}) { l.event(l.zl.Error(), args).Msg(msg) }

func (l *zerologLogger) event(e *zerolog.Event, args []interface{}) *zerolog.Event {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		e = e.Interface(key, args[i+1])
	}
	return e
}

func (l *zerologLogger) With(args ...interface{}) Logger {
	ctx := l.zl.With()
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		ctx = ctx.Interface(key, args[i+1])
	}
	return &zerologLogger{zl: ctx.Logger()}
}

func (l *zerologLogger) WithField(key string, value interface{}) Logger {
	return l.With(key, value)
}

// WithContext returns l unchanged; the proxy does not thread per-request
// trace identifiers through context today, but implements this to satisfy
// the Logger interface other components depend on.
func (l *zerologLogger) WithContext(ctx context.Context) Logger {
	return l
}
