package arbiter

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

// Logger is the interface that wraps the basic logging methods.
type Logger interface {
	// Debug logs a debug message.
	Debug(ctx context.Context, msg string, args ...any)
	// Info logs an info message.
	Info(ctx context.Context, msg string, args ...any)
	// Warn logs a warning message.
	Warn(ctx context.Context, msg string, args ...any)
	// Error logs an error message.
	Error(ctx context.Context, msg string, args ...any)
}

// zerologLogger adapts a zerolog.Logger to the Logger interface.
type zerologLogger struct {
	log zerolog.Logger
}

// NewZerologLogger returns a Logger writing through the given zerolog logger.
func NewZerologLogger(log zerolog.Logger) Logger {
	return &zerologLogger{log: log}
}

// newDefaultLogger creates a new default logger.
func newDefaultLogger() *zerologLogger {
	return &zerologLogger{
		log: zerolog.New(os.Stderr).With().Timestamp().Str("component", "arbiter").Logger().Level(zerolog.InfoLevel),
	}
}

func (l *zerologLogger) emit(e *zerolog.Event, msg string, args []any) {
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	e.Msg(msg)
}

func (l *zerologLogger) Debug(ctx context.Context, msg string, args ...any) {
	l.emit(l.log.Debug().Ctx(ctx), msg, args)
}

func (l *zerologLogger) Info(ctx context.Context, msg string, args ...any) {
	l.emit(l.log.Info().Ctx(ctx), msg, args)
}

func (l *zerologLogger) Warn(ctx context.Context, msg string, args ...any) {
	l.emit(l.log.Warn().Ctx(ctx), msg, args)
}

func (l *zerologLogger) Error(ctx context.Context, msg string, args ...any) {
	l.emit(l.log.Error().Ctx(ctx), msg, args)
}

// NoopLogger is a logger that does nothing.
type NoopLogger struct{}

func (l *NoopLogger) Debug(ctx context.Context, msg string, args ...any) {}
func (l *NoopLogger) Info(ctx context.Context, msg string, args ...any)  {}
func (l *NoopLogger) Warn(ctx context.Context, msg string, args ...any)  {}
func (l *NoopLogger) Error(ctx context.Context, msg string, args ...any) {}
