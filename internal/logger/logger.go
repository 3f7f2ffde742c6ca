// Package logger provides structured logging for careledger, wrapping
// zerolog.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps a zerolog logger. The zero value is unusable; use New or Nop.
type Logger struct {
	zlog zerolog.Logger
}

// Config holds logger configuration.
type Config struct {
	Level  string // debug, info, warn, error
	Pretty bool   // console writer for interactive use
	Output io.Writer
}

// New creates a structured logger.
func New(cfg Config) *Logger {
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}

	zlog := zerolog.New(output).Level(level).With().Timestamp().
		Str("service", "careledger").Logger()
	return &Logger{zlog: zlog}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zlog: zerolog.Nop()}
}

// Debug starts a debug-level event.
func (l *Logger) Debug() *zerolog.Event { return l.zlog.Debug() }

// Info starts an info-level event.
func (l *Logger) Info() *zerolog.Event { return l.zlog.Info() }

// Warn starts a warn-level event.
func (l *Logger) Warn() *zerolog.Event { return l.zlog.Warn() }

// Error starts an error-level event.
func (l *Logger) Error() *zerolog.Event { return l.zlog.Error() }

// WithStore returns a logger carrying the store name and process identity on
// every event.
func (l *Logger) WithStore(name, processID string) *Logger {
	return &Logger{
		zlog: l.zlog.With().
			Str("store", name).
			Str("process", processID).
			Logger(),
	}
}
