// Package logging provides the structured logger shared by services and adapters
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger to provide a consistent interface
type Logger struct {
	zerolog.Logger
}

// ParseLevel maps a config level name to a zerolog level, defaulting to info
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// New creates a console logger on stderr with the specified level
func New(level string) *Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}
	return NewWithOutput(level, output)
}

// NewJSON creates a JSON logger on stderr, used when the server runs unattended
func NewJSON(level string) *Logger {
	return NewWithOutput(level, os.Stderr)
}

// NewWithOutput creates a logger writing to a specific output
func NewWithOutput(level string, w io.Writer) *Logger {
	logger := zerolog.New(w).
		Level(ParseLevel(level)).
		With().
		Timestamp().
		Logger()

	return &Logger{Logger: logger}
}

// NewSilent creates a logger that discards all output
func NewSilent() *Logger {
	return &Logger{Logger: zerolog.New(io.Discard)}
}

// WithComponent returns a child logger tagged with the component name
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{Logger: l.With().Str("component", name).Logger()}
}

// OrSilent returns l, or a silent logger when l is nil
func OrSilent(l *Logger) *Logger {
	if l == nil {
		return NewSilent()
	}
	return l
}
