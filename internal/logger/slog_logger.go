package logger

import (
	"io"
	"log/slog"
	"os"
	"time"
)

// NewSlogLogger returns a standalone Logger writing JSON records to w.
// A nil writer means stdout and a nil timezone means UTC. Intended for
// tests and for commands that run before the configuration is loaded.
func NewSlogLogger(w io.Writer, level LogLevel, tz *time.Location) Logger {
	if w == nil {
		w = os.Stdout
	}
	if tz == nil {
		tz = time.UTC
	}
	slevel := parseSlogLevel(level)
	return &moduleLogger{
		logger: slog.New(newJSONHandler(w, slevel, tz)),
		level:  slevel,
	}
}

// NewDiscardLogger returns a Logger that drops everything
func NewDiscardLogger() Logger {
	return NewSlogLogger(io.Discard, LogLevelError, nil)
}
