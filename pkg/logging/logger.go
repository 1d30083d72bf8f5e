// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-sigauth.
//
// go-sigauth is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package logging provides the structured logger shared by every component
// of the handshake. Records are written through log/slog; error records are
// additionally persisted to an error log so that a report can be exported
// when the process shuts down.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config controls logger construction.
type Config struct {
	// Level is one of debug, info, warn, error. Defaults to info.
	Level string

	// Format is text or json. Defaults to text.
	Format string

	// Output receives log records. Defaults to os.Stderr.
	Output io.Writer

	// ErrorLog is the path of the persistent error log. Optional.
	ErrorLog string

	// ReportPath is where Close exports the error report. Optional,
	// requires ErrorLog.
	ReportPath string
}

// Logger provides logging functionality for authentication operations.
type Logger struct {
	logger *slog.Logger
	debug  bool
	errors *errorSink
	attrs  []any
}

// New creates a logger from cfg. The caller owns the returned logger and
// must call Close at shutdown.
func New(cfg Config) (*Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "", "text", "console":
		handler = slog.NewTextHandler(out, opts)
	case "json":
		handler = slog.NewJSONHandler(out, opts)
	default:
		return nil, fmt.Errorf("logging: invalid format %q", cfg.Format)
	}

	l := &Logger{
		logger: slog.New(handler),
		debug:  level <= slog.LevelDebug,
	}
	if cfg.ErrorLog != "" {
		sink, err := openErrorSink(cfg.ErrorLog, cfg.ReportPath)
		if err != nil {
			return nil, err
		}
		l.errors = sink
	}
	return l, nil
}

// NewLogger creates a text logger on stderr without error persistence.
func NewLogger(debug bool) *Logger {
	level := "info"
	if debug {
		level = "debug"
	}
	l, _ := New(Config{Level: level})
	return l
}

// DefaultLogger returns a default logger instance with debug=false
func DefaultLogger() *Logger {
	return NewLogger(false)
}

// Discard returns a logger that drops every record.
func Discard() *Logger {
	return &Logger{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// ParseLevel converts a level name into a slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("logging: invalid level %q", level)
	}
}

// With returns a logger that adds args to every record. The returned logger
// shares the error log of its parent.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		logger: l.logger.With(args...),
		debug:  l.debug,
		errors: l.errors,
		attrs:  append(l.attrs[:len(l.attrs):len(l.attrs)], args...),
	}
}

// Info logs an informational message
func (l *Logger) Info(msg string, args ...any) {
	l.logger.Info(msg, args...)
}

// Infof logs a formatted informational message
func (l *Logger) Infof(format string, args ...any) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, args ...any) {
	if l.debug {
		l.logger.Debug(msg, args...)
	}
}

// Debugf logs a formatted debug message
func (l *Logger) Debugf(format string, args ...any) {
	if l.debug {
		l.logger.Debug(fmt.Sprintf(format, args...))
	}
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, args ...any) {
	l.logger.Warn(msg, args...)
}

// Warnf logs a formatted warning message
func (l *Logger) Warnf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

// Error logs an error message and persists it to the error log.
func (l *Logger) Error(msg string, args ...any) {
	l.logError(msg, args)
}

// Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...any) {
	l.logError(fmt.Sprintf(format, args...), nil)
}

// MaybeError logs an error if it's not nil
func (l *Logger) MaybeError(err error) {
	if err != nil {
		l.logError(err.Error(), nil)
	}
}

// logError must be called directly by an exported method so the error log
// reports the caller of that method.
func (l *Logger) logError(msg string, args []any) {
	l.logger.Error(msg, args...)
	if l.errors != nil {
		persisted := args
		if len(l.attrs) > 0 {
			persisted = append(append([]any(nil), l.attrs...), args...)
		}
		l.errors.record(2, msg, persisted)
	}
}

// Enabled reports whether records at level would be emitted.
func (l *Logger) Enabled(level slog.Level) bool {
	return l.logger.Enabled(context.Background(), level)
}

// Close flushes the error log and exports the error report, if configured.
// Calling Close more than once is safe.
func (l *Logger) Close() error {
	if l.errors == nil {
		return nil
	}
	return l.errors.close()
}
