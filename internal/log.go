package internal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// LogLevel represents different logging verbosity levels
type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
	LogLevelTrace
)

// slogLevelTrace sits below slog.LevelDebug
const slogLevelTrace = slog.Level(-8)

// Logger provides leveled printf-style logging over a tint handler
type Logger struct {
	level LogLevel
	log   *slog.Logger
}

// NewLogger creates a new logger with the specified level writing to stderr
func NewLogger(level LogLevel) *Logger {
	return NewLoggerTo(os.Stderr, level, false)
}

// NewLoggerTo creates a logger writing to w. noColor disables ANSI colours.
func NewLoggerTo(w io.Writer, level LogLevel, noColor bool) *Logger {
	handler := tint.NewHandler(w, &tint.Options{
		Level:      level.slog(),
		TimeFormat: time.Kitchen,
		NoColor:    noColor,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey && a.Value.Any() == slogLevelTrace {
				return slog.String(a.Key, "TRC")
			}
			return a
		},
	})
	return &Logger{level: level, log: slog.New(handler)}
}

// NewDefaultLogger creates a logger based on LOG_LEVEL environment variable
func NewDefaultLogger() *Logger {
	level, _ := ParseLogLevel(os.Getenv("LOG_LEVEL"))
	return NewLoggerTo(os.Stderr, level, os.Getenv("NO_COLOR") != "")
}

// ParseLogLevel maps ERROR, WARN, INFO, DEBUG and TRACE to a level.
// Unknown or empty values yield LogLevelInfo and false.
func ParseLogLevel(s string) (LogLevel, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ERROR":
		return LogLevelError, true
	case "WARN":
		return LogLevelWarn, true
	case "INFO":
		return LogLevelInfo, true
	case "DEBUG":
		return LogLevelDebug, true
	case "TRACE":
		return LogLevelTrace, true
	}
	return LogLevelInfo, false
}

func (l LogLevel) slog() slog.Level {
	switch l {
	case LogLevelError:
		return slog.LevelError
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelTrace:
		return slogLevelTrace
	default:
		return slog.LevelInfo
	}
}

// Error logs error messages
func (l *Logger) Error(format string, args ...interface{}) {
	if l.level >= LogLevelError {
		l.log.Error(fmt.Sprintf(format, args...))
	}
}

// Warn logs warning messages
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.level >= LogLevelWarn {
		l.log.Warn(fmt.Sprintf(format, args...))
	}
}

// Info logs info messages
func (l *Logger) Info(format string, args ...interface{}) {
	if l.level >= LogLevelInfo {
		l.log.Info(fmt.Sprintf(format, args...))
	}
}

// Debug logs debug messages
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.level >= LogLevelDebug {
		l.log.Debug(fmt.Sprintf(format, args...))
	}
}

// Trace logs trace messages
func (l *Logger) Trace(format string, args ...interface{}) {
	if l.level >= LogLevelTrace {
		l.log.Log(context.Background(), slogLevelTrace, fmt.Sprintf(format, args...))
	}
}

// GetLevel returns the current log level
func (l *Logger) GetLevel() LogLevel {
	return l.level
}

// Slog exposes the underlying structured logger
func (l *Logger) Slog() *slog.Logger {
	return l.log
}

// Global logger instance
var DefaultLogger = NewDefaultLogger()
