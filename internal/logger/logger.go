package logger

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
)

// LogLevel represents the severity level of a log message
type LogLevel int

const (
	// LevelDebug represents debug level logging
	LevelDebug LogLevel = iota
	// LevelInfo represents informational messages
	LevelInfo
	// LevelWarn represents warning conditions
	LevelWarn
	// LevelError represents error conditions
	LevelError
	// LevelFatal represents severe error conditions that may cause the application to exit
	LevelFatal
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a level name such as "debug" or "WARN" into a LogLevel
func ParseLevel(name string) (LogLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return LevelDebug, nil
	case "INFO", "":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarn, nil
	case "ERROR":
		return LevelError, nil
	case "FATAL":
		return LevelFatal, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level: %s", name)
	}
}

func (l LogLevel) backend() log.Level {
	switch l {
	case LevelDebug:
		return log.DebugLevel
	case LevelWarn:
		return log.WarnLevel
	case LevelError:
		return log.ErrorLevel
	case LevelFatal:
		return log.FatalLevel
	default:
		return log.InfoLevel
	}
}

// Format selects how log lines are rendered
type Format string

const (
	// FormatText renders human-readable lines
	FormatText Format = "text"
	// FormatJSON renders one JSON object per line
	FormatJSON Format = "json"
)

// Logger is the main logger type
type Logger struct {
	base  *log.Logger
	level LogLevel
}

// Config holds the configuration for the logger
type Config struct {
	Level  LogLevel
	Output io.Writer
	Format Format
}

var (
	// DefaultLogger is the default logger instance
	DefaultLogger *Logger
)

func init() {
	DefaultLogger = NewLogger(Config{
		Level:  LevelInfo,
		Output: os.Stderr,
	})
}

// NewLogger creates a new logger instance
func NewLogger(config Config) *Logger {
	if config.Output == nil {
		config.Output = os.Stderr
	}

	formatter := log.TextFormatter
	if config.Format == FormatJSON {
		formatter = log.JSONFormatter
	}

	return &Logger{
		base: log.NewWithOptions(config.Output, log.Options{
			Level:           config.Level.backend(),
			ReportTimestamp: true,
			Formatter:       formatter,
		}),
		level: config.Level,
	}
}

// SetLevel sets the log level
func (l *Logger) SetLevel(level LogLevel) {
	l.level = level
	l.base.SetLevel(level.backend())
}

// GetLevel returns the current log level
func (l *Logger) GetLevel() LogLevel {
	return l.level
}

func (l *Logger) log(level LogLevel, format string, v ...interface{}) {
	if level < l.level {
		return
	}

	l.base.Logf(level.backend(), format, v...)

	// For fatal errors, exit the application
	if level == LevelFatal {
		os.Exit(1)
	}
}

// Debug logs a debug message
func (l *Logger) Debug(format string, v ...interface{}) {
	l.log(LevelDebug, format, v...)
}

// Info logs an informational message
func (l *Logger) Info(format string, v ...interface{}) {
	l.log(LevelInfo, format, v...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, v ...interface{}) {
	l.log(LevelWarn, format, v...)
}

// Error logs an error message
func (l *Logger) Error(format string, v ...interface{}) {
	l.log(LevelError, format, v...)
}

// Fatal logs a fatal error message and exits the application
func (l *Logger) Fatal(format string, v ...interface{}) {
	l.log(LevelFatal, format, v...)
}

// WithFields creates a new logger with additional fields. Fields are
// attached in key order so output is stable.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	keyvals := make([]interface{}, 0, len(fields)*2)
	for _, k := range keys {
		keyvals = append(keyvals, k, fields[k])
	}

	return &Logger{
		base:  l.base.With(keyvals...),
		level: l.level,
	}
}

// Package-level convenience functions

// Debug logs a debug message using the default logger
func Debug(format string, v ...interface{}) {
	DefaultLogger.Debug(format, v...)
}

// Info logs an informational message using the default logger
func Info(format string, v ...interface{}) {
	DefaultLogger.Info(format, v...)
}

// Warn logs a warning message using the default logger
func Warn(format string, v ...interface{}) {
	DefaultLogger.Warn(format, v...)
}

// Error logs an error message using the default logger
func Error(format string, v ...interface{}) {
	DefaultLogger.Error(format, v...)
}

// Fatal logs a fatal error message and exits the application using the default logger
func Fatal(format string, v ...interface{}) {
	DefaultLogger.Fatal(format, v...)
}

// SetDefault replaces the default logger
func SetDefault(l *Logger) {
	if l != nil {
		DefaultLogger = l
	}
}

// WithFields creates a new logger with additional fields using the default logger
func WithFields(fields map[string]interface{}) *Logger {
	return DefaultLogger.WithFields(fields)
}
