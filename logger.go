package ultravox

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
)

// LogLevel represents the severity level of a log message.
type LogLevel int

const (
	// LogLevelDebug logs everything including per-message dispatch details.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo logs informational messages and above.
	LogLevelInfo
	// LogLevelWarn logs warnings and above.
	LogLevelWarn
	// LogLevelError logs only errors.
	LogLevelError
	// LogLevelOff disables all logging.
	LogLevelOff
)

// String returns the string representation of a LogLevel.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	case LogLevelOff:
		return "OFF"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel converts a string to a LogLevel. Unrecognized values
// default to LogLevelInfo.
func ParseLogLevel(level string) LogLevel {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return LogLevelDebug
	case "INFO":
		return LogLevelInfo
	case "WARN", "WARNING":
		return LogLevelWarn
	case "ERROR":
		return LogLevelError
	case "OFF":
		return LogLevelOff
	default:
		return LogLevelInfo
	}
}

// Logger provides structured logging with configurable levels.
type Logger struct {
	level  LogLevel
	prefix string
	logger *log.Logger
}

// NewLogger creates a new structured logger writing to stderr.
func NewLogger(level LogLevel) *Logger {
	return &Logger{
		level:  level,
		prefix: "[ultravox]",
		logger: log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds),
	}
}

// NewLoggerFromEnv creates a logger with its level taken from the
// ULTRAVOX_LOG_LEVEL environment variable.
func NewLoggerFromEnv() *Logger {
	return NewLogger(ParseLogLevel(os.Getenv("ULTRAVOX_LOG_LEVEL")))
}

// SetLevel updates the logger's minimum level.
func (l *Logger) SetLevel(level LogLevel) { l.level = level }

// SetPrefix updates the logger's prefix.
func (l *Logger) SetPrefix(prefix string) { l.prefix = prefix }

// Debug logs debug-level messages.
func (l *Logger) Debug(event string, fields map[string]any) { l.log(LogLevelDebug, event, fields) }

// Info logs info-level messages.
func (l *Logger) Info(event string, fields map[string]any) { l.log(LogLevelInfo, event, fields) }

// Warn logs warning-level messages.
func (l *Logger) Warn(event string, fields map[string]any) { l.log(LogLevelWarn, event, fields) }

// Error logs error-level messages.
func (l *Logger) Error(event string, fields map[string]any) { l.log(LogLevelError, event, fields) }

func (l *Logger) log(level LogLevel, event string, fields map[string]any) {
	if level < l.level {
		return
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] %s", l.prefix, level.String(), event)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, fields[k])
	}
	l.logger.Print(b.String())
}

// LoggerFunc adapts the logger to the plain Config.Logger callback shape.
func (l *Logger) LoggerFunc() func(string, map[string]any) {
	return func(event string, fields map[string]any) {
		l.Info(event, fields)
	}
}
