// Package log is the level-gated logger shared by the tuner packages.
//
// The level is global and read atomically so that hot paths can call the
// gated functions without synchronisation. Component loggers obtained from
// For prefix every line with the component name.
package log

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync/atomic"
)

// LogLevel defines the severity of a log message.
type LogLevel uint32

// Constants for log levels.
const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// String returns the string representation of the LogLevel.
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

// ParseLevel converts a string (case-insensitive) to a LogLevel.
// Returns LevelInfo and false if the string is not recognized.
func ParseLevel(levelStr string) (LogLevel, bool) {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	case "FATAL":
		return LevelFatal, true
	default:
		return LevelInfo, false
	}
}

// --- Global Logger State ---

var currentLevel atomic.Uint32

// logger shows date and time with microseconds.
var logger = stdlog.New(os.Stderr, "", stdlog.Ldate|stdlog.Ltime|stdlog.Lmicroseconds)

func init() {
	SetLevel(LevelInfo)
}

// SetLevel sets the global logging level atomically.
func SetLevel(level LogLevel) {
	currentLevel.Store(uint32(level))
}

// GetLevel gets the current global logging level atomically.
func GetLevel() LogLevel {
	return LogLevel(currentLevel.Load())
}

// SetOutput redirects all log output. Tests use it to capture lines.
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

// Writer returns the current log destination, for libraries that take an
// io.Writer or a *log.Logger.
func Writer() io.Writer {
	return logger.Writer()
}

func shouldLog(level LogLevel) bool {
	return level >= GetLevel()
}

// --- Component loggers ---

// Logger prefixes every message with a component name.
type Logger struct {
	component string
}

// std backs the package-level functions and has no prefix.
var std = &Logger{}

// For returns a logger for the named component, e.g. For("buffer").
func For(component string) *Logger {
	return &Logger{component: component}
}

func (l *Logger) logf(level LogLevel, format string, v []any) {
	if !shouldLog(level) {
		return
	}
	msg := fmt.Sprintf(format, v...)
	if l.component != "" {
		msg = l.component + ": " + msg
	}
	logger.Printf("[%-5s] %s", level, msg)
}

func (l *Logger) Debugf(format string, v ...any) { l.logf(LevelDebug, format, v) }
func (l *Logger) Infof(format string, v ...any)  { l.logf(LevelInfo, format, v) }
func (l *Logger) Warnf(format string, v ...any)  { l.logf(LevelWarn, format, v) }
func (l *Logger) Errorf(format string, v ...any) { l.logf(LevelError, format, v) }

// --- Public Logging Functions ---

func Debugf(format string, v ...any) { std.logf(LevelDebug, format, v) }
func Infof(format string, v ...any)  { std.logf(LevelInfo, format, v) }
func Warnf(format string, v ...any)  { std.logf(LevelWarn, format, v) }
func Errorf(format string, v ...any) { std.logf(LevelError, format, v) }

// Fatalf logs a formatted fatal message and exits the application.
// Fatal messages are always logged regardless of the current level.
func Fatalf(format string, v ...any) {
	logger.Fatalf("[%-5s] %s", LevelFatal, fmt.Sprintf(format, v...))
}
