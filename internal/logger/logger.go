// Package logger provides leveled logging with support for trace, debug, info, warn, and error levels.
// It wraps the standard log package to provide level-based filtering and formatted output.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// Level represents a logging level
type Level int

const (
	// TraceLevel logs every routine decision, e.g. each skipped record.
	TraceLevel Level = iota
	// DebugLevel logs are typically voluminous, and are usually disabled.
	DebugLevel
	// InfoLevel is the default logging priority.
	InfoLevel
	// WarnLevel flags data-quality issues that don't stop processing.
	WarnLevel
	// ErrorLevel logs are high-priority. A clean run shouldn't generate any error-level logs.
	ErrorLevel
	// SilentLevel suppresses all output.
	SilentLevel
)

// Logger provides leveled logging
type Logger struct {
	level  Level
	logger *log.Logger
}

var (
	// Global logger instance
	defaultLogger *Logger
	mu            sync.RWMutex
)

// ParseLevel maps a level name to a Level, defaulting to InfoLevel.
func ParseLevel(level string) Level {
	if l, ok := LookupLevel(level); ok {
		return l
	}
	return InfoLevel
}

// LookupLevel maps a level name to a Level and reports whether the name is
// known.
func LookupLevel(level string) (Level, bool) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return TraceLevel, true
	case "debug":
		return DebugLevel, true
	case "info":
		return InfoLevel, true
	case "warn", "warning":
		return WarnLevel, true
	case "error":
		return ErrorLevel, true
	case "silent", "quiet", "off":
		return SilentLevel, true
	default:
		return InfoLevel, false
	}
}

// FromVerbosity derives the level from -v counts and the quiet flag.
// Quiet always wins over verbose.
func FromVerbosity(base Level, verbose int, quiet bool) Level {
	if quiet {
		return SilentLevel
	}
	l := base - Level(verbose)
	if l < TraceLevel {
		l = TraceLevel
	}
	return l
}

// Init initializes the default logger with the specified level and format
func Init(level string, format string) {
	InitWithWriter(ParseLevel(level), format, os.Stderr)
}

// InitWithWriter initializes the default logger writing to w.
func InitWithWriter(level Level, format string, w io.Writer) {
	// Set log flags based on format
	flags := 0
	switch strings.ToLower(format) {
	case "timestamp":
		flags = log.LstdFlags | log.Lmicroseconds
	case "source":
		flags = log.LstdFlags | log.Lmicroseconds | log.Lshortfile
	}

	mu.Lock()
	defer mu.Unlock()
	defaultLogger = &Logger{
		level:  level,
		logger: log.New(w, "", flags),
	}
}

// Enabled reports whether messages at level l would be written.
func Enabled(l Level) bool {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger != nil && defaultLogger.level <= l && l < SilentLevel
}

func output(l Level, tag, format string, args ...interface{}) {
	if !Enabled(l) {
		return
	}
	msg := fmt.Sprintf(tag+format, args...)
	mu.RLock()
	defer mu.RUnlock()
	_ = defaultLogger.logger.Output(3, msg)
}

// Trace logs a message at TraceLevel
func Trace(format string, args ...interface{}) {
	output(TraceLevel, "[TRACE] ", format, args...)
}

// Debug logs a message at DebugLevel
func Debug(format string, args ...interface{}) {
	output(DebugLevel, "[DEBUG] ", format, args...)
}

// Info logs a message at InfoLevel
func Info(format string, args ...interface{}) {
	output(InfoLevel, "[INFO] ", format, args...)
}

// Warn logs a message at WarnLevel
func Warn(format string, args ...interface{}) {
	output(WarnLevel, "[WARN] ", format, args...)
}

// Error logs a message at ErrorLevel
func Error(format string, args ...interface{}) {
	output(ErrorLevel, "[ERROR] ", format, args...)
}

// Fatal logs a message at ErrorLevel and exits
func Fatal(format string, args ...interface{}) {
	msg := fmt.Sprintf("[FATAL] "+format, args...)
	mu.RLock()
	l := defaultLogger
	mu.RUnlock()
	if l != nil {
		_ = l.logger.Output(2, msg)
	} else {
		log.Print(msg)
	}
	os.Exit(1)
}
