package logging

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	// LevelDebug is the debug log level
	LevelDebug LogLevel = iota
	// LevelInfo is the info log level
	LevelInfo
	// LevelWarn is the warning log level
	LevelWarn
	// LevelError is the error log level
	LevelError
)

var (
	currentLevel LogLevel
	levelOnce    sync.Once
)

func initLevel() {
	levelOnce.Do(func() {
		currentLevel = ParseLevel(os.Getenv("LOG_LEVEL"))

		switch strings.ToLower(os.Getenv("DEBUG")) {
		case "1", "true", "yes", "on":
			currentLevel = LevelDebug
		}
	})
}

// ParseLevel converts a level name to a LogLevel. Unknown names map to info.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// GetLevel returns the current log level
func GetLevel() LogLevel {
	initLevel()
	return currentLevel
}

// IsDebugEnabled returns true if debug logging is enabled
func IsDebugEnabled() bool {
	return GetLevel() <= LevelDebug
}

// Debug logs a debug message (only if DEBUG=true or LOG_LEVEL=debug)
func Debug(format string, args ...interface{}) {
	if GetLevel() <= LevelDebug {
		log.Printf("[DEBUG] "+format, args...)
	}
}

// Info logs an info message
func Info(format string, args ...interface{}) {
	if GetLevel() <= LevelInfo {
		log.Printf("[INFO] "+format, args...)
	}
}

// Warn logs a warning message
func Warn(format string, args ...interface{}) {
	if GetLevel() <= LevelWarn {
		log.Printf("[WARN] "+format, args...)
	}
}

// Error logs an error message
func Error(format string, args ...interface{}) {
	if GetLevel() <= LevelError {
		log.Printf("[ERROR] "+format, args...)
	}
}

// Fatal logs an error message and exits
func Fatal(format string, args ...interface{}) {
	log.Fatalf("[FATAL] "+format, args...)
}

// Printf always prints, regardless of level.
func Printf(format string, args ...interface{}) {
	log.Printf(format, args...)
}

// Fields is contextual data attached to a log line.
type Fields map[string]interface{}

// String renders the fields as space separated key=value pairs in key order.
// Values containing spaces are quoted.
func (f Fields) String() string {
	if len(f) == 0 {
		return ""
	}

	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		v := fmt.Sprint(f[k])
		if strings.ContainsAny(v, " \t\"") {
			v = fmt.Sprintf("%q", v)
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(v)
	}
	return b.String()
}

// ErrorWith logs an error message followed by its context fields.
func ErrorWith(fields Fields, format string, args ...interface{}) {
	Error(withFields(format, fields), args...)
}

// WarnWith logs a warning followed by its context fields.
func WarnWith(fields Fields, format string, args ...interface{}) {
	Warn(withFields(format, fields), args...)
}

func InfoWith(fields Fields, format string, args ...interface{}) {
	Info(withFields(format, fields), args...)
}

// DebugWith logs a debug message followed by its context fields.
func DebugWith(fields Fields, format string, args ...interface{}) {
	Debug(withFields(format, fields), args...)
}

func withFields(format string, fields Fields) string {
	if len(fields) == 0 {
		return format
	}
	// Escape so field values cannot be read as verbs.
	return format + " " + strings.ReplaceAll(fields.String(), "%", "%%")
}

// String returns the string representation of a log level
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", l)
	}
}
