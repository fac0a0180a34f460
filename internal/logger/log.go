package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
)

type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
	FATAL
	NONE
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	case NONE:
		return "NONE"
	default:
		return "UNKNOWN"
	}
}

// slogLevel maps a Level onto the slog scale. FATAL sits above ERROR.
func (l Level) slogLevel() slog.Level {
	switch l {
	case DEBUG:
		return slog.LevelDebug
	case INFO:
		return slog.LevelInfo
	case WARN:
		return slog.LevelWarn
	case ERROR:
		return slog.LevelError
	default:
		return slog.LevelError + 4
	}
}

// ParseLevel converts a textual level ("debug", "WARN", ...) into a Level.
// Unknown values disable logging.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "trace":
		return DEBUG
	case "info":
		return INFO
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	case "fatal":
		return FATAL
	default:
		return NONE
	}
}

// LevelFromEnv reads a level from the named environment variable, falling
// back to def when it is unset.
func LevelFromEnv(name string, def Level) Level {
	if envLevel := os.Getenv(name); envLevel != "" {
		return ParseLevel(envLevel)
	}
	return def
}

// Logger is a leveled component logger. Records are written through
// slog.Default() at call time so the handler installed by the binary applies.
type Logger struct {
	mu     sync.RWMutex
	level  Level
	prefix string
	attrs  []any
}

// NewLogger creates a new logger instance
func NewLogger(prefix string, level Level) *Logger {
	return &Logger{
		level:  level,
		prefix: prefix,
	}
}

// SetLevel sets the minimum log level
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *Logger) Level() Level {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level
}

// With returns a child logger carrying extra key-value attributes.
func (l *Logger) With(args ...any) *Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	attrs := make([]any, 0, len(l.attrs)+len(args))
	attrs = append(attrs, l.attrs...)
	attrs = append(attrs, args...)
	return &Logger{level: l.level, prefix: l.prefix, attrs: attrs}
}

func (l *Logger) Enabled(level Level) bool {
	return level < NONE && level >= l.Level()
}

func (l *Logger) emit(level Level, msg string, args ...any) {
	if !l.Enabled(level) {
		return
	}
	all := make([]any, 0, len(l.attrs)+len(args)+2)
	all = append(all, slog.String("component", l.prefix))
	all = append(all, l.attrs...)
	all = append(all, args...)
	slog.Default().Log(context.Background(), level.slogLevel(), msg, all...)
}

// Log emits msg at an arbitrary level. FATAL is logged but does not exit.
func (l *Logger) Log(level Level, msg string, args ...any) { l.emit(level, msg, args...) }

func (l *Logger) Debug(msg string, args ...any) { l.emit(DEBUG, msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.emit(INFO, msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.emit(WARN, msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.emit(ERROR, msg, args...) }

func (l *Logger) Debugf(format string, v ...any) { l.emitf(DEBUG, format, v...) }
func (l *Logger) Infof(format string, v ...any)  { l.emitf(INFO, format, v...) }
func (l *Logger) Warnf(format string, v ...any)  { l.emitf(WARN, format, v...) }
func (l *Logger) Errorf(format string, v ...any) { l.emitf(ERROR, format, v...) }
func (l *Logger) Fatalf(format string, v ...any) {
	l.emitf(FATAL, format, v...)
	os.Exit(1)
}

func (l *Logger) emitf(level Level, format string, v ...any) {
	if !l.Enabled(level) {
		return
	}
	l.emit(level, fmt.Sprintf(format, v...))
}
