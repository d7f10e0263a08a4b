package logger

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level represents the logging level
type Level int

const (
	// DebugLevel logs everything
	DebugLevel Level = iota
	// InfoLevel logs info, warnings, and errors
	InfoLevel
	// WarnLevel logs warnings and errors
	WarnLevel
	// ErrorLevel logs only errors
	ErrorLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "debug"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	default:
		return "info"
	}
}

// Logger is the diagnostic logger used across reportrun. It writes through a
// zap backend when one is configured and falls back to plain timestamped
// lines otherwise (tests, or when zap cannot be built).
type Logger struct {
	level  Level
	output io.Writer
	fields map[string]interface{}
	mu     *sync.Mutex
	zap    *ZapLogger
}

var (
	globalLogger *Logger
	globalMu     sync.Mutex
)

func init() {
	if zapLogger, err := NewZapLogger(ConfigFromEnv()); err == nil {
		globalLogger = &Logger{zap: zapLogger}
	} else {
		globalLogger = New(InfoLevel)
	}
}

// New creates a plain-text logger writing to stderr
func New(level Level) *Logger {
	return &Logger{
		level:  level,
		output: os.Stderr,
		fields: make(map[string]interface{}),
		mu:     &sync.Mutex{},
	}
}

// NewWithWriter creates a plain-text logger writing to w
func NewWithWriter(level Level, w io.Writer) *Logger {
	l := New(level)
	l.output = w
	return l
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return NewWithWriter(ErrorLevel+1, io.Discard)
}

// SetOutput sets the output writer for the plain-text backend
func (l *Logger) SetOutput(w io.Writer) {
	if l.zap != nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.output = w
}

// WithField returns a child logger carrying one extra field
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

// WithFields returns a child logger carrying extra fields
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	if l.zap != nil {
		return &Logger{zap: l.zap.WithFields(fields)}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	child := &Logger{
		level:  l.level,
		output: l.output,
		fields: make(map[string]interface{}, len(l.fields)+len(fields)),
		mu:     l.mu,
	}
	for k, v := range l.fields {
		child.fields[k] = v
	}
	for k, v := range fields {
		child.fields[k] = v
	}
	return child
}

// WithError attaches err under the "error" field
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	if l.zap != nil {
		return &Logger{zap: l.zap.WithError(err)}
	}
	return l.WithField("error", err.Error())
}

// WithDuration attaches a duration field
func (l *Logger) WithDuration(d time.Duration) *Logger {
	if l.zap != nil {
		return &Logger{zap: l.zap.WithDuration(d)}
	}
	return l.WithField("duration_ms", float64(d.Nanoseconds())/1e6)
}

// WithRun attaches the run identity to every line
func (l *Logger) WithRun(runID, kind string) *Logger {
	if l.zap != nil {
		return &Logger{zap: l.zap.WithRun(runID, kind)}
	}
	return l.WithFields(map[string]interface{}{"run_id": runID, "kind": kind})
}

// Enabled reports whether messages at level would be written
func (l *Logger) Enabled(level Level) bool {
	if l.zap != nil {
		return l.zap.enabled(level)
	}
	return level >= l.level
}

func (l *Logger) log(level Level, format string, args ...interface{}) {
	if level < l.level {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	line := fmt.Sprintf("%s [%s] %s",
		time.Now().Format("2006-01-02 15:04:05.000"),
		strings.ToUpper(level.String()),
		fmt.Sprintf(format, args...))

	if len(l.fields) > 0 {
		keys := make([]string, 0, len(l.fields))
		for k := range l.fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			line += fmt.Sprintf(" %s=%v", k, l.fields[k])
		}
	}

	_, _ = fmt.Fprintln(l.output, line)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string) {
	if l.zap != nil {
		l.zap.Debug(msg)
		return
	}
	l.log(DebugLevel, "%s", msg)
}

// Debugf logs a formatted debug message
func (l *Logger) Debugf(format string, args ...interface{}) {
	if l.zap != nil {
		l.zap.Debugf(format, args...)
		return
	}
	l.log(DebugLevel, format, args...)
}

// Info logs an info message
func (l *Logger) Info(msg string) {
	if l.zap != nil {
		l.zap.Info(msg)
		return
	}
	l.log(InfoLevel, "%s", msg)
}

// Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	if l.zap != nil {
		l.zap.Infof(format, args...)
		return
	}
	l.log(InfoLevel, format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string) {
	if l.zap != nil {
		l.zap.Warn(msg)
		return
	}
	l.log(WarnLevel, "%s", msg)
}

// Warnf logs a formatted warning message
func (l *Logger) Warnf(format string, args ...interface{}) {
	if l.zap != nil {
		l.zap.Warnf(format, args...)
		return
	}
	l.log(WarnLevel, format, args...)
}

// Error logs an error message
func (l *Logger) Error(msg string) {
	if l.zap != nil {
		l.zap.Error(msg)
		return
	}
	l.log(ErrorLevel, "%s", msg)
}

// Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	if l.zap != nil {
		l.zap.Errorf(format, args...)
		return
	}
	l.log(ErrorLevel, format, args...)
}

// Timed logs the start of operation at debug level and returns a function
// that records its outcome and duration.
func (l *Logger) Timed(operation string) func(err error) {
	if l.zap != nil {
		return l.zap.Timed(operation).Done
	}
	start := time.Now()
	l.Debugf("Operation started: %s", operation)
	return func(err error) {
		child := l.WithDuration(time.Since(start))
		if err != nil {
			child.WithError(err).Infof("Operation failed: %s", operation)
			return
		}
		child.Debugf("Operation completed: %s", operation)
	}
}

// Sync flushes the zap backend, if any
func (l *Logger) Sync() error {
	if l.zap != nil {
		return l.zap.Sync()
	}
	return nil
}

// GetLogger returns the global logger instance
func GetLogger() *Logger {
	globalMu.Lock()
	defer globalMu.Unlock()
	return globalLogger
}

// SetLogger sets the global logger instance
func SetLogger(logger *Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = logger
}

// LevelFromString converts a string to a log level
func LevelFromString(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}
