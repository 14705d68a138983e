package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Level represents log severity levels
type Level = zerolog.Level

const (
	DEBUG = zerolog.DebugLevel
	INFO  = zerolog.InfoLevel
	WARN  = zerolog.WarnLevel
	ERROR = zerolog.ErrorLevel
	FATAL = zerolog.FatalLevel
)

// ParseLevel converts a string to a Level, falling back to INFO
func ParseLevel(s string) Level {
	switch strings.ToUpper(s) {
	case "WARNING":
		return WARN
	}
	level, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil || level == zerolog.NoLevel {
		return INFO
	}
	return level
}

// Logger is a structured logger
type Logger struct {
	zl zerolog.Logger
}

// Config holds logger configuration
type Config struct {
	Level       string    `json:"level" yaml:"level" toml:"level"`
	Output      string    `json:"output" yaml:"output" toml:"output"` // "stdout", "stderr", or file path
	Component   string    `json:"component" yaml:"component" toml:"component"`
	IncludeFile bool      `json:"include_file" yaml:"include_file" toml:"include_file"` // Include file and line number
	JSONFormat  bool      `json:"json_format" yaml:"json_format" toml:"json_format"`    // Output as JSON
	Writer      io.Writer `json:"-" yaml:"-" toml:"-"`                                  // Overrides Output when set
}

var (
	defaultLogger *Logger
	defaultMu     sync.RWMutex
	once          sync.Once
)

// New creates a new logger with the given configuration
func New(cfg *Config) *Logger {
	var output io.Writer = os.Stdout

	switch {
	case cfg.Writer != nil:
		output = cfg.Writer
	case cfg.Output == "stderr":
		output = os.Stderr
	case cfg.Output != "" && cfg.Output != "stdout":
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err == nil {
			output = file
		}
	}

	if !cfg.JSONFormat {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}

	ctx := zerolog.New(output).Level(ParseLevel(cfg.Level)).With().Timestamp()
	if cfg.Component != "" {
		ctx = ctx.Str("component", cfg.Component)
	}
	if cfg.IncludeFile {
		ctx = ctx.CallerWithSkipFrameCount(3)
	}

	return &Logger{zl: ctx.Logger()}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// Default returns the default logger instance
func Default() *Logger {
	once.Do(func() {
		defaultMu.Lock()
		defer defaultMu.Unlock()
		if defaultLogger == nil {
			defaultLogger = New(&Config{
				Level:      "INFO",
				Output:     "stdout",
				Component:  "app",
				JSONFormat: true,
			})
		}
	})
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// SetDefault sets the default logger
func SetDefault(l *Logger) {
	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
}

// Zerolog exposes the underlying zerolog logger
func (l *Logger) Zerolog() zerolog.Logger {
	return l.zl
}

// WithComponent returns a logger with the component field set
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{zl: l.zl.With().Str("component", component).Logger()}
}

// WithTraceID returns a logger with a trace ID
func (l *Logger) WithTraceID(traceID string) *Logger {
	return &Logger{zl: l.zl.With().Str("trace_id", traceID).Logger()}
}

// WithField returns a logger with an additional field
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{zl: l.zl.With().Interface(key, value).Logger()}
}

// WithFields returns a logger with additional fields
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return &Logger{zl: l.zl.With().Fields(fields).Logger()}
}

// WithError returns a logger with an error field
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return &Logger{zl: l.zl.With().Err(err).Logger()}
}

// WithDuration returns a logger with a duration field
func (l *Logger) WithDuration(d time.Duration) *Logger {
	return &Logger{zl: l.zl.With().Str("duration", d.String()).Logger()}
}

// log writes msg with alternating key/value args as fields
func (l *Logger) log(event *zerolog.Event, msg string, args ...interface{}) {
	if event == nil {
		return
	}
	for i := 0; i < len(args); i += 2 {
		key := fmt.Sprintf("%v", args[i])
		if i+1 >= len(args) {
			event = event.Interface("extra", args[i])
			break
		}
		if err, ok := args[i+1].(error); ok {
			event = event.AnErr(key, err)
			continue
		}
		event = event.Interface(key, args[i+1])
	}
	event.Msg(msg)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, args ...interface{}) {
	l.log(l.zl.Debug(), msg, args...)
}

// Info logs an info message
func (l *Logger) Info(msg string, args ...interface{}) {
	l.log(l.zl.Info(), msg, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, args ...interface{}) {
	l.log(l.zl.Warn(), msg, args...)
}

// Error logs an error message
func (l *Logger) Error(msg string, args ...interface{}) {
	l.log(l.zl.Error(), msg, args...)
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(msg string, args ...interface{}) {
	l.log(l.zl.Fatal(), msg, args...)
}

// Package-level convenience functions

func Debug(msg string, args ...interface{}) {
	Default().Debug(msg, args...)
}

func Info(msg string, args ...interface{}) {
	Default().Info(msg, args...)
}

func Warn(msg string, args ...interface{}) {
	Default().Warn(msg, args...)
}

func Error(msg string, args ...interface{}) {
	Default().Error(msg, args...)
}

func Fatal(msg string, args ...interface{}) {
	Default().Fatal(msg, args...)
}

func WithComponent(component string) *Logger {
	return Default().WithComponent(component)
}

func WithTraceID(traceID string) *Logger {
	return Default().WithTraceID(traceID)
}

func WithField(key string, value interface{}) *Logger {
	return Default().WithField(key, value)
}

func WithFields(fields map[string]interface{}) *Logger {
	return Default().WithFields(fields)
}

func WithError(err error) *Logger {
	return Default().WithError(err)
}
