package logging

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	loggerKey  contextKey = "logger"
	traceIDKey contextKey = "trace_id"
)

// GenerateTraceID generates a new trace ID
func GenerateTraceID() string {
	return uuid.NewString()
}

// FromContext retrieves the logger from context
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerKey).(*Logger); ok {
		return l
	}
	return Default()
}

// NewContext creates a new context with the logger
func NewContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// TraceID returns the trace ID stored in ctx, if any
func TraceID(ctx context.Context) string {
	if id, ok := ctx.Value(traceIDKey).(string); ok {
		return id
	}
	return ""
}

// WithTraceContext adds a trace ID to the context and returns a logger with it
func WithTraceContext(ctx context.Context) (context.Context, *Logger) {
	traceID := GenerateTraceID()
	l := FromContext(ctx).WithTraceID(traceID)
	newCtx := context.WithValue(ctx, traceIDKey, traceID)
	newCtx = context.WithValue(newCtx, loggerKey, l)
	return newCtx, l
}

// AnalysisContext creates a logger context for an analysis run
func AnalysisContext(symbol, timeframe string) *Logger {
	return Default().WithFields(map[string]interface{}{
		"symbol":    symbol,
		"timeframe": timeframe,
	}).WithComponent("smc")
}

// StageContext creates a logger context for a single pipeline stage
func StageContext(symbol, stage string) *Logger {
	return Default().WithFields(map[string]interface{}{
		"symbol": symbol,
		"stage":  stage,
	}).WithComponent("smc")
}

// APIContext creates a logger context for API requests
func APIContext(method, path string, statusCode int) *Logger {
	return Default().WithFields(map[string]interface{}{
		"method":      method,
		"path":        path,
		"status_code": statusCode,
	}).WithComponent("api")
}

// WebSocketContext creates a logger context for websocket clients
func WebSocketContext(remoteAddr string) *Logger {
	return Default().WithFields(map[string]interface{}{
		"remote_addr": remoteAddr,
	}).WithComponent("websocket")
}

// DatabaseContext creates a logger context for database operations
func DatabaseContext(operation, table string) *Logger {
	return Default().WithFields(map[string]interface{}{
		"operation": operation,
		"table":     table,
	}).WithComponent("database")
}

// CacheContext creates a logger context for cache operations
func CacheContext(operation, key string) *Logger {
	return Default().WithFields(map[string]interface{}{
		"operation": operation,
		"key":       key,
	}).WithComponent("cache")
}

// JobContext creates a logger context for scheduled jobs
func JobContext(job string) *Logger {
	return Default().WithField("job", job).WithComponent("scheduler")
}
