// Package logger sets up structured JSON logging with log/slog and carries
// trace IDs through context.Context so a bar can be followed from the feed
// to the published snapshot.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

type ctxKey string

const traceIDKey ctxKey = "trace_id"

// Init installs a JSON logger for service on stdout as the slog default.
func Init(service string, level slog.Level) *slog.Logger {
	return New(os.Stdout, service, level)
}

// New builds a JSON logger writing to w and makes it the slog default.
func New(w io.Writer, service string, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	l := slog.New(handler).With(slog.String("service", service))
	slog.SetDefault(l)
	return l
}

// ParseLevel maps "debug", "info", "warn" and "error" to slog levels.
// Anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithTraceID stores a trace ID in the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceID extracts the trace ID from context, or "".
func TraceID(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey).(string); ok {
		return v
	}
	return ""
}

// GenerateTraceID builds "{symbol}-{barTimeMs}". The same bar always gets
// the same trace ID, including forming-bar replacements.
func GenerateTraceID(symbol string, barTimeMs int64) string {
	return symbol + "-" + strconv.FormatInt(barTimeMs, 10)
}

// LogWithTrace returns slog attributes including the trace ID from context.
// Usage: slog.Info("msg", logger.LogWithTrace(ctx)...)
func LogWithTrace(ctx context.Context) []any {
	tid := TraceID(ctx)
	if tid == "" {
		return nil
	}
	return []any{slog.String("trace_id", tid)}
}
