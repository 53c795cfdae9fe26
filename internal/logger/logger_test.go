package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestNew_WritesServiceAttr(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "chartd-test", slog.LevelInfo)
	l.Info("hello", "symbol", "NIFTY")
	l.Debug("dropped")

	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec); err != nil {
		t.Fatalf("expected one JSON record, got %q: %v", buf.String(), err)
	}
	if rec["service"] != "chartd-test" {
		t.Errorf("service = %v", rec["service"])
	}
	if rec["symbol"] != "NIFTY" {
		t.Errorf("symbol = %v", rec["symbol"])
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		" warn ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestTraceID_RoundTrip(t *testing.T) {
	ctx := context.Background()
	if tid := TraceID(ctx); tid != "" {
		t.Errorf("expected empty trace id, got %q", tid)
	}
	ctx = WithTraceID(ctx, "test-trace-123")
	if tid := TraceID(ctx); tid != "test-trace-123" {
		t.Errorf("expected 'test-trace-123', got %q", tid)
	}
}

func TestGenerateTraceID(t *testing.T) {
	if tid := GenerateTraceID("NIFTY", 1700000000000); tid != "NIFTY-1700000000000" {
		t.Errorf("trace id = %q", tid)
	}
	if GenerateTraceID("NIFTY", 5) != GenerateTraceID("NIFTY", 5) {
		t.Error("trace id not stable for the same bar")
	}
}

func TestLogWithTrace(t *testing.T) {
	ctx := context.Background()
	if attrs := LogWithTrace(ctx); attrs != nil {
		t.Errorf("expected nil attrs when no trace id, got %v", attrs)
	}
	ctx = WithTraceID(ctx, "abc-123")
	if attrs := LogWithTrace(ctx); len(attrs) != 1 {
		t.Fatalf("expected one attr, got %v", attrs)
	}
}
