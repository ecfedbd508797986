package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func newBufferLogger(t *testing.T, level LogLevel) (*ZapLogger, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	l, err := NewZapLogger(Config{Level: level, Format: JSONFormat, Output: buf})
	if err != nil {
		t.Fatalf("NewZapLogger: %v", err)
	}
	return l, buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("invalid JSON log line %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestNewZapLogger_Formats(t *testing.T) {
	tests := []struct {
		name    string
		format  LogFormat
		wantErr bool
	}{
		{"json", JSONFormat, false},
		{"text", TextFormat, false},
		{"empty defaults to json", "", false},
		{"unknown", "xml", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewZapLogger(Config{Level: InfoLevel, Format: tt.format, Output: &bytes.Buffer{}})
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewZapLogger() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestZapLogger_LevelFiltering(t *testing.T) {
	l, buf := newBufferLogger(t, WarnLevel)
	l.Debug("debug")
	l.Info("info")
	l.Warn("warn")
	l.Error("error")

	entries := decodeLines(t, buf)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries at warn level, got %d", len(entries))
	}
	if entries[0]["level"] != "warn" || entries[1]["level"] != "error" {
		t.Errorf("unexpected levels: %v, %v", entries[0]["level"], entries[1]["level"])
	}
}

func TestZapLogger_FieldsAndContext(t *testing.T) {
	buf := &bytes.Buffer{}
	l, err := NewZapLogger(Config{
		Level:  DebugLevel,
		Format: JSONFormat,
		Output: buf,
		Fields: map[string]string{"service": "docstore"},
	})
	if err != nil {
		t.Fatalf("NewZapLogger: %v", err)
	}

	ctx := ContextWithRequestID(context.Background(), "req-123")
	l.WithContext(ctx).With("collection", "users").Info("query executed", "count", 3)

	entries := decodeLines(t, buf)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e["service"] != "docstore" {
		t.Errorf("service field = %v", e["service"])
	}
	if e["request_id"] != "req-123" {
		t.Errorf("request_id field = %v", e["request_id"])
	}
	if e["collection"] != "users" {
		t.Errorf("collection field = %v", e["collection"])
	}
	if e["count"] != float64(3) {
		t.Errorf("count field = %v", e["count"])
	}
	if e["message"] != "query executed" {
		t.Errorf("message = %v", e["message"])
	}
}

func TestZapLogger_WithContextWithoutRequestID(t *testing.T) {
	l, _ := newBufferLogger(t, InfoLevel)
	if got := l.WithContext(context.Background()); got != Logger(l) {
		t.Error("expected the same logger when context has no request ID")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug": DebugLevel, "INFO": InfoLevel, "warning": WarnLevel, " error ": ErrorLevel,
	}
	for in, want := range tests {
		got, err := ParseLogLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLogLevel(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseLogLevel("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestParseLogFormat(t *testing.T) {
	if f, err := ParseLogFormat("console"); err != nil || f != TextFormat {
		t.Errorf("ParseLogFormat(console) = %q, %v", f, err)
	}
	if _, err := ParseLogFormat("yaml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestRequestIDFromContext(t *testing.T) {
	if RequestIDFromContext(nil) != "" { //nolint:staticcheck
		t.Error("nil context must yield empty request ID")
	}
	ctx := context.WithValue(context.Background(), "request_id", "plain-key") //nolint:staticcheck
	if RequestIDFromContext(ctx) != "" {
		t.Error("untyped key must not be picked up")
	}
}

func TestNop(t *testing.T) {
	var l Logger = NewNop()
	l.With("a", 1).WithContext(context.Background()).Info("ignored")
}

func TestZapLogger_WithContextAddsTraceIDs(t *testing.T) {
	l, buf := newBufferLogger(t, InfoLevel)

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(ContextWithRequestID(context.Background(), "req-9"), sc)

	l.WithContext(ctx).Info("traced")
	l.WithContext(context.Background()).Info("plain")

	entries := decodeLines(t, buf)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0]["trace_id"] != traceID.String() || entries[0]["span_id"] != spanID.String() || entries[0]["request_id"] != "req-9" {
		t.Errorf("unexpected correlation fields: %v", entries[0])
	}
	if _, ok := entries[1]["trace_id"]; ok {
		t.Errorf("plain entry should not carry trace_id: %v", entries[1])
	}
}
