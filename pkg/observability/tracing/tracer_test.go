package tracing

import (
	"context"
	"strings"
	"testing"
)

func TestNewTracerProvider_Disabled(t *testing.T) {
	provider, err := NewTracerProvider(context.Background(), TracerConfig{ServiceName: "docstore"})
	if err != nil {
		t.Fatalf("expected no error for disabled tracing, got: %v", err)
	}
	if provider.Tracer("test") == nil {
		t.Fatal("expected tracer to be non-nil")
	}
	if provider.Enabled() {
		t.Error("provider should report disabled")
	}
	if err := provider.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestTracerConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  TracerConfig
		wantErr string
	}{
		{"disabled skips checks", TracerConfig{}, ""},
		{"missing service name", TracerConfig{Enabled: true, Endpoint: "localhost:4317"}, "service name is required"},
		{"missing endpoint", TracerConfig{Enabled: true, ServiceName: "docstore"}, "OTLP endpoint is required"},
		{"negative sample rate", TracerConfig{Enabled: true, ServiceName: "docstore", Endpoint: "x:4317", SampleRate: -0.1}, "sample rate"},
		{"sample rate above one", TracerConfig{Enabled: true, ServiceName: "docstore", Endpoint: "x:4317", SampleRate: 1.5}, "sample rate"},
		{"valid", TracerConfig{Enabled: true, ServiceName: "docstore", Endpoint: "x:4317", SampleRate: 0.5}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestNewTracerProvider_InvalidConfig(t *testing.T) {
	_, err := NewTracerProvider(context.Background(), TracerConfig{Enabled: true})
	if err == nil {
		t.Fatal("expected error for enabled tracing without service name")
	}
}

func TestSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1, "AlwaysOnSampler"},
		{2, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{0.25, "TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		if got := sampler(tt.rate).Description(); !strings.Contains(got, tt.want) {
			t.Errorf("sampler(%v) = %s, want it to contain %s", tt.rate, got, tt.want)
		}
	}
}
