package server

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/nimburion/docstore/pkg/observability/logger"
)

func TestServerStartAndShutdown(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ping", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "pong")
	})
	srv := NewServer(Config{Port: 0, ReadTimeout: 5 * time.Second, WriteTimeout: 5 * time.Second}, mux, logger.NewNop())

	if srv.Addr() != "" {
		t.Fatalf("expected no address before start, got %q", srv.Addr())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errChan := make(chan error, 1)
	go func() { errChan <- srv.Start(ctx) }()

	select {
	case <-srv.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	resp, err := http.Get("http://" + srv.Addr() + "/ping")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "pong" {
		t.Fatalf("unexpected response %d %q", resp.StatusCode, body)
	}

	cancel()
	select {
	case err := <-errChan:
		if err != nil {
			t.Errorf("server shutdown failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Error("server shutdown timed out")
	}
}

func TestServerShutdownBeforeStart(t *testing.T) {
	srv := NewServer(Config{}, http.NewServeMux(), logger.NewNop())
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("expected no-op shutdown, got %v", err)
	}
}

func TestServerStartFailsOnBusyPort(t *testing.T) {
	first := NewServer(Config{Port: 0}, http.NewServeMux(), logger.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- first.Start(ctx) }()
	<-first.Ready()

	_, port, _ := splitHostPort(t, first.Addr())
	second := NewServer(Config{Port: port}, http.NewServeMux(), logger.NewNop())
	if err := second.Start(context.Background()); err == nil {
		t.Fatal("expected error when port is taken")
	}

	cancel()
	<-done
}
