package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	oauth "github.com/giantswarm/mock-oauth"
	"github.com/giantswarm/mock-oauth/registry"
	"github.com/giantswarm/mock-oauth/security"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := newLogger(oauth.LogConfig{Format: "json"}, slog.LevelInfo, &buf)
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	defer closer.Close()

	logger.Debug("hidden")
	logger.Info("hello", "client_id", "c1")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d log lines, want 1: %q", len(lines), buf.String())
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &record); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if record["msg"] != "hello" || record["client_id"] != "c1" {
		t.Errorf("record = %v", record)
	}
}

func TestNewLogger_File(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "mock-oauth.log")

	logger, closer, err := newLogger(oauth.LogConfig{Format: "text", File: path, MaxSizeMB: 1}, slog.LevelInfo, &buf)
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	logger.Info("to both")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "to both") {
		t.Errorf("log file = %q, want message", data)
	}
	if !strings.Contains(buf.String(), "to both") {
		t.Errorf("stdout = %q, want message", buf.String())
	}
}

func TestNewApp_Routes(t *testing.T) {
	cfg := oauth.DefaultConfig()
	cfg.Chaos.FaultProbability = 0

	a, err := newApp(cfg, discardLogger())
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	defer a.close(discardLogger())

	t.Run("health", func(t *testing.T) {
		w := httptest.NewRecorder()
		a.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
		}
		if w.Header().Get(security.RequestIDHeader) == "" {
			t.Error("request id header missing")
		}
	})

	t.Run("authorize default client", func(t *testing.T) {
		q := url.Values{
			"client_id":     {registry.DefaultClientID},
			"redirect_uri":  {registry.DefaultRedirectURIs[1]},
			"response_type": {"code"},
		}
		w := httptest.NewRecorder()
		a.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/oauth/authorize?"+q.Encode(), nil))
		if w.Code != http.StatusFound {
			t.Errorf("status = %d, want %d, body = %s", w.Code, http.StatusFound, w.Body.String())
		}
	})

	t.Run("metrics disabled", func(t *testing.T) {
		w := httptest.NewRecorder()
		a.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
		}
	})
}

func TestNewApp_InvalidClientsFile(t *testing.T) {
	cfg := oauth.DefaultConfig()
	cfg.ClientsFile = filepath.Join(t.TempDir(), "missing.yaml")

	if _, err := newApp(cfg, discardLogger()); err == nil {
		t.Fatal("newApp() error = nil, want error")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	cfg := oauth.DefaultConfig()
	cfg.Address = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := run(ctx, cfg, discardLogger()); err != nil {
		t.Errorf("run() error = %v, want nil", err)
	}
}
