package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	authsession "github.com/trackwise/authsession"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.API.URL != "http://localhost:8000/api/v1" {
		t.Fatalf("unexpected api url %q", cfg.API.URL)
	}
	if cfg.API.Timeout != 30*time.Second {
		t.Fatalf("unexpected timeout %v", cfg.API.Timeout)
	}
	if cfg.Store.Backend != BackendSQLite || cfg.Store.Namespace != "default" {
		t.Fatalf("unexpected store defaults %+v", cfg.Store)
	}
	if !cfg.Output.Colors || !cfg.Metrics.Enabled {
		t.Fatal("expected colors and metrics on by default")
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := chdirTemp(t)
	body := []byte("api:\n  url: https://trackwise.example/api/v1\n  timeout: 5s\nstore:\n  backend: memory\nlogging:\n  level: debug\n")
	if err := os.WriteFile(filepath.Join(dir, ".trackwise.yaml"), body, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("TRACKWISE_API_TIMEOUT", "7s")
	t.Setenv("TRACKWISE_STORE_NAMESPACE", "work")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.API.URL != "https://trackwise.example/api/v1" {
		t.Fatalf("file value not applied: %q", cfg.API.URL)
	}
	if cfg.API.Timeout != 7*time.Second {
		t.Fatalf("env must override file, got %v", cfg.API.Timeout)
	}
	if cfg.Store.Backend != BackendMemory || cfg.Store.Namespace != "work" {
		t.Fatalf("unexpected store %+v", cfg.Store)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected level %q", cfg.Logging.Level)
	}
}

func TestLoadExplicitFile(t *testing.T) {
	dir := chdirTemp(t)
	path := filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(path, []byte("store:\n  backend: redis\n  redis_addr: 10.0.0.5:6379\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Backend != BackendRedis || cfg.Store.RedisAddr != "10.0.0.5:6379" {
		t.Fatalf("unexpected store %+v", cfg.Store)
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatal("expected an explicit missing file to fail")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	chdirTemp(t)
	t.Setenv("TRACKWISE_STORE_BACKEND", "etcd")
	t.Setenv("TRACKWISE_LOGGING_LEVEL", "loud")
	t.Setenv("TRACKWISE_API_URL", "ftp://nope")

	_, err := Load("")
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	if !errors.Is(err, authsession.ErrInvalidConfig) {
		t.Fatalf("expected library config error to be joined, got %v", err)
	}
}

func TestSessionMapping(t *testing.T) {
	cfg := Config{
		API:     APIConfig{URL: "http://api.test", Timeout: 2 * time.Second, UserAgent: "ua/1"},
		Metrics: MetricsConfig{Enabled: false},
	}
	s := cfg.Session()
	if s.BaseURL != "http://api.test" || s.HTTP.Timeout != 2*time.Second || s.HTTP.UserAgent != "ua/1" {
		t.Fatalf("unexpected mapping %+v", s)
	}
	if s.Metrics.Enabled || s.Metrics.EnableLatencyHistograms {
		t.Fatal("metrics must follow the CLI switch")
	}
}
