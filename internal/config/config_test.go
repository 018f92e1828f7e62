package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, key := range []string{"APP_PORT", "POSTGRES_DSN", "REDIS_ADDR", "ASSIGNMENT_SEARCH_RADIUS_KM", "RANKING_DEFAULT_LIMIT"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App.Addr() != "0.0.0.0:8080" {
		t.Fatalf("unexpected addr %s", cfg.App.Addr())
	}
	if cfg.Postgres.DSN != "" || cfg.Redis.Addr != "" {
		t.Fatalf("expected external stores disabled by default")
	}
	if cfg.Assignment.SearchRadiusKm != 25 {
		t.Fatalf("unexpected radius %v", cfg.Assignment.SearchRadiusKm)
	}
	if cfg.Ranking.DefaultLimit != 5 {
		t.Fatalf("unexpected ranking limit %d", cfg.Ranking.DefaultLimit)
	}
	if cfg.Idempotency.Lifetime() != 30*time.Minute {
		t.Fatalf("unexpected idempotency lifetime %v", cfg.Idempotency.Lifetime())
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	content := "APP_PORT=9090\nASSIGNMENT_SEARCH_RADIUS_KM=12.5\nSTORAGE_USE_SSL=true\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	for _, key := range []string{"APP_PORT", "ASSIGNMENT_SEARCH_RADIUS_KM", "STORAGE_USE_SSL"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App.Port != "9090" {
		t.Fatalf("unexpected port %s", cfg.App.Port)
	}
	if cfg.Assignment.SearchRadiusKm != 12.5 {
		t.Fatalf("unexpected radius %v", cfg.Assignment.SearchRadiusKm)
	}
	if !cfg.Storage.UseSSL {
		t.Fatalf("expected ssl enabled")
	}
}

func TestLoadRejectsBadRadius(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ASSIGNMENT_SEARCH_RADIUS_KM", "-3")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for negative radius")
	}
}

func TestLoadMissingEnvFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Fatalf("expected error for missing env file")
	}
}
