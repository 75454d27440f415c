package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(WithConfigFile(""), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "interview-analyzer" {
		t.Errorf("name = %q", cfg.Name)
	}
	if cfg.CacheBackend != CacheMemory {
		t.Errorf("cache backend = %q, want memory", cfg.CacheBackend)
	}
	if cfg.Semantic.MaxConcurrent != 10 {
		t.Errorf("semantic max concurrent = %d", cfg.Semantic.MaxConcurrent)
	}
	if cfg.Ingest.WindowDuration != 3*time.Second {
		t.Errorf("ingest window = %v", cfg.Ingest.WindowDuration)
	}
	if cfg.Pipeline.Ingest.WindowDuration != cfg.Ingest.WindowDuration {
		t.Error("pipeline ingest config not wired from top-level ingest config")
	}
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yml", `
name: analyzer-test
environment: production
cache_backend: redis
redis:
  addr: redis.internal:6379
  key_prefix: iatest
semantic:
  max_concurrent: 4
logging:
  level: warn
  format: json
`)

	cfg, err := Load(WithConfigFile(path), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Environment != "production" {
		t.Errorf("environment = %q", cfg.Environment)
	}
	if cfg.CacheBackend != CacheRedis {
		t.Errorf("cache backend = %q", cfg.CacheBackend)
	}
	if cfg.Redis.Addr != "redis.internal:6379" {
		t.Errorf("redis addr = %q", cfg.Redis.Addr)
	}
	if cfg.Semantic.MaxConcurrent != 4 {
		t.Errorf("semantic max concurrent = %d", cfg.Semantic.MaxConcurrent)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("log level = %q", cfg.Logging.Level)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yml", `
environment: sandbox
`)
	if _, err := Load(WithConfigFile(path), WithEnvFile("")); err == nil {
		t.Fatal("invalid environment accepted")
	}

	path = writeFile(t, dir, "config2.yml", `
cache_backend: memcached
`)
	if _, err := Load(WithConfigFile(path), WithEnvFile("")); err == nil {
		t.Fatal("invalid cache backend accepted")
	}
}

func TestLoadEnvFileOverride(t *testing.T) {
	dir := t.TempDir()
	env := writeFile(t, dir, ".env", "ANALYZER_REDIS_ADDR=envhost:6379\n")

	t.Cleanup(func() { os.Unsetenv("ANALYZER_REDIS_ADDR") })

	cfg, err := Load(WithConfigFile(""), WithEnvFile(env))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Redis.Addr != "envhost:6379" {
		t.Errorf("redis addr = %q, want env override", cfg.Redis.Addr)
	}
}
