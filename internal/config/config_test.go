package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"SHOPLIST_CONFIG", "SHOPLIST_PORT", "SHOPLIST_DB_PATH", "SHOPLIST_LOG_LEVEL",
		"SHOPLIST_LOG_FORMAT", "SHOPLIST_RATE_LIMIT", "SHOPLIST_SHUTDOWN_TIMEOUT",
		"SHOPLIST_S3_ENDPOINT", "SHOPLIST_S3_BUCKET", "SHOPLIST_S3_REGION",
		"SHOPLIST_S3_ACCESS_KEY", "SHOPLIST_S3_SECRET_KEY", "SHOPLIST_S3_PREFIX",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want %q", cfg.Port, "8080")
	}
	if cfg.DBPath != "shoplist.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "shoplist.db")
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "text" {
		t.Errorf("log = %q/%q, want info/text", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.RateLimit != 120 {
		t.Errorf("RateLimit = %d, want %d", cfg.RateLimit, 120)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v, want %v", cfg.ShutdownTimeout, 10*time.Second)
	}
	if cfg.BackupsEnabled() {
		t.Error("backups should be disabled without S3 settings")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("SHOPLIST_PORT", "9090")
	t.Setenv("SHOPLIST_DB_PATH", "/data/list.db")
	t.Setenv("SHOPLIST_LOG_FORMAT", "json")
	t.Setenv("SHOPLIST_RATE_LIMIT", "30")
	t.Setenv("SHOPLIST_S3_BUCKET", "lists")
	t.Setenv("SHOPLIST_S3_ACCESS_KEY", "ak")
	t.Setenv("SHOPLIST_S3_SECRET_KEY", "sk")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want %q", cfg.Port, "9090")
	}
	if cfg.DBPath != "/data/list.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q", cfg.LogFormat)
	}
	if cfg.RateLimit != 30 {
		t.Errorf("RateLimit = %d, want 30", cfg.RateLimit)
	}
	if !cfg.BackupsEnabled() {
		t.Error("backups should be enabled")
	}
}

func TestLoad_InvalidIntFallsBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("SHOPLIST_RATE_LIMIT", "lots")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.RateLimit != 120 {
		t.Errorf("RateLimit = %d, want default 120", cfg.RateLimit)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "shoplist.yaml")
	content := `port: "7000"
db_path: /srv/shop.db
log_level: debug
rate_limit: 10
shutdown_timeout: 3s
s3:
  bucket: from-file
  region: eu-west-1
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("SHOPLIST_CONFIG", path)
	t.Setenv("SHOPLIST_PORT", "7001")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Port != "7001" {
		t.Errorf("Port = %q, env should win over file", cfg.Port)
	}
	if cfg.DBPath != "/srv/shop.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.RateLimit != 10 {
		t.Errorf("RateLimit = %d", cfg.RateLimit)
	}
	if cfg.ShutdownTimeout != 3*time.Second {
		t.Errorf("ShutdownTimeout = %v", cfg.ShutdownTimeout)
	}
	if cfg.S3.Bucket != "from-file" || cfg.S3.Region != "eu-west-1" {
		t.Errorf("S3 = %+v", cfg.S3)
	}
	if cfg.S3.Prefix != "shoplist" {
		t.Errorf("Prefix = %q, default should survive a partial file", cfg.S3.Prefix)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad port", map[string]string{"SHOPLIST_PORT": "http"}},
		{"negative rate", map[string]string{"SHOPLIST_RATE_LIMIT": "-1"}},
		{"bad format", map[string]string{"SHOPLIST_LOG_FORMAT": "xml"}},
		{"missing file", map[string]string{"SHOPLIST_CONFIG": "/nonexistent/shoplist.yaml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
