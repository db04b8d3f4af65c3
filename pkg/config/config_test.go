package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/modelsilo/silo/internal/bytesize"
	"github.com/modelsilo/silo/pkg/store"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: INFO\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("server port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Type != store.DatabaseTypeSQLite {
		t.Errorf("database type = %q, want sqlite", cfg.Database.Type)
	}
	if cfg.Transfer.ThresholdBytes != 10*1024*1024 {
		t.Errorf("threshold = %d, want 10MiB", cfg.Transfer.ThresholdBytes)
	}
	if cfg.GC.Interval != time.Hour {
		t.Errorf("gc interval = %s, want 1h", cfg.GC.Interval)
	}
	if cfg.Storage.Backend != "s3" {
		t.Errorf("storage backend = %q, want s3", cfg.Storage.Backend)
	}
	if !cfg.Metrics.IsEnabled() {
		t.Error("metrics should default to enabled")
	}
	if cfg.Admin.Username != "admin" {
		t.Errorf("admin username = %q, want admin", cfg.Admin.Username)
	}
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
  format: json
server:
  port: 9090
  public_base_url: "https://hub.example.com"
database:
  type: sqlite
  sqlite:
    path: /tmp/silo-test.db
storage:
  backend: s3
  s3:
    endpoint: "http://minio:9000"
    bucket: artifacts
    public_endpoint: "https://objects.example.com"
transfer:
  threshold_bytes: 1048576
  upload_ttl: 30m
gc:
  staging_ttl: 12h
quota:
  public_bytes: 100GB
  private_bytes: 512Mi
auth:
  jwt_secret: "0123456789abcdef0123456789abcdef"
metrics:
  enabled: false
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("level = %q, want DEBUG (normalized)", cfg.Logging.Level)
	}
	if cfg.Server.PublicBaseURL != "https://hub.example.com" {
		t.Errorf("public base url = %q", cfg.Server.PublicBaseURL)
	}
	if cfg.Storage.S3.PublicEndpoint != "https://objects.example.com" {
		t.Errorf("public endpoint = %q", cfg.Storage.S3.PublicEndpoint)
	}
	if cfg.Transfer.ThresholdBytes != 1048576 {
		t.Errorf("threshold = %d, want 1048576", cfg.Transfer.ThresholdBytes)
	}
	if cfg.Transfer.UploadTTL != 30*time.Minute {
		t.Errorf("upload ttl = %s, want 30m", cfg.Transfer.UploadTTL)
	}
	if cfg.GC.StagingTTL != 12*time.Hour {
		t.Errorf("staging ttl = %s, want 12h", cfg.GC.StagingTTL)
	}
	if cfg.Quota.PublicBytes != 100*bytesize.GB {
		t.Errorf("public quota = %d, want 100GB", cfg.Quota.PublicBytes)
	}
	if cfg.Quota.PrivateBytes != 512*bytesize.MiB {
		t.Errorf("private quota = %d, want 512Mi", cfg.Quota.PrivateBytes)
	}
	if cfg.Metrics.IsEnabled() {
		t.Error("metrics should be disabled")
	}

	jwt := cfg.Auth.JWT()
	if jwt.Secret != "0123456789abcdef0123456789abcdef" {
		t.Errorf("jwt secret not carried through")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 8080\n")

	t.Setenv("SILO_PUBLIC_BASE_URL", "https://env.example.com")
	t.Setenv("SILO_STORAGE_PUBLIC_ENDPOINT", "https://objects.env.example.com")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.PublicBaseURL != "https://env.example.com" {
		t.Errorf("public base url = %q, env override not applied", cfg.Server.PublicBaseURL)
	}
	if cfg.Storage.S3.PublicEndpoint != "https://objects.env.example.com" {
		t.Errorf("public endpoint = %q, env override not applied", cfg.Storage.S3.PublicEndpoint)
	}
}

func TestLoadBareEnvNames(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 8080\n")

	t.Setenv("PUBLIC_BASE_URL", "https://bare.example.com")
	t.Setenv("STORAGE_PUBLIC_ENDPOINT", "https://objects.bare.example.com")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.PublicBaseURL != "https://bare.example.com" {
		t.Errorf("public base url = %q, bare env name not honoured", cfg.Server.PublicBaseURL)
	}
	if cfg.Storage.S3.PublicEndpoint != "https://objects.bare.example.com" {
		t.Errorf("public endpoint = %q, bare env name not honoured", cfg.Storage.S3.PublicEndpoint)
	}

	// The prefixed form wins when both are set.
	t.Setenv("SILO_PUBLIC_BASE_URL", "https://prefixed.example.com")
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.PublicBaseURL != "https://prefixed.example.com" {
		t.Errorf("public base url = %q, expected prefixed form to win", cfg.Server.PublicBaseURL)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "LOUD" },
			wantErr: "Logging.Level",
		},
		{
			name:    "short jwt secret",
			mutate:  func(c *Config) { c.Auth.JWTSecret = "short" },
			wantErr: "JWTSecret",
		},
		{
			name:    "unknown storage backend",
			mutate:  func(c *Config) { c.Storage.Backend = "ftp" },
			wantErr: "Backend",
		},
		{
			name: "threshold above max object size",
			mutate: func(c *Config) {
				c.Transfer.ThresholdBytes = c.Transfer.MaxObjectBytes + 1
			},
			wantErr: "threshold_bytes",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateServe(t *testing.T) {
	cfg := GetDefaultConfig()

	// Default config has no signing secret yet.
	if err := ValidateServe(cfg); err == nil || !strings.Contains(err.Error(), "jwt_secret") {
		t.Errorf("expected jwt_secret error, got %v", err)
	}

	cfg.Auth.JWTSecret = strings.Repeat("s", 32)
	if err := ValidateServe(cfg); err == nil || !strings.Contains(err.Error(), "storage.s3.endpoint") {
		t.Errorf("expected endpoint error, got %v", err)
	}

	cfg.Storage.S3.Endpoint = "http://localhost:9000"
	if err := ValidateServe(cfg); err != nil {
		t.Errorf("ValidateServe failed on complete config: %v", err)
	}
}

func TestInitConfig(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	configPath, err := InitConfig(false)
	if err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("failed to read config file: %v", err)
	}
	for _, section := range []string{"logging:", "server:", "database:", "storage:", "transfer:", "auth:"} {
		if !strings.Contains(string(content), section) {
			t.Errorf("config file missing section %s", section)
		}
	}

	// The generated file must parse and carry a usable secret.
	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		t.Fatalf("generated config is not valid YAML: %v", err)
	}
	if len(cfg.Auth.JWTSecret) != 64 {
		t.Errorf("jwt secret length = %d, want 64", len(cfg.Auth.JWTSecret))
	}

	// Refuses to overwrite without force.
	if _, err := InitConfig(false); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Errorf("expected already-exists error, got %v", err)
	}
	if _, err := InitConfig(true); err != nil {
		t.Errorf("force overwrite failed: %v", err)
	}

	info, err := os.Stat(configPath)
	if err != nil {
		t.Fatalf("stat config: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("config mode = %o, want 0600", info.Mode().Perm())
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := GetDefaultConfig()
	cfg.Server.Port = 9999
	cfg.Auth.JWTSecret = strings.Repeat("s", 32)
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Server.Port != 9999 {
		t.Errorf("port = %d, want 9999", loaded.Server.Port)
	}
	if loaded.Auth.JWTSecret != cfg.Auth.JWTSecret {
		t.Error("jwt secret not round-tripped")
	}
}
