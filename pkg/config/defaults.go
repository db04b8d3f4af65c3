package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ApplyDefaults sets default values for any unspecified fields. Zero
// values are replaced; explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	cfg.Server.ApplyDefaults()
	cfg.Database.ApplyDefaults()
	applyVersioningDefaults(cfg)
	applyStorageDefaults(&cfg.Storage)
	cfg.Transfer.ApplyDefaults()
	cfg.GC.ApplyDefaults()
	applyAdminDefaults(&cfg.Admin)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyVersioningDefaults(cfg *Config) {
	if cfg.Versioning.Path == "" && !cfg.Versioning.InMemory {
		cfg.Versioning.Path = filepath.Join(getDataDir(), "versioning")
	}
}

func applyStorageDefaults(cfg *StorageConfig) {
	if cfg.Backend == "" {
		cfg.Backend = "s3"
	}
	if cfg.S3.Region == "" {
		cfg.S3.Region = "us-east-1"
	}
	if cfg.S3.Bucket == "" {
		cfg.S3.Bucket = "silo"
	}
}

func applyAdminDefaults(cfg *AdminConfig) {
	if cfg.Username == "" {
		cfg.Username = "admin"
	}
}

// getDataDir returns the data directory path. Uses XDG_DATA_HOME if
// set, otherwise ~/.local/share.
func getDataDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "silo")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share", "silo")
}

// GetDefaultConfig returns a Config with all defaults applied. The
// JWT secret is left empty; it must come from 'silo init' or the
// SILO_AUTH_JWT_SECRET environment variable.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
