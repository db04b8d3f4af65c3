// Package config loads and validates the hub configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (SILO_*)
//  2. Configuration file (YAML)
//  3. Default values
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/modelsilo/silo/internal/bytesize"
	"github.com/modelsilo/silo/pkg/access"
	"github.com/modelsilo/silo/pkg/api"
	"github.com/modelsilo/silo/pkg/auth"
	"github.com/modelsilo/silo/pkg/gc"
	"github.com/modelsilo/silo/pkg/objectstore/s3"
	"github.com/modelsilo/silo/pkg/store"
	"github.com/modelsilo/silo/pkg/transfer"
	badgerstore "github.com/modelsilo/silo/pkg/versioning/badger"
)

// Config represents the hub configuration.
//
// It captures every static aspect of a silo deployment: the HTTP
// server, the metadata database, the versioning engine, the object
// store backend, transfer thresholds, garbage collection cadence,
// session signing and default quotas. Repositories, users and tokens
// are dynamic state managed through the API.
type Config struct {
	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Server configures the hub HTTP server.
	Server api.Config `mapstructure:"server" yaml:"server"`

	// Database configures the metadata database (SQLite or PostgreSQL).
	Database store.Config `mapstructure:"database" yaml:"database"`

	// Versioning configures the commit-graph store.
	Versioning badgerstore.Config `mapstructure:"versioning" yaml:"versioning"`

	// Storage selects and configures the object store backend.
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`

	// Transfer holds the upload-path thresholds and presign TTLs.
	Transfer transfer.Config `mapstructure:"transfer" yaml:"transfer"`

	// GC controls the staging janitor and the blob sweeper.
	GC gc.Config `mapstructure:"gc" yaml:"gc"`

	// Auth configures session token signing.
	Auth AuthConfig `mapstructure:"auth" yaml:"auth"`

	// Quota sets the fallback namespace quotas applied when a
	// namespace carries no explicit policy.
	Quota QuotaConfig `mapstructure:"quota" yaml:"quota"`

	// Metrics controls Prometheus metrics collection.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Admin contains the initial admin user for bootstrap. Used by
	// 'silo init' to seed the first account.
	Admin AdminConfig `mapstructure:"admin" yaml:"admin"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive).
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format: text or json.
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written: stdout, stderr, or a
	// file path.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// StorageConfig selects the object store backend.
type StorageConfig struct {
	// Backend is the object store implementation. "s3" covers any
	// S3-compatible endpoint (AWS, MinIO, R2); "memory" is for tests
	// and throwaway single-process setups.
	Backend string `mapstructure:"backend" validate:"required,oneof=s3 memory" yaml:"backend"`

	// S3 configures the s3 backend. Ignored for memory.
	S3 s3.Config `mapstructure:"s3" yaml:"s3"`
}

// AuthConfig configures session token signing and lifetimes.
type AuthConfig struct {
	// JWTSecret is the HMAC signing key for session tokens. Must be
	// at least 32 characters. Empty is allowed at load time so 'silo
	// init' can run; 'silo start' refuses to boot without it.
	// Override: SILO_AUTH_JWT_SECRET.
	JWTSecret string `mapstructure:"jwt_secret" validate:"omitempty,min=32" yaml:"jwt_secret"`

	// AccessTokenTTL is the lifetime of session access tokens.
	// Default: 15m.
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl" yaml:"access_token_ttl"`

	// RefreshTokenTTL is the lifetime of refresh tokens. Default: 168h.
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl" yaml:"refresh_token_ttl"`
}

// JWT converts the auth section into the auth package's config form.
func (c AuthConfig) JWT() auth.JWTConfig {
	return auth.JWTConfig{
		Secret:               c.JWTSecret,
		AccessTokenDuration:  c.AccessTokenTTL,
		RefreshTokenDuration: c.RefreshTokenTTL,
	}
}

// QuotaConfig sets the fallback per-namespace quotas. Sizes accept
// human-readable forms like "100GB" or "512Mi". Zero means unlimited.
type QuotaConfig struct {
	PublicBytes  bytesize.ByteSize `mapstructure:"public_bytes" yaml:"public_bytes"`
	PrivateBytes bytesize.ByteSize `mapstructure:"private_bytes" yaml:"private_bytes"`
}

// Defaults converts the quota section into the access package's form.
func (c QuotaConfig) Defaults() access.QuotaDefaults {
	return access.QuotaDefaults{
		PublicBytes:  int64(c.PublicBytes),
		PrivateBytes: int64(c.PrivateBytes),
	}
}

// MetricsConfig controls Prometheus metrics collection. The metrics
// endpoint is served on the main listener at /metrics.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected. Default: true.
	Enabled *bool `mapstructure:"enabled" yaml:"enabled"`
}

// IsEnabled reports whether metrics collection is on. Defaults to true
// when the field is absent from the config file.
func (c MetricsConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// AdminConfig contains the initial admin user for bootstrap.
type AdminConfig struct {
	// Username is the admin username. Default: "admin".
	Username string `mapstructure:"username" yaml:"username"`

	// Email is the admin user's email address (optional).
	Email string `mapstructure:"email" yaml:"email,omitempty"`

	// PasswordHash is the bcrypt hash of the admin password, written
	// by 'silo init'.
	PasswordHash string `mapstructure:"password_hash" yaml:"password_hash,omitempty"`
}

// Load loads configuration from file, environment, and defaults.
// configPath empty means the default location.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}
	// No config file means pure defaults plus env overrides. Skip
	// validation: commands that only touch the database still work,
	// and 'silo start' checks what it needs at boot.
	if !configFileFound {
		cfg := GetDefaultConfig()
		applyEnvOverrides(cfg)
		return cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages when the
// config file is missing.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  silo init\n\n"+
				"Or specify a custom config file:\n"+
				"  silo <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s\n\n"+
				"Please create the configuration file:\n"+
				"  silo init --config %s",
				configPath, configPath)
		}
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes the configuration to path in YAML form. The file
// is written 0600 since it carries the JWT secret and S3 credentials.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// setupViper configures environment variable support and the config
// file search path. Environment variables use the SILO_ prefix:
// SILO_SERVER_PORT=9000, SILO_STORAGE_S3_BUCKET=silo.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("SILO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// applyEnvOverrides handles the env signals viper's AutomaticEnv
// misses because the keys never appear in the config file. These are
// the knobs deployment tooling most commonly injects. PUBLIC_BASE_URL
// and STORAGE_PUBLIC_ENDPOINT are the documented deployment names;
// the SILO_-prefixed forms are accepted as well and win when both are
// set.
func applyEnvOverrides(cfg *Config) {
	if u := firstEnv("SILO_PUBLIC_BASE_URL", "PUBLIC_BASE_URL"); u != "" {
		cfg.Server.PublicBaseURL = u
	}
	if e := firstEnv("SILO_STORAGE_PUBLIC_ENDPOINT", "STORAGE_PUBLIC_ENDPOINT"); e != "" {
		cfg.Storage.S3.PublicEndpoint = e
	}
	if s := os.Getenv("SILO_AUTH_JWT_SECRET"); s != "" {
		cfg.Auth.JWTSecret = s
	}
}

// firstEnv returns the first non-empty value among the named
// environment variables.
func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// readConfigFile reads the configuration file if it exists. Returns
// whether a file was found.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// configDecodeHooks returns a combined decode hook for all custom
// types: ByteSize and time.Duration.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

// byteSizeDecodeHook converts strings and numbers to
// bytesize.ByteSize, so config files can say "100GB" or "512Mi".
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook converts strings to time.Duration, so config
// files can say "30s", "5m", "1h".
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path. Uses
// XDG_CONFIG_HOME if set, otherwise ~/.config.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "silo")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "silo")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default
// location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for
// the init command).
func GetConfigDir() string {
	return getConfigDir()
}
