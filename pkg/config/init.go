package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// sampleConfigTemplate is the commented config file written by
// 'silo init'. %s slots: JWT secret.
const sampleConfigTemplate = `# Silo Configuration File
#
# Every option can be overridden with an environment variable using
# the SILO_ prefix: SILO_SERVER_PORT=9000, SILO_LOGGING_LEVEL=DEBUG.

logging:
  level: INFO        # DEBUG, INFO, WARN, ERROR
  format: text       # text, json
  output: stdout     # stdout, stderr, or a file path

server:
  port: 8080
  # The externally reachable URL, used in commit URLs and LFS verify
  # hrefs. Set this when running behind a reverse proxy.
  public_base_url: "http://localhost:8080"

database:
  type: sqlite       # sqlite, postgres
  sqlite:
    path: ""         # default: $XDG_CONFIG_HOME/silo/metadata.db
  # postgres:
  #   host: localhost
  #   port: 5432
  #   database: silo
  #   user: silo
  #   password: ""

versioning:
  path: ""           # default: $XDG_DATA_HOME/silo/versioning

storage:
  backend: s3        # s3, memory
  s3:
    endpoint: "http://localhost:9000"
    region: us-east-1
    bucket: silo
    access_key_id: ""
    secret_access_key: ""
    force_path_style: true
    # public_endpoint rewrites presigned URLs when clients cannot
    # reach the internal endpoint (e.g. MinIO inside a compose network).
    # public_endpoint: "https://objects.example.com"

transfer:
  threshold_bytes: 10485760        # 10 MiB: larger files go via LFS
  upload_ttl: 1h
  download_ttl: 24h
  keep_versions: 10

gc:
  staging_ttl: 24h
  interval: 1h

auth:
  # HMAC signing key for browser sessions. Regenerate for production:
  #   openssl rand -hex 32
  jwt_secret: "%s"

quota:
  # Fallback namespace quotas. Zero means unlimited.
  public_bytes: 0
  private_bytes: 0

admin:
  username: admin
`

// InitConfig creates a sample configuration file at the default
// location. Returns the path written.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath creates a sample configuration file at the given
// path. Refuses to overwrite unless force is set.
func InitConfigToPath(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	secret, err := generateSecret()
	if err != nil {
		return err
	}

	content := fmt.Sprintf(sampleConfigTemplate, secret)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// generateSecret returns 32 bytes of entropy as a 64-character hex
// string, suitable for the JWT signing key.
func generateSecret() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	return hex.EncodeToString(raw), nil
}
