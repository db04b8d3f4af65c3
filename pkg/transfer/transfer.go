// Package transfer implements the large-file transfer protocol: the
// preupload classifier, the Git-LFS batch broker and upload
// verification.
//
// The broker never touches payload bytes. It classifies files into the
// regular (inline) or external (LFS) path, hands out presigned URLs
// for direct client-to-bucket transfers, and tracks in-flight uploads
// as staging records so commits cannot reference unverified objects.
package transfer

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/modelsilo/silo/pkg/models"
)

// Server-wide defaults; each is overridable in configuration and, for
// threshold and suffix rules, per repository.
const (
	// DefaultThresholdBytes is the inline/external boundary: files at or
	// above it take the external path.
	DefaultThresholdBytes int64 = 10 * 1024 * 1024

	// DefaultMultipartThresholdBytes is the single-PUT/multipart
	// boundary for external uploads.
	DefaultMultipartThresholdBytes int64 = 5 * 1024 * 1024 * 1024

	// DefaultPartSizeBytes is the size of each presigned multipart part.
	DefaultPartSizeBytes int64 = 512 * 1024 * 1024

	// DefaultMaxObjectBytes is the largest single object the broker
	// accepts, matching the S3 object ceiling.
	DefaultMaxObjectBytes int64 = 5 * 1024 * 1024 * 1024 * 1024

	// DefaultKeepVersions is how many superseding commits must pass
	// before an orphaned external blob becomes sweepable.
	DefaultKeepVersions = 10

	// DefaultUploadTTL bounds presigned PUT and part URLs.
	DefaultUploadTTL = time.Hour

	// DefaultDownloadTTL bounds presigned GET URLs; generous enough for
	// a slow multi-hundred-gigabyte download.
	DefaultDownloadTTL = 24 * time.Hour
)

// oidPattern is the only accepted object id form: full lowercase hex
// sha256.
var oidPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Config holds the server-wide transfer settings.
type Config struct {
	ThresholdBytes          int64         `mapstructure:"threshold_bytes" yaml:"threshold_bytes"`
	MultipartThresholdBytes int64         `mapstructure:"multipart_threshold_bytes" yaml:"multipart_threshold_bytes"`
	PartSizeBytes           int64         `mapstructure:"part_size_bytes" yaml:"part_size_bytes"`
	MaxObjectBytes          int64         `mapstructure:"max_object_bytes" yaml:"max_object_bytes"`
	KeepVersions            int           `mapstructure:"keep_versions" yaml:"keep_versions"`
	UploadTTL               time.Duration `mapstructure:"upload_ttl" yaml:"upload_ttl"`
	DownloadTTL             time.Duration `mapstructure:"download_ttl" yaml:"download_ttl"`

	// SuffixRules are path suffixes always forced onto the external
	// path regardless of size.
	SuffixRules []string `mapstructure:"suffix_rules" yaml:"suffix_rules"`
}

// ApplyDefaults fills in missing configuration with default values.
func (c *Config) ApplyDefaults() {
	if c.ThresholdBytes == 0 {
		c.ThresholdBytes = DefaultThresholdBytes
	}
	if c.MultipartThresholdBytes == 0 {
		c.MultipartThresholdBytes = DefaultMultipartThresholdBytes
	}
	if c.PartSizeBytes == 0 {
		c.PartSizeBytes = DefaultPartSizeBytes
	}
	if c.MaxObjectBytes == 0 {
		c.MaxObjectBytes = DefaultMaxObjectBytes
	}
	if c.KeepVersions == 0 {
		c.KeepVersions = DefaultKeepVersions
	}
	if c.UploadTTL == 0 {
		c.UploadTTL = DefaultUploadTTL
	}
	if c.DownloadTTL == 0 {
		c.DownloadTTL = DefaultDownloadTTL
	}
}

// Settings are the effective large-file settings for one repository:
// the repo's LFSConfig where set, the server defaults elsewhere.
type Settings struct {
	ThresholdBytes int64
	KeepVersions   int
	SuffixRules    []string
}

// EffectiveSettings resolves a repository's LFS configuration against
// the server defaults. lfs may be nil.
func EffectiveSettings(cfg *Config, lfs *models.LFSConfig) Settings {
	s := Settings{
		ThresholdBytes: cfg.ThresholdBytes,
		KeepVersions:   cfg.KeepVersions,
		SuffixRules:    cfg.SuffixRules,
	}
	if lfs == nil {
		return s
	}
	if lfs.ThresholdBytes != nil {
		s.ThresholdBytes = *lfs.ThresholdBytes
	}
	if lfs.KeepVersions != nil {
		s.KeepVersions = *lfs.KeepVersions
	}
	if lfs.SuffixRules != "" {
		for _, rule := range strings.Split(lfs.SuffixRules, ",") {
			if rule = strings.TrimSpace(rule); rule != "" {
				s.SuffixRules = append(s.SuffixRules, rule)
			}
		}
	}
	return s
}

// External reports whether a file belongs on the external path: at or
// above the threshold, or matching a suffix rule.
func (s Settings) External(path string, size int64) bool {
	if size >= s.ThresholdBytes {
		return true
	}
	for _, rule := range s.SuffixRules {
		if strings.HasSuffix(path, rule) {
			return true
		}
	}
	return false
}

// ValidOID reports whether an oid is a full lowercase hex sha256.
func ValidOID(oid string) bool {
	return oidPattern.MatchString(oid)
}

// StagingStore is the staging bookkeeping the broker needs.
type StagingStore interface {
	CreateStaging(ctx context.Context, rec *models.StagingUpload) (string, error)
	PendingStaging(ctx context.Context, oid string) ([]*models.StagingUpload, error)
	CompleteStaging(ctx context.Context, oid string) error
	GetLFSConfig(ctx context.Context, repoID string) (*models.LFSConfig, error)
}
