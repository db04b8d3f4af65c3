package models

import "time"

// QuotaMode selects between inheriting the server default and a custom
// byte limit.
type QuotaMode string

const (
	QuotaInherit QuotaMode = "inherit"
	QuotaCustom  QuotaMode = "custom"
)

// QuotaPolicy is a byte budget attached to a namespace or, when
// stricter limits are needed, to a single repository.
//
// Exactly one of NamespaceID or RepoID is set. A zero limit with mode
// "custom" means unlimited; mode "inherit" defers to the server default.
// Public and private pools are tracked separately.
type QuotaPolicy struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	NamespaceID  *string   `gorm:"uniqueIndex;size:36" json:"namespace_id,omitempty"`
	RepoID       *string   `gorm:"uniqueIndex;size:36" json:"repo_id,omitempty"`
	Mode         QuotaMode `gorm:"not null;size:16;default:inherit" json:"mode"`
	PublicBytes  int64     `gorm:"default:0" json:"public_bytes"`
	PrivateBytes int64     `gorm:"default:0" json:"private_bytes"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for QuotaPolicy.
func (QuotaPolicy) TableName() string {
	return "quota_policies"
}

// LFSConfig holds per-repository large-file settings. Any null field
// inherits the server default.
type LFSConfig struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	RepoID         string    `gorm:"uniqueIndex;not null;size:36" json:"repo_id"`
	ThresholdBytes *int64    `json:"threshold_bytes,omitempty"`
	KeepVersions   *int      `json:"keep_versions,omitempty"`
	SuffixRules    string    `gorm:"size:1024" json:"suffix_rules,omitempty"` // comma separated, e.g. ".bin,.safetensors"
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for LFSConfig.
func (LFSConfig) TableName() string {
	return "lfs_configs"
}

// StagingState tracks the lifecycle of an in-flight large-file upload.
type StagingState string

const (
	// StagingPending means upload URLs were issued but verification has
	// not completed. Commits referencing the oid fail with
	// object_not_ready while any pending record exists.
	StagingPending StagingState = "pending"
	// StagingComplete means verification succeeded.
	StagingComplete StagingState = "complete"
)

// StagingUpload is the bookkeeping row for an in-flight upload.
//
// MultipartID is empty for single-PUT transfers. The janitor sweeps
// pending rows older than the staging TTL and aborts their multipart
// uploads in the object store.
type StagingUpload struct {
	ID          string       `gorm:"primaryKey;size:36" json:"id"`
	RepoID      string       `gorm:"index;not null;size:36" json:"repo_id"`
	OID         string       `gorm:"column:oid;index;not null;size:64" json:"oid"`
	Size        int64        `gorm:"not null" json:"size"`
	MultipartID string       `gorm:"size:255" json:"multipart_id,omitempty"`
	State       StagingState `gorm:"not null;size:16;default:pending" json:"state"`
	CreatedAt   time.Time    `gorm:"autoCreateTime" json:"created_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

// TableName returns the table name for StagingUpload.
func (StagingUpload) TableName() string {
	return "staging_uploads"
}
