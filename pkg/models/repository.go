package models

import (
	"fmt"
	"time"
)

// RepoKind is the repository category exposed on the wire
// (/api/models, /api/datasets, /api/spaces).
type RepoKind string

const (
	RepoKindModel   RepoKind = "model"
	RepoKindDataset RepoKind = "dataset"
	RepoKindSpace   RepoKind = "space"
)

// IsValid checks if the kind is a known RepoKind.
func (k RepoKind) IsValid() bool {
	return k == RepoKindModel || k == RepoKindDataset || k == RepoKindSpace
}

// DefaultBranch is the default branch name for every repository.
const DefaultBranch = "main"

// Repository is a versioned artifact repository identified by
// (kind, namespace, name).
//
// The repository owns a versioning root in the commit-graph engine;
// UsedBytes is the committed byte usage across the default-branch tip,
// updated only inside the commit transaction.
type Repository struct {
	ID            string   `gorm:"primaryKey;size:36" json:"id"`
	Kind          RepoKind `gorm:"uniqueIndex:idx_repo_identity;not null;size:16" json:"kind"`
	NamespaceID   string   `gorm:"uniqueIndex:idx_repo_identity;not null;size:36" json:"namespace_id"`
	NamespaceName string   `gorm:"index;not null;size:96" json:"namespace"`
	Name          string   `gorm:"uniqueIndex:idx_repo_identity;not null;size:96" json:"name"`
	Private       bool     `gorm:"default:false" json:"private"`
	DefaultBranch string   `gorm:"not null;size:255;default:main" json:"default_branch"`
	CreatedBy     string   `gorm:"size:36" json:"created_by"`
	UsedBytes     int64    `gorm:"default:0" json:"used_bytes"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for Repository.
func (Repository) TableName() string {
	return "repositories"
}

// FullName returns the "namespace/name" form used in URLs.
func (r *Repository) FullName() string {
	return fmt.Sprintf("%s/%s", r.NamespaceName, r.Name)
}

// StorageKind tells where a file entry's bytes live.
type StorageKind string

const (
	// StorageInline means the bytes live inside the versioning engine.
	StorageInline StorageKind = "inline"
	// StorageExternal means the bytes live in the object store under a
	// content-addressed key derived from the sha256.
	StorageExternal StorageKind = "external"
)

// File mirrors one file entry at a branch tip.
//
// Rows exist only for branch tips (invariant I1: one row per
// (repo, path)); historical trees live in the versioning engine. The
// mirror feeds preupload dedup and GC reachability without walking the
// commit graph.
type File struct {
	ID          string      `gorm:"primaryKey;size:36" json:"id"`
	RepoID      string      `gorm:"uniqueIndex:idx_file_repo_path;not null;size:36" json:"repo_id"`
	Path        string      `gorm:"uniqueIndex:idx_file_repo_path;not null;size:1024" json:"path"`
	Size        int64       `gorm:"not null" json:"size"`
	SHA256      string      `gorm:"index;not null;size:64" json:"sha256"`
	StorageKind StorageKind `gorm:"not null;size:16" json:"storage_kind"`
	CommitID    string      `gorm:"not null;size:64" json:"commit_id"`
	UpdatedAt   time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for File.
func (File) TableName() string {
	return "files"
}

// Revision mirrors a named ref (branch or tag) of a repository.
//
// The authoritative refs live in the versioning engine; this mirror is
// what the commit transaction advances and what GC reads for
// reachability cross-checks.
type Revision struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	RepoID    string    `gorm:"uniqueIndex:idx_revision_name;not null;size:36" json:"repo_id"`
	Name      string    `gorm:"uniqueIndex:idx_revision_name;not null;size:255" json:"name"`
	Kind      string    `gorm:"not null;size:16" json:"kind"` // branch or tag
	CommitID  string    `gorm:"not null;size:64" json:"commit_id"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for Revision.
func (Revision) TableName() string {
	return "revisions"
}
