// Package versioning defines the capability interface for the
// content-addressed commit graph behind every repository.
//
// The engine stores immutable commits (tree snapshots of path → entry),
// movable branch refs and immutable tag refs. Small files live inside
// the engine as inline blobs keyed by their sha256; large files are
// external references into the object store. Concurrent commits on the
// same branch are serialised by a compare-and-set on the parent commit.
package versioning

import (
	"context"
	"time"
)

// FileEntry is one file in a commit tree.
type FileEntry struct {
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256"`

	// External is true when the bytes live in the object store under
	// StorageKey; false when they live in the engine as an inline blob.
	External   bool   `json:"external"`
	StorageKey string `json:"storage_key,omitempty"`
}

// TreeEntry is a listing row: either a file or a synthesised directory.
type TreeEntry struct {
	FileEntry
	IsDir bool `json:"is_dir"`
}

// Commit is an immutable, content-addressed snapshot of a repository tree.
type Commit struct {
	ID          string    `json:"id"`
	Parent      string    `json:"parent,omitempty"`
	Author      string    `json:"author"`
	Message     string    `json:"message"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	TreeHash    string    `json:"tree_hash"`
}

// RefKind distinguishes branches from tags.
type RefKind string

const (
	RefBranch RefKind = "branch"
	RefTag    RefKind = "tag"
)

// Ref is a named pointer into the commit graph.
type Ref struct {
	Name     string  `json:"name"`
	Kind     RefKind `json:"kind"`
	CommitID string  `json:"commit_id"`
}

// Diff lists the paths that changed between two commits.
type Diff struct {
	Added    []string `json:"added"`
	Modified []string `json:"modified"`
	Deleted  []string `json:"deleted"`
}

// CommitOpts carries the metadata for a new commit.
//
// ExpectedParent enables optimistic concurrency: when set and the
// branch tip no longer matches, Commit fails with ErrConcurrentUpdate
// and nothing moves.
type CommitOpts struct {
	Message        string
	Description    string
	Author         string
	ExpectedParent string
}

// Workspace is a staged set of mutations on one branch.
//
// A workspace is private to its creator: two concurrent commits each
// stage into their own workspace and race only at Commit, where the
// compare-and-set on the parent decides the winner.
type Workspace interface {
	// Base returns the branch tip the workspace was started from.
	Base() string

	// UploadInline stores bytes as an inline blob and stages the entry.
	UploadInline(ctx context.Context, path string, data []byte) (FileEntry, error)

	// LinkExternal stages an entry whose bytes live in the object store.
	LinkExternal(ctx context.Context, path, storageKey, sha256 string, size int64) (FileEntry, error)

	// Delete stages removal of a path. Removing a missing path is not
	// an error.
	Delete(ctx context.Context, path string) error

	// Copy re-links the entry at (fromCommit, fromPath) — fromCommit
	// defaulting to the workspace base — at toPath without moving bytes.
	Copy(ctx context.Context, fromPath, fromCommit, toPath string) (FileEntry, error)

	// Stat returns the staged view of a path.
	Stat(ctx context.Context, path string) (FileEntry, bool)

	// Commit writes the staged tree as a new commit and advances the
	// branch. Fails with ErrConcurrentUpdate when ExpectedParent no
	// longer matches the branch tip.
	Commit(ctx context.Context, opts CommitOpts) (Commit, error)
}

// Engine is the versioning capability behind every repository.
type Engine interface {
	// CreateRoot initialises a repository with an empty initial commit
	// on the default branch.
	CreateRoot(ctx context.Context, repoID, branch, author string) (Commit, error)

	// DropRoot removes every commit, ref and inline blob of a repository.
	DropRoot(ctx context.Context, repoID string) error

	// ResolveBranch returns the commit id a branch points at.
	ResolveBranch(ctx context.Context, repoID, name string) (string, error)

	// ResolveTag returns the commit id a tag points at.
	ResolveTag(ctx context.Context, repoID, name string) (string, error)

	// ResolveCommitPrefix resolves a 7..64 character lowercase hex
	// prefix to a full commit id. Ambiguous or unknown prefixes fail
	// with ErrRevisionNotFound.
	ResolveCommitPrefix(ctx context.Context, repoID, prefix string) (string, error)

	// GetCommit returns a commit by full id.
	GetCommit(ctx context.Context, repoID, commitID string) (Commit, error)

	// Tree returns the full tree of a commit.
	Tree(ctx context.Context, repoID, commitID string) (map[string]FileEntry, error)

	// Stat returns the entry at a path in a commit.
	Stat(ctx context.Context, repoID, commitID, path string) (FileEntry, error)

	// ListTree lists entries under a path prefix in deterministic
	// order. With recursive=false, subdirectories collapse into
	// directory rows. Cursor is the last path of the previous page.
	ListTree(ctx context.Context, repoID, commitID, path string, recursive bool, cursor string, limit int) ([]TreeEntry, string, error)

	// ReadInline returns the bytes of an inline blob.
	ReadInline(ctx context.Context, repoID, sha256 string) ([]byte, error)

	// Begin opens a workspace on a branch for staging one commit.
	Begin(ctx context.Context, repoID, branch string) (Workspace, error)

	CreateBranch(ctx context.Context, repoID, name, atCommit string) error
	DeleteBranch(ctx context.Context, repoID, name string) error
	CreateTag(ctx context.Context, repoID, name, atCommit string) error
	DeleteTag(ctx context.Context, repoID, name string) error
	ListRefs(ctx context.Context, repoID string) ([]Ref, error)

	// Log walks the commit graph from a commit towards the root.
	// Cursor is the id of the commit to resume from.
	Log(ctx context.Context, repoID, fromCommit string, limit int, cursor string) ([]Commit, string, error)

	// Diff compares the trees of two commits.
	Diff(ctx context.Context, repoID, a, b string) (Diff, error)

	// Revert produces a forward commit undoing the changes of the given
	// commit. Without force it refuses when any affected path changed
	// since.
	Revert(ctx context.Context, repoID, branch, commitID string, force bool, author string) (Commit, error)

	// Reset produces a forward commit whose tree equals the target
	// commit's tree. History is never discarded. Without force the
	// target must be an ancestor of the branch tip.
	Reset(ctx context.Context, repoID, branch, commitID string, force bool, message, author string) (Commit, error)

	// RollbackBranch moves a branch from expectedTip back to parent.
	// It is the compensation step for a metadata-transaction failure
	// after a successful commit; the orphaned commit becomes invisible.
	RollbackBranch(ctx context.Context, repoID, branch, expectedTip, parent string) error

	Close() error
}
