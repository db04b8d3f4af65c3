// Package resolver maps (repository, revision, path) onto file
// metadata and bytes.
//
// Inline entries are served directly out of the versioning engine;
// external entries resolve to a fresh presigned GET so large blobs are
// never proxied through the hub.
package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/modelsilo/silo/pkg/objectstore"
	"github.com/modelsilo/silo/pkg/transfer"
	"github.com/modelsilo/silo/pkg/versioning"
)

// maxHistoryWalk bounds the per-path last-commit search in expanded
// tree listings.
const maxHistoryWalk = 1000

// Resolver answers read-path lookups against the versioning engine and
// the object store.
type Resolver struct {
	cfg     *transfer.Config
	engine  versioning.Engine
	objects objectstore.Store
}

// New creates a resolver.
func New(cfg *transfer.Config, engine versioning.Engine, objects objectstore.Store) *Resolver {
	return &Resolver{cfg: cfg, engine: engine, objects: objects}
}

// FileResolution is the outcome of resolving a file path at a revision.
type FileResolution struct {
	CommitID string
	Kind     versioning.RevisionKind
	Entry    versioning.FileEntry

	// Redirect is a fresh presigned GET for external entries, nil for
	// inline ones.
	Redirect *objectstore.PresignedURL
}

// ETag is the strong validator for the resolved content.
func (r *FileResolution) ETag() string {
	return "sha256:" + r.Entry.SHA256
}

// ResolveFile resolves a revision name and stats the path at the
// resulting commit. External entries carry a presigned download URL.
func (r *Resolver) ResolveFile(ctx context.Context, repoID, revision, path string) (*FileResolution, error) {
	commitID, kind, err := versioning.ResolveRevision(ctx, r.engine, repoID, revision)
	if err != nil {
		return nil, err
	}
	entry, err := r.engine.Stat(ctx, repoID, commitID, path)
	if err != nil {
		return nil, err
	}

	res := &FileResolution{CommitID: commitID, Kind: kind, Entry: entry}
	if entry.External {
		url, err := r.objects.PresignGet(ctx, entry.StorageKey, r.cfg.DownloadTTL)
		if err != nil {
			return nil, err
		}
		res.Redirect = &url
	}
	return res, nil
}

// Open returns the bytes of an inline entry.
func (r *Resolver) Open(ctx context.Context, repoID string, entry versioning.FileEntry) ([]byte, error) {
	return r.engine.ReadInline(ctx, repoID, entry.SHA256)
}

// RevisionInfo resolves a revision name to its commit.
func (r *Resolver) RevisionInfo(ctx context.Context, repoID, revision string) (versioning.Commit, versioning.RevisionKind, error) {
	commitID, kind, err := versioning.ResolveRevision(ctx, r.engine, repoID, revision)
	if err != nil {
		return versioning.Commit{}, "", err
	}
	commit, err := r.engine.GetCommit(ctx, repoID, commitID)
	if err != nil {
		return versioning.Commit{}, "", err
	}
	return commit, kind, nil
}

// TreeOptions control a tree listing.
type TreeOptions struct {
	Recursive bool
	Expand    bool
	Cursor    string
	Limit     int
}

// LFSPointer is the expanded large-file summary of an external entry.
type LFSPointer struct {
	OID         string `json:"oid"`
	Size        int64  `json:"size"`
	PointerSize int    `json:"pointerSize"`
}

// CommitSummary is the expanded last-commit summary of a listed path.
type CommitSummary struct {
	ID    string    `json:"id"`
	Title string    `json:"title"`
	Date  time.Time `json:"date"`
}

// TreeItem is one row of a tree listing or a paths-info lookup.
type TreeItem struct {
	Type string `json:"type"` // "file" or "directory"
	Path string `json:"path"`
	Size int64  `json:"size"`
	OID  string `json:"oid,omitempty"`

	LFS        *LFSPointer    `json:"lfs,omitempty"`
	LastCommit *CommitSummary `json:"lastCommit,omitempty"`
}

// Tree lists the entries under a path at a revision.
//
// With Expand set, file rows additionally carry an LFS pointer summary
// for external entries and the most recent commit that touched the
// path. The returned cursor is non-empty while more pages remain.
func (r *Resolver) Tree(ctx context.Context, repoID, revision, path string, opts TreeOptions) ([]TreeItem, string, error) {
	commitID, _, err := versioning.ResolveRevision(ctx, r.engine, repoID, revision)
	if err != nil {
		return nil, "", err
	}

	entries, next, err := r.engine.ListTree(ctx, repoID, commitID, path, opts.Recursive, opts.Cursor, opts.Limit)
	if err != nil {
		return nil, "", err
	}

	items := make([]TreeItem, 0, len(entries))
	for _, entry := range entries {
		item := toItem(entry)
		if opts.Expand && !entry.IsDir {
			if entry.External {
				item.LFS = pointerFor(entry.FileEntry)
			}
			last, err := r.lastCommitFor(ctx, repoID, commitID, entry.Path)
			if err != nil {
				return nil, "", err
			}
			item.LastCommit = last
		}
		items = append(items, item)
	}
	return items, next, nil
}

// PathsInfo stats a batch of paths at a revision. Paths that exist as
// files come back as file rows, paths that are directory prefixes as
// directory rows; unknown paths are omitted.
func (r *Resolver) PathsInfo(ctx context.Context, repoID, revision string, paths []string) ([]TreeItem, error) {
	commitID, _, err := versioning.ResolveRevision(ctx, r.engine, repoID, revision)
	if err != nil {
		return nil, err
	}

	items := make([]TreeItem, 0, len(paths))
	for _, path := range paths {
		entry, err := r.engine.Stat(ctx, repoID, commitID, path)
		if err == nil {
			item := toItem(versioning.TreeEntry{FileEntry: entry})
			if entry.External {
				item.LFS = pointerFor(entry)
			}
			items = append(items, item)
			continue
		}

		// Not a file; a non-empty listing under the path makes it a
		// directory.
		children, _, lerr := r.engine.ListTree(ctx, repoID, commitID, path, false, "", 1)
		if lerr != nil {
			return nil, lerr
		}
		if len(children) > 0 {
			items = append(items, TreeItem{Type: "directory", Path: path})
		}
	}
	return items, nil
}

// lastCommitFor walks the first-parent chain from tip looking for the
// commit that last changed path. The walk is bounded; if the change
// lies deeper than the bound, the oldest visited commit is reported.
func (r *Resolver) lastCommitFor(ctx context.Context, repoID, tip, path string) (*CommitSummary, error) {
	commit, err := r.engine.GetCommit(ctx, repoID, tip)
	if err != nil {
		return nil, err
	}
	current, ok := r.statAt(ctx, repoID, commit.ID, path)
	if !ok {
		return nil, fmt.Errorf("path %q missing at commit %s", path, tip)
	}

	for i := 0; i < maxHistoryWalk && commit.Parent != ""; i++ {
		inParent, ok := r.statAt(ctx, repoID, commit.Parent, path)
		if !ok || inParent != current {
			break
		}
		commit, err = r.engine.GetCommit(ctx, repoID, commit.Parent)
		if err != nil {
			return nil, err
		}
	}
	return &CommitSummary{ID: commit.ID, Title: commit.Message, Date: commit.CreatedAt}, nil
}

func (r *Resolver) statAt(ctx context.Context, repoID, commitID, path string) (versioning.FileEntry, bool) {
	entry, err := r.engine.Stat(ctx, repoID, commitID, path)
	if err != nil {
		return versioning.FileEntry{}, false
	}
	return entry, true
}

func toItem(entry versioning.TreeEntry) TreeItem {
	if entry.IsDir {
		return TreeItem{Type: "directory", Path: entry.Path}
	}
	return TreeItem{
		Type: "file",
		Path: entry.Path,
		Size: entry.Size,
		OID:  entry.SHA256,
	}
}

// pointerFor reports the size a canonical git-lfs pointer file for the
// entry would have, alongside the oid and blob size.
func pointerFor(entry versioning.FileEntry) *LFSPointer {
	text := fmt.Sprintf("version https://git-lfs.github.com/spec/v1\noid sha256:%s\nsize %d\n", entry.SHA256, entry.Size)
	return &LFSPointer{OID: entry.SHA256, Size: entry.Size, PointerSize: len(text)}
}
