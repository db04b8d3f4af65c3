package badger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/modelsilo/silo/pkg/models"
	"github.com/modelsilo/silo/pkg/versioning"
)

// workspace stages mutations for one commit on one branch.
//
// The staged tree is a copy of the base tree; inline blobs are written
// to the store eagerly (content-addressed, so an aborted workspace
// leaves at worst unreferenced blobs for GC). Everything else only
// becomes visible when Commit succeeds.
type workspace struct {
	store  *Store
	repoID string
	branch string
	base   string
	tree   map[string]versioning.FileEntry
}

// Begin opens a workspace at the current branch tip.
func (s *Store) Begin(ctx context.Context, repoID, branch string) (versioning.Workspace, error) {
	tip, err := s.ResolveBranch(ctx, repoID, branch)
	if err != nil {
		return nil, err
	}
	tree, err := s.Tree(ctx, repoID, tip)
	if err != nil {
		return nil, err
	}

	staged := make(map[string]versioning.FileEntry, len(tree))
	for p, e := range tree {
		staged[p] = e
	}
	return &workspace{
		store:  s,
		repoID: repoID,
		branch: branch,
		base:   tip,
		tree:   staged,
	}, nil
}

// Base returns the branch tip the workspace was started from.
func (w *workspace) Base() string {
	return w.base
}

// UploadInline stores the bytes as an inline blob and stages the entry.
func (w *workspace) UploadInline(ctx context.Context, path string, data []byte) (versioning.FileEntry, error) {
	if err := ctx.Err(); err != nil {
		return versioning.FileEntry{}, err
	}

	sum := sha256.Sum256(data)
	sha := hex.EncodeToString(sum[:])

	// Content-addressed write: identical content is a no-op.
	err := w.store.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(keyInline(w.repoID, sha)); err == nil {
			return nil
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(keyInline(w.repoID, sha), data)
	})
	if err != nil {
		return versioning.FileEntry{}, err
	}

	entry := versioning.FileEntry{
		Path:   path,
		Size:   int64(len(data)),
		SHA256: sha,
	}
	w.tree[path] = entry
	return entry, nil
}

// LinkExternal stages an entry whose bytes live in the object store.
func (w *workspace) LinkExternal(ctx context.Context, path, storageKey, sha string, size int64) (versioning.FileEntry, error) {
	if err := ctx.Err(); err != nil {
		return versioning.FileEntry{}, err
	}

	entry := versioning.FileEntry{
		Path:       path,
		Size:       size,
		SHA256:     sha,
		External:   true,
		StorageKey: storageKey,
	}
	w.tree[path] = entry
	return entry, nil
}

// Delete stages removal of a path. Missing paths are not an error.
func (w *workspace) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	delete(w.tree, path)
	return nil
}

// Copy re-links existing content at a new path without moving bytes.
// fromCommit defaults to the workspace base.
func (w *workspace) Copy(ctx context.Context, fromPath, fromCommit, toPath string) (versioning.FileEntry, error) {
	if err := ctx.Err(); err != nil {
		return versioning.FileEntry{}, err
	}

	var src versioning.FileEntry
	if fromCommit == "" || fromCommit == w.base {
		entry, ok := w.tree[fromPath]
		if !ok {
			return versioning.FileEntry{}, models.ErrPathNotFound
		}
		src = entry
	} else {
		entry, err := w.store.Stat(ctx, w.repoID, fromCommit, fromPath)
		if err != nil {
			return versioning.FileEntry{}, err
		}
		src = entry
	}

	src.Path = toPath
	w.tree[toPath] = src
	return src, nil
}

// Stat returns the staged view of a path.
func (w *workspace) Stat(ctx context.Context, path string) (versioning.FileEntry, bool) {
	entry, ok := w.tree[path]
	return entry, ok
}

// Commit writes the staged tree as a new commit and advances the branch
// with a compare-and-set on the expected parent.
func (w *workspace) Commit(ctx context.Context, opts versioning.CommitOpts) (versioning.Commit, error) {
	if err := ctx.Err(); err != nil {
		return versioning.Commit{}, err
	}

	expected := opts.ExpectedParent
	if expected == "" {
		expected = w.base
	}

	var result versioning.Commit
	err := w.store.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(keyBranch(w.repoID, w.branch))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return models.ErrRevisionNotFound
			}
			return err
		}
		var tip string
		if err := item.Value(func(val []byte) error {
			tip = string(val)
			return nil
		}); err != nil {
			return err
		}
		if tip != expected {
			return models.ErrConcurrentUpdate
		}

		c := versioning.Commit{
			Parent:      expected,
			Author:      opts.Author,
			Message:     opts.Message,
			Description: opts.Description,
			CreatedAt:   time.Now().UTC(),
		}
		result, err = writeCommit(txn, w.repoID, c, w.tree)
		if err != nil {
			return err
		}
		return txn.Set(keyBranch(w.repoID, w.branch), []byte(result.ID))
	})
	if err != nil {
		// Badger reports serialisation conflicts between overlapping
		// update transactions; surface them as the same condition as a
		// lost compare-and-set.
		if errors.Is(err, badger.ErrConflict) {
			return versioning.Commit{}, models.ErrConcurrentUpdate
		}
		return versioning.Commit{}, err
	}
	return result, nil
}
