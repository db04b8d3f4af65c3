package badger

import (
	"context"
	"fmt"
	"sort"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/modelsilo/silo/pkg/models"
	"github.com/modelsilo/silo/pkg/versioning"
)

// Log walks the commit graph from a commit towards the root. Cursor is
// the id of the commit to resume from; limit <= 0 means no limit.
func (s *Store) Log(ctx context.Context, repoID, fromCommit string, limit int, cursor string) ([]versioning.Commit, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	start := fromCommit
	if cursor != "" {
		start = cursor
	}

	var out []versioning.Commit
	next := ""
	err := s.db.View(func(txn *badger.Txn) error {
		id := start
		for id != "" {
			if limit > 0 && len(out) == limit {
				next = id
				return nil
			}
			var c versioning.Commit
			if err := getJSON(txn, keyCommit(repoID, id), &c); err != nil {
				return err
			}
			out = append(out, c)
			id = c.Parent
		}
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return out, next, nil
}

// Diff compares the trees of two commits. A path counts as modified
// when its sha256 or size differ between a and b.
func (s *Store) Diff(ctx context.Context, repoID, a, b string) (versioning.Diff, error) {
	treeA, err := s.Tree(ctx, repoID, a)
	if err != nil {
		return versioning.Diff{}, err
	}
	treeB, err := s.Tree(ctx, repoID, b)
	if err != nil {
		return versioning.Diff{}, err
	}
	return diffTrees(treeA, treeB), nil
}

// diffTrees describes the change from tree a to tree b.
func diffTrees(a, b map[string]versioning.FileEntry) versioning.Diff {
	var d versioning.Diff
	for p, eb := range b {
		ea, ok := a[p]
		if !ok {
			d.Added = append(d.Added, p)
			continue
		}
		if ea.SHA256 != eb.SHA256 || ea.Size != eb.Size {
			d.Modified = append(d.Modified, p)
		}
	}
	for p := range a {
		if _, ok := b[p]; !ok {
			d.Deleted = append(d.Deleted, p)
		}
	}
	sort.Strings(d.Added)
	sort.Strings(d.Modified)
	sort.Strings(d.Deleted)
	return d
}

// Revert produces a forward commit undoing the changes of the given
// commit: every path the commit touched is put back to its pre-commit
// state on top of the current branch tip. Without force it refuses
// when any affected path changed again since the commit.
func (s *Store) Revert(ctx context.Context, repoID, branch, commitID string, force bool, author string) (versioning.Commit, error) {
	if err := ctx.Err(); err != nil {
		return versioning.Commit{}, err
	}

	target, err := s.GetCommit(ctx, repoID, commitID)
	if err != nil {
		return versioning.Commit{}, err
	}

	after, err := s.Tree(ctx, repoID, target.ID)
	if err != nil {
		return versioning.Commit{}, err
	}
	// Reverting the initial commit restores the empty tree.
	before := map[string]versioning.FileEntry{}
	if target.Parent != "" {
		before, err = s.Tree(ctx, repoID, target.Parent)
		if err != nil {
			return versioning.Commit{}, err
		}
	}

	var result versioning.Commit
	err = s.db.Update(func(txn *badger.Txn) error {
		tip, err := branchTip(txn, repoID, branch)
		if err != nil {
			return err
		}
		tipTree, err := readTree(txn, repoID, tip)
		if err != nil {
			return err
		}

		staged := make(map[string]versioning.FileEntry, len(tipTree))
		for p, e := range tipTree {
			staged[p] = e
		}

		change := diffTrees(before, after)
		for _, group := range [][]string{change.Added, change.Modified, change.Deleted} {
			for _, p := range group {
				if !force && entriesDiffer(tipTree[p], after[p]) {
					return models.ErrConcurrentUpdate
				}
				restored, ok := before[p]
				if ok {
					staged[p] = restored
				} else {
					delete(staged, p)
				}
			}
		}

		c := versioning.Commit{
			Parent:    tip,
			Author:    author,
			Message:   fmt.Sprintf("Revert %q", target.Message),
			CreatedAt: time.Now().UTC(),
		}
		result, err = writeCommit(txn, repoID, c, staged)
		if err != nil {
			return err
		}
		return txn.Set(keyBranch(repoID, branch), []byte(result.ID))
	})
	if err != nil {
		return versioning.Commit{}, err
	}
	return result, nil
}

// Reset produces a forward commit whose tree equals the target commit's
// tree. History is never discarded. Without force the target must be
// an ancestor of the branch tip.
func (s *Store) Reset(ctx context.Context, repoID, branch, commitID string, force bool, message, author string) (versioning.Commit, error) {
	if err := ctx.Err(); err != nil {
		return versioning.Commit{}, err
	}

	target, err := s.GetCommit(ctx, repoID, commitID)
	if err != nil {
		return versioning.Commit{}, err
	}
	if message == "" {
		message = fmt.Sprintf("Reset to %s", shortID(target.ID))
	}

	var result versioning.Commit
	err = s.db.Update(func(txn *badger.Txn) error {
		tip, err := branchTip(txn, repoID, branch)
		if err != nil {
			return err
		}
		if !force {
			ancestor, err := isAncestor(txn, repoID, target.ID, tip)
			if err != nil {
				return err
			}
			if !ancestor {
				return models.ErrConcurrentUpdate
			}
		}

		tree, err := readTree(txn, repoID, target.ID)
		if err != nil {
			return err
		}

		c := versioning.Commit{
			Parent:    tip,
			Author:    author,
			Message:   message,
			CreatedAt: time.Now().UTC(),
		}
		result, err = writeCommit(txn, repoID, c, tree)
		if err != nil {
			return err
		}
		return txn.Set(keyBranch(repoID, branch), []byte(result.ID))
	})
	if err != nil {
		return versioning.Commit{}, err
	}
	return result, nil
}

// branchTip reads a branch ref inside txn.
func branchTip(txn *badger.Txn, repoID, branch string) (string, error) {
	item, err := txn.Get(keyBranch(repoID, branch))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return "", models.ErrRevisionNotFound
		}
		return "", err
	}
	var tip string
	err = item.Value(func(val []byte) error {
		tip = string(val)
		return nil
	})
	return tip, err
}

// isAncestor reports whether candidate appears on the first-parent
// chain from commit to the root.
func isAncestor(txn *badger.Txn, repoID, candidate, commit string) (bool, error) {
	id := commit
	for id != "" {
		if id == candidate {
			return true, nil
		}
		var c versioning.Commit
		if err := getJSON(txn, keyCommit(repoID, id), &c); err != nil {
			return false, err
		}
		id = c.Parent
	}
	return false, nil
}

// entriesDiffer compares two tree entries by content, treating a
// missing entry (zero value) as different from any file.
func entriesDiffer(a, b versioning.FileEntry) bool {
	return a.SHA256 != b.SHA256 || a.Size != b.Size
}

func shortID(id string) string {
	if len(id) > 7 {
		return id[:7]
	}
	return id
}
