package badger

import (
	"context"
	"errors"
	"sort"
	"strings"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/modelsilo/silo/pkg/models"
	"github.com/modelsilo/silo/pkg/versioning"
)

// Tree returns the full tree of a commit.
func (s *Store) Tree(ctx context.Context, repoID, commitID string) (map[string]versioning.FileEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var tree map[string]versioning.FileEntry
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		tree, err = readTree(txn, repoID, commitID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return tree, nil
}

// Stat returns the entry at a path in a commit.
func (s *Store) Stat(ctx context.Context, repoID, commitID, path string) (versioning.FileEntry, error) {
	tree, err := s.Tree(ctx, repoID, commitID)
	if err != nil {
		return versioning.FileEntry{}, err
	}
	entry, ok := tree[path]
	if !ok {
		return versioning.FileEntry{}, models.ErrPathNotFound
	}
	return entry, nil
}

// ListTree lists entries under a path prefix in lexicographic order.
//
// With recursive=false, files nested below the requested path collapse
// into directory rows (size 0, IsDir=true). Cursor is the path of the
// last row of the previous page; limit <= 0 means no limit.
func (s *Store) ListTree(ctx context.Context, repoID, commitID, path string, recursive bool, cursor string, limit int) ([]versioning.TreeEntry, string, error) {
	tree, err := s.Tree(ctx, repoID, commitID)
	if err != nil {
		return nil, "", err
	}

	prefix := strings.Trim(path, "/")
	if prefix != "" {
		prefix += "/"
	}

	// Collect rows: files directly, or collapsed directories.
	byName := make(map[string]versioning.TreeEntry)
	for p, entry := range tree {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := strings.TrimPrefix(p, prefix)
		if !recursive {
			if idx := strings.IndexByte(rest, '/'); idx >= 0 {
				dir := prefix + rest[:idx]
				byName[dir] = versioning.TreeEntry{
					FileEntry: versioning.FileEntry{Path: dir},
					IsDir:     true,
				}
				continue
			}
		}
		byName[p] = versioning.TreeEntry{FileEntry: entry}
	}

	rows := make([]versioning.TreeEntry, 0, len(byName))
	for _, row := range byName {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Path < rows[j].Path })

	// Apply cursor and limit.
	start := 0
	if cursor != "" {
		start = sort.Search(len(rows), func(i int) bool { return rows[i].Path > cursor })
	}
	rows = rows[start:]

	next := ""
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
		next = rows[len(rows)-1].Path
	}
	return rows, next, nil
}

// ReadInline returns the bytes of an inline blob.
func (s *Store) ReadInline(ctx context.Context, repoID, sha256 string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyInline(repoID, sha256))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, models.ErrPathNotFound
		}
		return nil, err
	}
	return data, nil
}
