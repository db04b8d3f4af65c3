package badger

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"strings"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/modelsilo/silo/pkg/models"
	"github.com/modelsilo/silo/pkg/versioning"
)

// commitPrefixPattern matches the revision forms that may denote a
// commit id: 7 to 64 lowercase hex characters.
var commitPrefixPattern = regexp.MustCompile(`^[0-9a-f]{7,64}$`)

// resolveRef reads a ref key and returns the commit id it points at.
func (s *Store) resolveRef(ctx context.Context, key []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var id string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			id = string(val)
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return "", models.ErrRevisionNotFound
		}
		return "", err
	}
	return id, nil
}

// ResolveBranch returns the commit id a branch points at.
func (s *Store) ResolveBranch(ctx context.Context, repoID, name string) (string, error) {
	return s.resolveRef(ctx, keyBranch(repoID, name))
}

// ResolveTag returns the commit id a tag points at.
func (s *Store) ResolveTag(ctx context.Context, repoID, name string) (string, error) {
	return s.resolveRef(ctx, keyTag(repoID, name))
}

// ResolveCommitPrefix resolves a hex prefix to a full commit id.
// Prefixes shorter than 7 characters, ambiguous prefixes and unknown
// prefixes all fail with ErrRevisionNotFound.
func (s *Store) ResolveCommitPrefix(ctx context.Context, repoID, prefix string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !commitPrefixPattern.MatchString(prefix) {
		return "", models.ErrRevisionNotFound
	}

	scan := []byte(prefixCommit + repoID + ":" + prefix)
	var matches []string
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: scan})
		defer it.Close()
		for it.Rewind(); it.Valid() && len(matches) < 2; it.Next() {
			key := string(it.Item().Key())
			matches = append(matches, strings.TrimPrefix(key, prefixCommit+repoID+":"))
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if len(matches) != 1 {
		return "", models.ErrRevisionNotFound
	}
	return matches[0], nil
}

// setRef creates a ref pointing at an existing commit. When mustNotExist
// is true an existing ref of the same name fails with ErrNameTaken
// (tags are immutable once created).
func (s *Store) setRef(ctx context.Context, repoID string, key []byte, atCommit string, mustNotExist bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(keyCommit(repoID, atCommit)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return models.ErrRevisionNotFound
			}
			return err
		}
		if mustNotExist {
			if _, err := txn.Get(key); err == nil {
				return models.ErrNameTaken
			} else if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
		}
		return txn.Set(key, []byte(atCommit))
	})
}

// CreateBranch creates a branch at an existing commit.
func (s *Store) CreateBranch(ctx context.Context, repoID, name, atCommit string) error {
	return s.setRef(ctx, repoID, keyBranch(repoID, name), atCommit, true)
}

// DeleteBranch removes a branch ref. The default branch cannot be
// removed while the root marker points at it.
func (s *Store) DeleteBranch(ctx context.Context, repoID, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(keyRoot(repoID))
		if err == nil {
			var def string
			verr := item.Value(func(val []byte) error {
				def = string(val)
				return nil
			})
			if verr != nil {
				return verr
			}
			if def == name {
				return models.ErrForbidden
			}
		}
		if _, err := txn.Get(keyBranch(repoID, name)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return models.ErrRevisionNotFound
			}
			return err
		}
		return txn.Delete(keyBranch(repoID, name))
	})
}

// CreateTag creates an immutable tag at an existing commit.
func (s *Store) CreateTag(ctx context.Context, repoID, name, atCommit string) error {
	return s.setRef(ctx, repoID, keyTag(repoID, name), atCommit, true)
}

// DeleteTag removes a tag ref.
func (s *Store) DeleteTag(ctx context.Context, repoID, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(keyTag(repoID, name)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return models.ErrRevisionNotFound
			}
			return err
		}
		return txn.Delete(keyTag(repoID, name))
	})
}

// ListRefs returns all branches and tags of a repository, branches
// first, each group sorted by name.
func (s *Store) ListRefs(ctx context.Context, repoID string) ([]versioning.Ref, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var refs []versioning.Ref
	err := s.db.View(func(txn *badger.Txn) error {
		collect := func(prefix string, kind versioning.RefKind) error {
			scan := []byte(prefix + repoID + ":")
			it := txn.NewIterator(badger.IteratorOptions{Prefix: scan})
			defer it.Close()
			for it.Rewind(); it.Valid(); it.Next() {
				item := it.Item()
				name := strings.TrimPrefix(string(item.Key()), string(scan))
				err := item.Value(func(val []byte) error {
					refs = append(refs, versioning.Ref{
						Name:     name,
						Kind:     kind,
						CommitID: string(val),
					})
					return nil
				})
				if err != nil {
					return err
				}
			}
			return nil
		}
		if err := collect(prefixBranch, versioning.RefBranch); err != nil {
			return err
		}
		return collect(prefixTag, versioning.RefTag)
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(refs, func(i, j int) bool {
		if refs[i].Kind != refs[j].Kind {
			return refs[i].Kind == versioning.RefBranch
		}
		return refs[i].Name < refs[j].Name
	})
	return refs, nil
}

// RollbackBranch moves a branch from expectedTip back to parent. Used
// only as compensation when the metadata transaction fails after a
// successful commit. The branch must still point at expectedTip.
func (s *Store) RollbackBranch(ctx context.Context, repoID, branch, expectedTip, parent string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(keyBranch(repoID, branch))
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
		if tip != expectedTip {
			return models.ErrConcurrentUpdate
		}
		return txn.Set(keyBranch(repoID, branch), []byte(parent))
	})
}
