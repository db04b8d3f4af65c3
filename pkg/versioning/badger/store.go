// Package badger implements the versioning engine on BadgerDB.
//
// Key namespace design (one logical table per prefix):
//
//	Data Type        Prefix  Key Format                Value
//	=========================================================
//	Root marker      "r:"    r:<repoID>                default branch name
//	Commit           "c:"    c:<repoID>:<commitID>     Commit (JSON)
//	Tree snapshot    "t:"    t:<repoID>:<commitID>     map[path]FileEntry (JSON)
//	Branch ref       "b:"    b:<repoID>:<name>         commitID (bytes)
//	Tag ref          "g:"    g:<repoID>:<name>         commitID (bytes)
//	Inline blob      "i:"    i:<repoID>:<sha256>       raw bytes
//
// Commits and trees are immutable once written; only branch refs move.
// The commit id is the sha256 of the canonical commit encoding, so the
// graph is content addressed end to end.
package badger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/modelsilo/silo/pkg/models"
	"github.com/modelsilo/silo/pkg/versioning"
)

const (
	prefixRoot   = "r:"
	prefixCommit = "c:"
	prefixTree   = "t:"
	prefixBranch = "b:"
	prefixTag    = "g:"
	prefixInline = "i:"
)

func keyRoot(repoID string) []byte { return []byte(prefixRoot + repoID) }

func keyCommit(repoID, commitID string) []byte {
	return []byte(prefixCommit + repoID + ":" + commitID)
}

func keyTree(repoID, commitID string) []byte {
	return []byte(prefixTree + repoID + ":" + commitID)
}

func keyBranch(repoID, name string) []byte {
	return []byte(prefixBranch + repoID + ":" + name)
}

func keyTag(repoID, name string) []byte {
	return []byte(prefixTag + repoID + ":" + name)
}

func keyInline(repoID, sha string) []byte {
	return []byte(prefixInline + repoID + ":" + sha)
}

// Store implements versioning.Engine on BadgerDB.
type Store struct {
	db *badger.DB
}

// Config contains the badger engine configuration.
type Config struct {
	// Path is the directory holding the badger value log and LSM tree.
	Path string `mapstructure:"path" yaml:"path"`

	// InMemory runs the engine without persistence (tests only).
	InMemory bool `mapstructure:"in_memory" yaml:"in_memory"`
}

// New opens (or creates) the versioning store.
func New(cfg Config) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path).WithLogger(nil)
	if cfg.InMemory {
		opts = opts.WithInMemory(true).WithDir("").WithValueDir("")
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open versioning store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// hashTree returns the sha256 of the canonical tree encoding.
// encoding/json writes map keys in sorted order, so the encoding is
// deterministic.
func hashTree(tree map[string]versioning.FileEntry) (string, error) {
	data, err := json.Marshal(tree)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// commitID derives the content-addressed id of a commit.
func commitID(c *versioning.Commit) string {
	payload := fmt.Sprintf("commit %s\nparent %s\nauthor %s\ndate %d\ntree %s\n%s\n%s",
		c.TreeHash, c.Parent, c.Author, c.CreatedAt.UnixNano(), c.TreeHash, c.Message, c.Description)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// writeCommit persists a commit and its tree inside txn and returns the
// assigned id.
func writeCommit(txn *badger.Txn, repoID string, c versioning.Commit, tree map[string]versioning.FileEntry) (versioning.Commit, error) {
	treeHash, err := hashTree(tree)
	if err != nil {
		return versioning.Commit{}, err
	}
	c.TreeHash = treeHash
	c.ID = commitID(&c)

	commitData, err := json.Marshal(c)
	if err != nil {
		return versioning.Commit{}, err
	}
	treeData, err := json.Marshal(tree)
	if err != nil {
		return versioning.Commit{}, err
	}

	if err := txn.Set(keyCommit(repoID, c.ID), commitData); err != nil {
		return versioning.Commit{}, err
	}
	if err := txn.Set(keyTree(repoID, c.ID), treeData); err != nil {
		return versioning.Commit{}, err
	}
	return c, nil
}

// CreateRoot initialises a repository with an empty initial commit.
func (s *Store) CreateRoot(ctx context.Context, repoID, branch, author string) (versioning.Commit, error) {
	if err := ctx.Err(); err != nil {
		return versioning.Commit{}, err
	}
	if branch == "" {
		branch = models.DefaultBranch
	}

	var initial versioning.Commit
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(keyRoot(repoID)); err == nil {
			return models.ErrNameTaken
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		c := versioning.Commit{
			Author:    author,
			Message:   "initial commit",
			CreatedAt: time.Now().UTC(),
		}
		var err error
		initial, err = writeCommit(txn, repoID, c, map[string]versioning.FileEntry{})
		if err != nil {
			return err
		}
		if err := txn.Set(keyBranch(repoID, branch), []byte(initial.ID)); err != nil {
			return err
		}
		return txn.Set(keyRoot(repoID), []byte(branch))
	})
	if err != nil {
		return versioning.Commit{}, err
	}
	return initial, nil
}

// DropRoot removes every key belonging to a repository.
func (s *Store) DropRoot(ctx context.Context, repoID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	prefixes := [][]byte{
		[]byte(prefixCommit + repoID + ":"),
		[]byte(prefixTree + repoID + ":"),
		[]byte(prefixBranch + repoID + ":"),
		[]byte(prefixTag + repoID + ":"),
		[]byte(prefixInline + repoID + ":"),
		keyRoot(repoID),
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, prefix := range prefixes {
		err := s.db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
			defer it.Close()
			for it.Rewind(); it.Valid(); it.Next() {
				key := it.Item().KeyCopy(nil)
				if err := wb.Delete(key); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return wb.Flush()
}

// GetCommit returns a commit by full id.
func (s *Store) GetCommit(ctx context.Context, repoID, id string) (versioning.Commit, error) {
	if err := ctx.Err(); err != nil {
		return versioning.Commit{}, err
	}

	var c versioning.Commit
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, keyCommit(repoID, id), &c)
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return versioning.Commit{}, models.ErrRevisionNotFound
		}
		return versioning.Commit{}, err
	}
	return c, nil
}

// getJSON reads a key and unmarshals its value.
func getJSON(txn *badger.Txn, key []byte, out any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	})
}

// readTree loads a commit's tree inside txn.
func readTree(txn *badger.Txn, repoID, commitID string) (map[string]versioning.FileEntry, error) {
	tree := make(map[string]versioning.FileEntry)
	if err := getJSON(txn, keyTree(repoID, commitID), &tree); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, models.ErrRevisionNotFound
		}
		return nil, err
	}
	return tree, nil
}
