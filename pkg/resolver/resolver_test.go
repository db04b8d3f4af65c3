package resolver

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/modelsilo/silo/pkg/models"
	"github.com/modelsilo/silo/pkg/objectstore"
	"github.com/modelsilo/silo/pkg/objectstore/memory"
	"github.com/modelsilo/silo/pkg/transfer"
	"github.com/modelsilo/silo/pkg/versioning"
	badgerstore "github.com/modelsilo/silo/pkg/versioning/badger"
)

const repoID = "repo-1"

func newTestResolver(t *testing.T) (*Resolver, versioning.Engine, *memory.Store) {
	t.Helper()
	vcs, err := badgerstore.New(badgerstore.Config{InMemory: true})
	if err != nil {
		t.Fatalf("failed to open engine: %v", err)
	}
	t.Cleanup(func() { _ = vcs.Close() })

	if _, err := vcs.CreateRoot(context.Background(), repoID, models.DefaultBranch, "alice"); err != nil {
		t.Fatalf("CreateRoot failed: %v", err)
	}

	cfg := &transfer.Config{}
	cfg.ApplyDefaults()
	objects := memory.New()
	return New(cfg, vcs, objects), vcs, objects
}

func commitInline(t *testing.T, vcs versioning.Engine, message string, files map[string]string) versioning.Commit {
	t.Helper()
	ctx := context.Background()
	ws, err := vcs.Begin(ctx, repoID, models.DefaultBranch)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	for path, content := range files {
		if _, err := ws.UploadInline(ctx, path, []byte(content)); err != nil {
			t.Fatalf("UploadInline(%s) failed: %v", path, err)
		}
	}
	commit, err := ws.Commit(ctx, versioning.CommitOpts{Message: message, Author: "alice", ExpectedParent: ws.Base()})
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	return commit
}

func oidOf(data string) string {
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

func TestResolveInlineFile(t *testing.T) {
	r, vcs, _ := newTestResolver(t)
	ctx := context.Background()

	commit := commitInline(t, vcs, "add", map[string]string{"a.json": "hi"})

	res, err := r.ResolveFile(ctx, repoID, models.DefaultBranch, "a.json")
	if err != nil {
		t.Fatalf("ResolveFile failed: %v", err)
	}
	if res.CommitID != commit.ID || res.Kind != versioning.RevisionBranch {
		t.Fatalf("resolved %s (%s), want %s (branch)", res.CommitID, res.Kind, commit.ID)
	}
	if res.Redirect != nil {
		t.Fatal("inline entry produced a redirect")
	}
	if res.Entry.Size != 2 {
		t.Fatalf("size = %d, want 2", res.Entry.Size)
	}
	if want := "sha256:" + oidOf("hi"); res.ETag() != want {
		t.Fatalf("etag = %s, want %s", res.ETag(), want)
	}

	data, err := r.Open(ctx, repoID, res.Entry)
	if err != nil || string(data) != "hi" {
		t.Fatalf("Open = %q (%v), want \"hi\"", data, err)
	}
}

func TestResolveExternalFile(t *testing.T) {
	r, vcs, objects := newTestResolver(t)
	ctx := context.Background()

	data := strings.Repeat("w", 100)
	oid := oidOf(data)
	key := objectstore.ObjectKey(oid)
	objects.Put(key, []byte(data))

	ws, err := vcs.Begin(ctx, repoID, models.DefaultBranch)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if _, err := ws.LinkExternal(ctx, "w.bin", key, oid, 100); err != nil {
		t.Fatalf("LinkExternal failed: %v", err)
	}
	if _, err := ws.Commit(ctx, versioning.CommitOpts{Message: "add weights", Author: "alice", ExpectedParent: ws.Base()}); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	res, err := r.ResolveFile(ctx, repoID, models.DefaultBranch, "w.bin")
	if err != nil {
		t.Fatalf("ResolveFile failed: %v", err)
	}
	if res.Redirect == nil {
		t.Fatal("external entry produced no redirect")
	}
	if res.Redirect.Method != "GET" || !strings.Contains(res.Redirect.URL, key) {
		t.Fatalf("unexpected redirect: %+v", res.Redirect)
	}
}

func TestResolveRevisionForms(t *testing.T) {
	r, vcs, _ := newTestResolver(t)
	ctx := context.Background()

	commit := commitInline(t, vcs, "add", map[string]string{"a.json": "hi"})
	if err := vcs.CreateTag(ctx, repoID, "v1", commit.ID); err != nil {
		t.Fatalf("CreateTag failed: %v", err)
	}
	commitInline(t, vcs, "more", map[string]string{"b.json": "x"})

	// Tag stays pinned at its commit.
	res, err := r.ResolveFile(ctx, repoID, "v1", "a.json")
	if err != nil {
		t.Fatalf("tag resolve failed: %v", err)
	}
	if res.CommitID != commit.ID || res.Kind != versioning.RevisionTag {
		t.Fatalf("tag resolved to %s (%s)", res.CommitID, res.Kind)
	}

	// Commit id prefix.
	res, err = r.ResolveFile(ctx, repoID, commit.ID[:7], "a.json")
	if err != nil {
		t.Fatalf("prefix resolve failed: %v", err)
	}
	if res.CommitID != commit.ID || res.Kind != versioning.RevisionCommit {
		t.Fatalf("prefix resolved to %s (%s)", res.CommitID, res.Kind)
	}

	if _, err := r.ResolveFile(ctx, repoID, "nope", "a.json"); !errors.Is(err, models.ErrRevisionNotFound) {
		t.Fatalf("unknown revision: got %v, want ErrRevisionNotFound", err)
	}
	if _, err := r.ResolveFile(ctx, repoID, models.DefaultBranch, "missing.txt"); !errors.Is(err, models.ErrPathNotFound) {
		t.Fatalf("missing path: got %v, want ErrPathNotFound", err)
	}
}

func TestRevisionInfo(t *testing.T) {
	r, vcs, _ := newTestResolver(t)

	commit := commitInline(t, vcs, "add", map[string]string{"a.json": "hi"})

	info, kind, err := r.RevisionInfo(context.Background(), repoID, models.DefaultBranch)
	if err != nil {
		t.Fatalf("RevisionInfo failed: %v", err)
	}
	if info.ID != commit.ID || kind != versioning.RevisionBranch || info.Message != "add" {
		t.Fatalf("unexpected info: %+v (%s)", info, kind)
	}
}

func TestTreeExpand(t *testing.T) {
	r, vcs, objects := newTestResolver(t)
	ctx := context.Background()

	first := commitInline(t, vcs, "add config", map[string]string{"config.json": "{}"})

	data := strings.Repeat("w", 100)
	oid := oidOf(data)
	key := objectstore.ObjectKey(oid)
	objects.Put(key, []byte(data))

	ws, err := vcs.Begin(ctx, repoID, models.DefaultBranch)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if _, err := ws.LinkExternal(ctx, "w.bin", key, oid, 100); err != nil {
		t.Fatalf("LinkExternal failed: %v", err)
	}
	second, err := ws.Commit(ctx, versioning.CommitOpts{Message: "add weights", Author: "alice", ExpectedParent: ws.Base()})
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	items, next, err := r.Tree(ctx, repoID, models.DefaultBranch, "", TreeOptions{Expand: true, Limit: 10})
	if err != nil {
		t.Fatalf("Tree failed: %v", err)
	}
	if next != "" {
		t.Fatalf("unexpected cursor %q", next)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}

	byPath := make(map[string]TreeItem, len(items))
	for _, item := range items {
		byPath[item.Path] = item
	}

	cfg := byPath["config.json"]
	if cfg.Type != "file" || cfg.LFS != nil {
		t.Fatalf("unexpected config row: %+v", cfg)
	}
	if cfg.LastCommit == nil || cfg.LastCommit.ID != first.ID {
		t.Fatalf("config lastCommit = %+v, want %s", cfg.LastCommit, first.ID)
	}

	weights := byPath["w.bin"]
	if weights.LFS == nil || weights.LFS.OID != oid || weights.LFS.Size != 100 {
		t.Fatalf("unexpected lfs pointer: %+v", weights.LFS)
	}
	if weights.LFS.PointerSize <= 0 {
		t.Fatalf("pointerSize = %d", weights.LFS.PointerSize)
	}
	if weights.LastCommit == nil || weights.LastCommit.ID != second.ID || weights.LastCommit.Title != "add weights" {
		t.Fatalf("weights lastCommit = %+v, want %s", weights.LastCommit, second.ID)
	}
}

func TestTreePagination(t *testing.T) {
	r, vcs, _ := newTestResolver(t)
	ctx := context.Background()

	commitInline(t, vcs, "seed", map[string]string{
		"a.txt": "1", "b.txt": "2", "c.txt": "3",
	})

	var all []string
	cursor := ""
	for {
		items, next, err := r.Tree(ctx, repoID, models.DefaultBranch, "", TreeOptions{Cursor: cursor, Limit: 2})
		if err != nil {
			t.Fatalf("Tree failed: %v", err)
		}
		for _, item := range items {
			all = append(all, item.Path)
		}
		if next == "" {
			break
		}
		cursor = next
	}
	want := []string{"a.txt", "b.txt", "c.txt"}
	if len(all) != len(want) {
		t.Fatalf("paths = %v, want %v", all, want)
	}
	for i := range want {
		if all[i] != want[i] {
			t.Fatalf("paths = %v, want %v", all, want)
		}
	}
}

func TestPathsInfo(t *testing.T) {
	r, vcs, _ := newTestResolver(t)
	ctx := context.Background()

	commitInline(t, vcs, "seed", map[string]string{
		"README.md":       "hello",
		"weights/a.bin":   "aaaa",
		"weights/b.bin":   "bbbb",
		"nested/deep/c.t": "c",
	})

	items, err := r.PathsInfo(ctx, repoID, models.DefaultBranch, []string{"README.md", "weights", "missing.txt"})
	if err != nil {
		t.Fatalf("PathsInfo failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2: %+v", len(items), items)
	}
	if items[0].Type != "file" || items[0].Path != "README.md" || items[0].Size != 5 {
		t.Fatalf("unexpected file row: %+v", items[0])
	}
	if items[1].Type != "directory" || items[1].Path != "weights" {
		t.Fatalf("unexpected directory row: %+v", items[1])
	}
}
