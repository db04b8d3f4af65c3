package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/modelsilo/silo/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	st, err := New(&Config{
		Type:   DatabaseTypeSQLite,
		SQLite: SQLiteConfig{Path: ":memory:"},
	})
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func seedUser(t *testing.T, st *Store, username string) *models.User {
	t.Helper()
	hash, err := models.HashPassword("test-password")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	user := &models.User{
		Username:     username,
		PasswordHash: hash,
		Enabled:      true,
	}
	if err := st.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("failed to create user %q: %v", username, err)
	}
	return user
}

func seedRepo(t *testing.T, st *Store, user *models.User, name string, private bool) *models.Repository {
	t.Helper()
	repo := &models.Repository{
		Kind:          models.RepoKindModel,
		NamespaceID:   user.NamespaceID,
		NamespaceName: user.Username,
		Name:          name,
		Private:       private,
		CreatedBy:     user.ID,
	}
	if err := st.CreateRepo(context.Background(), repo); err != nil {
		t.Fatalf("failed to create repo %q: %v", name, err)
	}
	return repo
}

func TestCreateUserCreatesNamespace(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	user := seedUser(t, st, "alice")

	ns, err := st.GetNamespace(ctx, "alice")
	if err != nil {
		t.Fatalf("failed to get namespace: %v", err)
	}
	if ns.ID != user.NamespaceID {
		t.Errorf("namespace ID mismatch: user has %q, namespace is %q", user.NamespaceID, ns.ID)
	}
	if ns.Kind != models.NamespaceUser {
		t.Errorf("expected user namespace, got %q", ns.Kind)
	}

	dup := &models.User{Username: "alice", PasswordHash: "x", Enabled: true}
	if err := st.CreateUser(ctx, dup); !errors.Is(err, models.ErrNameTaken) {
		t.Errorf("expected ErrNameTaken for duplicate username, got %v", err)
	}

	bad := &models.User{Username: "no spaces here", PasswordHash: "x"}
	if err := st.CreateUser(ctx, bad); !errors.Is(err, models.ErrInvalidName) {
		t.Errorf("expected ErrInvalidName, got %v", err)
	}
}

func TestOrgNamespaceClashesWithUser(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	user := seedUser(t, st, "alice")

	if _, err := st.CreateOrg(ctx, "alice", user.ID); !errors.Is(err, models.ErrNameTaken) {
		t.Fatalf("expected ErrNameTaken for org named after a user, got %v", err)
	}

	ns, err := st.CreateOrg(ctx, "acme", user.ID)
	if err != nil {
		t.Fatalf("failed to create org: %v", err)
	}
	m, err := st.GetMembership(ctx, ns.ID, user.ID)
	if err != nil {
		t.Fatalf("failed to get membership: %v", err)
	}
	if m == nil || m.Role != models.RoleSuperAdmin {
		t.Errorf("expected creator to be super-admin, got %+v", m)
	}
}

func TestRepoIdentityAndDefaults(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	alice := seedUser(t, st, "alice")
	repo := seedRepo(t, st, alice, "bert-base", false)

	if repo.DefaultBranch != models.DefaultBranch {
		t.Errorf("expected default branch %q, got %q", models.DefaultBranch, repo.DefaultBranch)
	}

	got, err := st.GetRepo(ctx, models.RepoKindModel, "alice", "bert-base")
	if err != nil {
		t.Fatalf("failed to get repo: %v", err)
	}
	if got.ID != repo.ID {
		t.Errorf("repo ID mismatch: %q vs %q", got.ID, repo.ID)
	}

	// Same name under a different kind is a distinct repository.
	ds := &models.Repository{
		Kind:          models.RepoKindDataset,
		NamespaceID:   alice.NamespaceID,
		NamespaceName: alice.Username,
		Name:          "bert-base",
	}
	if err := st.CreateRepo(ctx, ds); err != nil {
		t.Fatalf("same name under another kind should succeed: %v", err)
	}

	dup := &models.Repository{
		Kind:          models.RepoKindModel,
		NamespaceID:   alice.NamespaceID,
		NamespaceName: alice.Username,
		Name:          "bert-base",
	}
	if err := st.CreateRepo(ctx, dup); !errors.Is(err, models.ErrNameTaken) {
		t.Errorf("expected ErrNameTaken for duplicate identity, got %v", err)
	}

	if _, err := st.GetRepo(ctx, models.RepoKindModel, "alice", "missing"); !errors.Is(err, models.ErrRepoNotFound) {
		t.Errorf("expected ErrRepoNotFound, got %v", err)
	}
}

func TestApplyCommitMovesEverythingTogether(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	alice := seedUser(t, st, "alice")
	repo := seedRepo(t, st, alice, "m1", false)

	oid := "aa11aa11aa11aa11aa11aa11aa11aa11aa11aa11aa11aa11aa11aa11aa11aa11"
	if _, err := st.CreateStaging(ctx, &models.StagingUpload{
		RepoID: repo.ID,
		OID:    oid,
		Size:   1024,
		State:  models.StagingPending,
	}); err != nil {
		t.Fatalf("failed to create staging record: %v", err)
	}

	err := st.ApplyCommit(ctx, &CommitApply{
		RepoID:      repo.ID,
		NamespaceID: repo.NamespaceID,
		Private:     false,
		Branch:      "main",
		CommitID:    "c1",
		Upserts: []models.File{
			{Path: "README.md", Size: 12, SHA256: "deadbeef", StorageKind: models.StorageInline},
			{Path: "model.bin", Size: 1024, SHA256: oid, StorageKind: models.StorageExternal},
		},
		BytesDelta:   1036,
		VerifiedOIDs: []string{oid},
	})
	if err != nil {
		t.Fatalf("failed to apply commit: %v", err)
	}

	f, err := st.GetFile(ctx, repo.ID, "model.bin")
	if err != nil {
		t.Fatalf("failed to get file mirror: %v", err)
	}
	if f.CommitID != "c1" || f.StorageKind != models.StorageExternal {
		t.Errorf("unexpected file mirror: %+v", f)
	}

	got, err := st.GetRepoByID(ctx, repo.ID)
	if err != nil {
		t.Fatalf("failed to reload repo: %v", err)
	}
	if got.UsedBytes != 1036 {
		t.Errorf("expected used_bytes 1036, got %d", got.UsedBytes)
	}
	ns, err := st.GetNamespaceByID(ctx, repo.NamespaceID)
	if err != nil {
		t.Fatalf("failed to reload namespace: %v", err)
	}
	if ns.UsedPublicBytes != 1036 || ns.UsedPrivateBytes != 0 {
		t.Errorf("expected public pool 1036/private 0, got %d/%d", ns.UsedPublicBytes, ns.UsedPrivateBytes)
	}

	revs, err := st.ListRevisions(ctx, repo.ID)
	if err != nil {
		t.Fatalf("failed to list revisions: %v", err)
	}
	if len(revs) != 1 || revs[0].Name != "main" || revs[0].CommitID != "c1" {
		t.Errorf("expected main -> c1 mirror, got %+v", revs)
	}

	pending, err := st.PendingStaging(ctx, oid)
	if err != nil {
		t.Fatalf("failed to query staging: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("expected staging closed by commit, %d records still pending", len(pending))
	}

	// A second commit on the same branch overwrites the mirror, applies
	// deletes and moves the counters back down.
	err = st.ApplyCommit(ctx, &CommitApply{
		RepoID:      repo.ID,
		NamespaceID: repo.NamespaceID,
		Branch:      "main",
		CommitID:    "c2",
		Upserts: []models.File{
			{Path: "README.md", Size: 20, SHA256: "cafebabe", StorageKind: models.StorageInline},
		},
		Deletes:    []string{"model.bin"},
		BytesDelta: -1016,
	})
	if err != nil {
		t.Fatalf("failed to apply second commit: %v", err)
	}

	if _, err := st.GetFile(ctx, repo.ID, "model.bin"); !errors.Is(err, models.ErrPathNotFound) {
		t.Errorf("expected deleted path to be gone, got %v", err)
	}
	f, err = st.GetFile(ctx, repo.ID, "README.md")
	if err != nil {
		t.Fatalf("failed to get file mirror: %v", err)
	}
	if f.Size != 20 || f.CommitID != "c2" {
		t.Errorf("expected upsert to overwrite mirror, got %+v", f)
	}
	got, _ = st.GetRepoByID(ctx, repo.ID)
	if got.UsedBytes != 20 {
		t.Errorf("expected used_bytes 20 after delete, got %d", got.UsedBytes)
	}

	ok, err := st.HasExternalReference(ctx, oid)
	if err != nil {
		t.Fatalf("failed to check external reference: %v", err)
	}
	if ok {
		t.Error("expected no external reference after the blob was deleted from the tip")
	}
}

func TestVisibilityFlipMovesUsagePools(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	alice := seedUser(t, st, "alice")
	repo := seedRepo(t, st, alice, "m1", false)

	if err := st.ApplyCommit(ctx, &CommitApply{
		RepoID:      repo.ID,
		NamespaceID: repo.NamespaceID,
		Branch:      "main",
		CommitID:    "c1",
		BytesDelta:  500,
	}); err != nil {
		t.Fatalf("failed to apply commit: %v", err)
	}

	private := true
	if err := st.UpdateRepoSettings(ctx, repo.ID, &private, ""); err != nil {
		t.Fatalf("failed to update settings: %v", err)
	}

	ns, err := st.GetNamespaceByID(ctx, repo.NamespaceID)
	if err != nil {
		t.Fatalf("failed to reload namespace: %v", err)
	}
	if ns.UsedPublicBytes != 0 || ns.UsedPrivateBytes != 500 {
		t.Errorf("expected usage moved to private pool, got public %d private %d",
			ns.UsedPublicBytes, ns.UsedPrivateBytes)
	}

	got, err := st.GetRepoByID(ctx, repo.ID)
	if err != nil {
		t.Fatalf("failed to reload repo: %v", err)
	}
	if !got.Private {
		t.Error("expected repo to be private")
	}
}

func TestDeleteRepoReleasesUsage(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	alice := seedUser(t, st, "alice")
	repo := seedRepo(t, st, alice, "m1", true)

	if err := st.ApplyCommit(ctx, &CommitApply{
		RepoID:      repo.ID,
		NamespaceID: repo.NamespaceID,
		Private:     true,
		Branch:      "main",
		CommitID:    "c1",
		Upserts:     []models.File{{Path: "a.txt", Size: 300, SHA256: "aa", StorageKind: models.StorageInline}},
		BytesDelta:  300,
	}); err != nil {
		t.Fatalf("failed to apply commit: %v", err)
	}

	if err := st.DeleteRepo(ctx, repo.ID); err != nil {
		t.Fatalf("failed to delete repo: %v", err)
	}

	if _, err := st.GetRepoByID(ctx, repo.ID); !errors.Is(err, models.ErrRepoNotFound) {
		t.Errorf("expected ErrRepoNotFound after delete, got %v", err)
	}
	files, err := st.ListFiles(ctx, repo.ID)
	if err != nil {
		t.Fatalf("failed to list files: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("expected dependent file rows removed, %d left", len(files))
	}
	ns, err := st.GetNamespaceByID(ctx, repo.NamespaceID)
	if err != nil {
		t.Fatalf("failed to reload namespace: %v", err)
	}
	if ns.UsedPrivateBytes != 0 {
		t.Errorf("expected private pool released, got %d", ns.UsedPrivateBytes)
	}

	if err := st.DeleteRepo(ctx, repo.ID); !errors.Is(err, models.ErrRepoNotFound) {
		t.Errorf("expected ErrRepoNotFound on double delete, got %v", err)
	}
}

func TestStagingLifecycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	alice := seedUser(t, st, "alice")
	repo := seedRepo(t, st, alice, "m1", false)

	oid := "bb22bb22bb22bb22bb22bb22bb22bb22bb22bb22bb22bb22bb22bb22bb22bb22"
	id, err := st.CreateStaging(ctx, &models.StagingUpload{
		RepoID: repo.ID,
		OID:    oid,
		Size:   2048,
		State:  models.StagingPending,
	})
	if err != nil {
		t.Fatalf("failed to create staging record: %v", err)
	}
	if id == "" {
		t.Fatal("expected a generated staging ID")
	}

	pending, err := st.PendingStaging(ctx, oid)
	if err != nil {
		t.Fatalf("failed to query pending staging: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != id {
		t.Fatalf("expected one pending record %q, got %+v", id, pending)
	}

	// The oid is protected from GC while the record is recent, in any state.
	recent, err := st.RecentStagingOIDs(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("failed to query recent oids: %v", err)
	}
	if _, ok := recent[oid]; !ok {
		t.Errorf("expected %q in recent staging oids", oid)
	}

	if err := st.CompleteStaging(ctx, oid); err != nil {
		t.Fatalf("failed to complete staging: %v", err)
	}
	pending, err = st.PendingStaging(ctx, oid)
	if err != nil {
		t.Fatalf("failed to query pending staging: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("expected no pending records after completion, got %d", len(pending))
	}
	// Idempotent: nothing left to close.
	if err := st.CompleteStaging(ctx, oid); err != nil {
		t.Errorf("expected idempotent completion, got %v", err)
	}

	stale, err := st.StaleStaging(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("failed to query stale staging: %v", err)
	}
	if len(stale) != 0 {
		t.Errorf("completed records must not show up as stale, got %d", len(stale))
	}

	if err := st.DeleteStaging(ctx, id); err != nil {
		t.Fatalf("failed to delete staging record: %v", err)
	}
	if err := st.DeleteStaging(ctx, id); !errors.Is(err, models.ErrStagingNotFound) {
		t.Errorf("expected ErrStagingNotFound on double delete, got %v", err)
	}
}

func TestTokenDigestLookupAndRevoke(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	alice := seedUser(t, st, "alice")

	_, digest, err := models.NewTokenSecret()
	if err != nil {
		t.Fatalf("failed to mint token: %v", err)
	}
	id, err := st.CreateToken(ctx, &models.Token{
		ID:           uuid.NewString(),
		UserID:       alice.ID,
		Label:        "ci",
		SecretDigest: digest,
	})
	if err != nil {
		t.Fatalf("failed to create token: %v", err)
	}

	token, err := st.GetTokenByDigest(ctx, digest)
	if err != nil {
		t.Fatalf("failed to look up token: %v", err)
	}
	if token.ID != id || token.Revoked {
		t.Errorf("unexpected token row: %+v", token)
	}

	if _, err := st.GetTokenByDigest(ctx, "0000"); !errors.Is(err, models.ErrTokenNotFound) {
		t.Errorf("expected ErrTokenNotFound, got %v", err)
	}

	if err := st.RevokeToken(ctx, id); err != nil {
		t.Fatalf("failed to revoke token: %v", err)
	}
	// Revoked tokens still resolve; the auth layer rejects them.
	token, err = st.GetTokenByDigest(ctx, digest)
	if err != nil {
		t.Fatalf("failed to look up revoked token: %v", err)
	}
	if !token.Revoked {
		t.Error("expected token marked revoked")
	}

	if err := st.RevokeToken(ctx, "missing"); !errors.Is(err, models.ErrTokenNotFound) {
		t.Errorf("expected ErrTokenNotFound for unknown id, got %v", err)
	}
}

func TestQuotaPolicyUpsert(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	alice := seedUser(t, st, "alice")

	// No policy attached: callers fall back to the server default.
	p, err := st.GetNamespaceQuota(ctx, alice.NamespaceID)
	if err != nil {
		t.Fatalf("failed to query quota: %v", err)
	}
	if p != nil {
		t.Fatalf("expected nil policy for fresh namespace, got %+v", p)
	}

	nsID := alice.NamespaceID
	if err := st.PutQuotaPolicy(ctx, &models.QuotaPolicy{
		NamespaceID:  &nsID,
		Mode:         models.QuotaCustom,
		PublicBytes:  1 << 30,
		PrivateBytes: 1 << 20,
	}); err != nil {
		t.Fatalf("failed to put quota policy: %v", err)
	}

	p, err = st.GetNamespaceQuota(ctx, nsID)
	if err != nil {
		t.Fatalf("failed to query quota: %v", err)
	}
	if p == nil || p.PublicBytes != 1<<30 {
		t.Fatalf("unexpected policy: %+v", p)
	}

	// Replacing keeps a single row per namespace.
	if err := st.PutQuotaPolicy(ctx, &models.QuotaPolicy{
		NamespaceID: &nsID,
		Mode:        models.QuotaInherit,
		PublicBytes: 2 << 30,
	}); err != nil {
		t.Fatalf("failed to replace quota policy: %v", err)
	}
	p, err = st.GetNamespaceQuota(ctx, nsID)
	if err != nil {
		t.Fatalf("failed to query quota: %v", err)
	}
	if p.PublicBytes != 2<<30 || p.Mode != models.QuotaInherit {
		t.Errorf("expected replaced policy, got %+v", p)
	}

	if err := st.PutQuotaPolicy(ctx, &models.QuotaPolicy{}); !errors.Is(err, models.ErrMalformedPayload) {
		t.Errorf("expected ErrMalformedPayload for unattached policy, got %v", err)
	}
}
