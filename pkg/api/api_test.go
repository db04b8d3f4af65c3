package api

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/modelsilo/silo/pkg/access"
	"github.com/modelsilo/silo/pkg/api/handlers"
	"github.com/modelsilo/silo/pkg/auth"
	"github.com/modelsilo/silo/pkg/commitengine"
	"github.com/modelsilo/silo/pkg/models"
	"github.com/modelsilo/silo/pkg/objectstore"
	"github.com/modelsilo/silo/pkg/objectstore/memory"
	"github.com/modelsilo/silo/pkg/resolver"
	"github.com/modelsilo/silo/pkg/store"
	"github.com/modelsilo/silo/pkg/transfer"
	badgerstore "github.com/modelsilo/silo/pkg/versioning/badger"
)

const testBaseURL = "http://hub.test"

type testHub struct {
	handler http.Handler
	store   *store.Store
	vcs     *badgerstore.Store
	objects *memory.Store
	user    *models.User
	token   string
}

func newTestHub(t *testing.T) *testHub {
	t.Helper()
	ctx := context.Background()

	st, err := store.New(&store.Config{
		Type:   store.DatabaseTypeSQLite,
		SQLite: store.SQLiteConfig{Path: ":memory:"},
	})
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	vcs, err := badgerstore.New(badgerstore.Config{InMemory: true})
	if err != nil {
		t.Fatalf("failed to open engine: %v", err)
	}
	t.Cleanup(func() { _ = vcs.Close() })

	hash, err := models.HashPassword("correct-horse")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	user := &models.User{Username: "alice", PasswordHash: hash, Enabled: true}
	if err := st.CreateUser(ctx, user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	secret, digest, err := models.NewTokenSecret()
	if err != nil {
		t.Fatalf("failed to mint token: %v", err)
	}
	if _, err := st.CreateToken(ctx, &models.Token{
		ID: uuid.NewString(), UserID: user.ID, Label: "tests", SecretDigest: digest,
	}); err != nil {
		t.Fatalf("failed to store token: %v", err)
	}

	jwtService, err := auth.NewJWTService(auth.JWTConfig{Secret: "0123456789abcdef0123456789abcdef"})
	if err != nil {
		t.Fatalf("failed to build jwt service: %v", err)
	}

	cfg := &transfer.Config{ThresholdBytes: 10}
	cfg.ApplyDefaults()
	cfg.ThresholdBytes = 10

	objects := memory.New()
	authn := auth.NewAuthenticator(st, jwtService)
	authz := access.New(st, access.QuotaDefaults{})

	deps := handlers.Deps{
		Store:      st,
		Engine:     vcs,
		Objects:    objects,
		Authn:      authn,
		Authz:      authz,
		Classifier: transfer.NewClassifier(cfg, st, vcs),
		Broker:     transfer.NewBroker(cfg, objects, st, testBaseURL),
		Commits:    commitengine.New(cfg, st, vcs, objects, authz),
		Resolver:   resolver.New(cfg, vcs, objects),
		JWT:        jwtService,
		BaseURL:    testBaseURL,
	}
	router := NewRouter(handlers.New(deps), deps)

	return &testHub{
		handler: router,
		store:   st,
		vcs:     vcs,
		objects: objects,
		user:    user,
		token:   secret,
	}
}

func (hub *testHub) do(t *testing.T, method, path, token string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(method, path, body)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	hub.handler.ServeHTTP(w, r)
	return w
}

func (hub *testHub) doJSON(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	return hub.do(t, method, path, token, bytes.NewReader(data))
}

func (hub *testHub) createRepo(t *testing.T, name string, private bool) {
	t.Helper()
	rec := hub.doJSON(t, http.MethodPost, "/api/repos/create", hub.token, map[string]any{
		"type": "model", "name": name, "private": private,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("create repo: status %d, body %s", rec.Code, rec.Body.String())
	}
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func oidOf(data string) string {
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

func ndjsonBody(records ...map[string]any) io.Reader {
	var b bytes.Buffer
	for _, rec := range records {
		line, _ := json.Marshal(rec)
		b.Write(line)
		b.WriteByte('\n')
	}
	return &b
}

func TestSmallFileRoundTrip(t *testing.T) {
	hub := newTestHub(t)
	hub.createRepo(t, "m1", false)

	// Classification: below the threshold means the regular path.
	rec := hub.doJSON(t, http.MethodPost, "/api/models/alice/m1/preupload/main", hub.token, map[string]any{
		"files": []map[string]any{{"path": "a.json", "size": 2, "sha256": oidOf("hi")}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("preupload: status %d, body %s", rec.Code, rec.Body.String())
	}
	pre := decodeBody[struct {
		Files []transfer.PreuploadResult `json:"files"`
	}](t, rec)
	if len(pre.Files) != 1 || pre.Files[0].UploadMode != "regular" || pre.Files[0].ShouldIgnore {
		t.Fatalf("unexpected classification: %+v", pre.Files)
	}

	rec = hub.do(t, http.MethodPost, "/api/models/alice/m1/commit/main", hub.token, ndjsonBody(
		map[string]any{"key": "header", "value": map[string]any{"summary": "add a.json"}},
		map[string]any{"key": "file", "value": map[string]any{
			"path": "a.json", "content": base64.StdEncoding.EncodeToString([]byte("hi")),
		}},
	))
	if rec.Code != http.StatusOK {
		t.Fatalf("commit: status %d, body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"pullRequestUrl":null`) {
		t.Fatalf("missing null pullRequestUrl: %s", rec.Body.String())
	}
	commit := decodeBody[struct {
		CommitOID string `json:"commitOid"`
		CommitURL string `json:"commitUrl"`
	}](t, rec)
	if commit.CommitOID == "" || !strings.HasPrefix(commit.CommitURL, testBaseURL+"/alice/m1/commit/") {
		t.Fatalf("unexpected commit response: %+v", commit)
	}

	// Anonymous read of a public repo.
	rec = hub.do(t, http.MethodGet, "/alice/m1/resolve/main/a.json", "", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "hi" {
		t.Fatalf("resolve: status %d, body %q", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("X-Linked-Size"); got != "2" {
		t.Fatalf("x-linked-size = %q", got)
	}
	if got := rec.Header().Get("X-Repo-Commit"); got != commit.CommitOID {
		t.Fatalf("x-repo-commit = %q, want %s", got, commit.CommitOID)
	}
	if got := rec.Header().Get("X-Linked-Etag"); got != "sha256:"+oidOf("hi") {
		t.Fatalf("x-linked-etag = %q", got)
	}

	// A second preupload after the commit is ignorable.
	rec = hub.doJSON(t, http.MethodPost, "/api/models/alice/m1/preupload/main", hub.token, map[string]any{
		"files": []map[string]any{{"path": "a.json", "size": 2, "sha256": oidOf("hi")}},
	})
	pre = decodeBody[struct {
		Files []transfer.PreuploadResult `json:"files"`
	}](t, rec)
	if !pre.Files[0].ShouldIgnore {
		t.Fatalf("expected shouldIgnore after commit: %+v", pre.Files)
	}
}

func TestLargeFileLFSFlow(t *testing.T) {
	hub := newTestHub(t)
	hub.createRepo(t, "m1", false)

	data := strings.Repeat("w", 64)
	oid := oidOf(data)

	rec := hub.doJSON(t, http.MethodPost, "/api/models/alice/m1/preupload/main", hub.token, map[string]any{
		"files": []map[string]any{{"path": "w.bin", "size": len(data), "sha256": oid}},
	})
	pre := decodeBody[struct {
		Files []transfer.PreuploadResult `json:"files"`
	}](t, rec)
	if pre.Files[0].UploadMode != "lfs" {
		t.Fatalf("uploadMode = %q, want lfs", pre.Files[0].UploadMode)
	}

	rec = hub.doJSON(t, http.MethodPost, "/alice/m1.git/info/lfs/objects/batch", hub.token, map[string]any{
		"operation": "upload",
		"transfers": []string{"basic"},
		"objects":   []map[string]any{{"oid": oid, "size": len(data)}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("batch: status %d, body %s", rec.Code, rec.Body.String())
	}
	batch := decodeBody[transfer.BatchResponse](t, rec)
	if len(batch.Objects) != 1 || batch.Objects[0].Actions == nil || batch.Objects[0].Actions.Upload == nil {
		t.Fatalf("no upload action: %s", rec.Body.String())
	}
	if verify := batch.Objects[0].Actions.Verify; verify == nil || !strings.Contains(verify.Href, "/alice/m1.git/info/lfs/objects/verify") {
		t.Fatalf("bad verify action: %+v", batch.Objects[0].Actions)
	}

	// The client streams bytes straight to the bucket.
	hub.objects.Put(objectstore.ObjectKey(oid), []byte(data))

	rec = hub.doJSON(t, http.MethodPost, "/alice/m1.git/info/lfs/objects/verify", hub.token, map[string]any{
		"oid": oid, "size": len(data),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("verify: status %d, body %s", rec.Code, rec.Body.String())
	}

	rec = hub.do(t, http.MethodPost, "/api/models/alice/m1/commit/main", hub.token, ndjsonBody(
		map[string]any{"key": "header", "value": map[string]any{"summary": "add weights"}},
		map[string]any{"key": "lfsFile", "value": map[string]any{
			"path": "w.bin", "algo": "sha256", "oid": oid, "size": len(data),
		}},
	))
	if rec.Code != http.StatusOK {
		t.Fatalf("commit: status %d, body %s", rec.Code, rec.Body.String())
	}

	// External entries resolve to a presigned redirect.
	rec = hub.do(t, http.MethodHead, "/alice/m1/resolve/main/w.bin", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("head: status %d", rec.Code)
	}
	if rec.Header().Get("Location") == "" {
		t.Fatal("head: missing presigned location")
	}
	if got := rec.Header().Get("X-Linked-Etag"); got != "sha256:"+oid {
		t.Fatalf("x-linked-etag = %q", got)
	}
	rec = hub.do(t, http.MethodGet, "/alice/m1/resolve/main/w.bin", "", nil)
	if rec.Code != http.StatusFound || rec.Header().Get("Location") == "" {
		t.Fatalf("get: status %d, location %q", rec.Code, rec.Header().Get("Location"))
	}

	// Dedup: a second repository referencing the same oid gets no
	// actions and can commit without uploading.
	hub.createRepo(t, "m2", false)
	rec = hub.doJSON(t, http.MethodPost, "/alice/m2.git/info/lfs/objects/batch", hub.token, map[string]any{
		"operation": "upload",
		"transfers": []string{"basic"},
		"objects":   []map[string]any{{"oid": oid, "size": len(data)}},
	})
	batch = decodeBody[transfer.BatchResponse](t, rec)
	if batch.Objects[0].Actions != nil {
		t.Fatalf("expected dedup with no actions: %s", rec.Body.String())
	}
	rec = hub.do(t, http.MethodPost, "/api/models/alice/m2/commit/main", hub.token, ndjsonBody(
		map[string]any{"key": "header", "value": map[string]any{"summary": "share weights"}},
		map[string]any{"key": "lfsFile", "value": map[string]any{
			"path": "w.bin", "algo": "sha256", "oid": oid, "size": len(data),
		}},
	))
	if rec.Code != http.StatusOK {
		t.Fatalf("dedup commit: status %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestRevisionResolution(t *testing.T) {
	hub := newTestHub(t)
	hub.createRepo(t, "m1", false)

	rec := hub.do(t, http.MethodPost, "/api/models/alice/m1/commit/main", hub.token, ndjsonBody(
		map[string]any{"key": "header", "value": map[string]any{"summary": "add"}},
		map[string]any{"key": "file", "value": map[string]any{
			"path": "a.json", "content": base64.StdEncoding.EncodeToString([]byte("hi")),
		}},
	))
	commit := decodeBody[struct {
		CommitOID string `json:"commitOid"`
	}](t, rec)

	rec = hub.do(t, http.MethodPost, "/api/models/alice/m1/tag/v1", hub.token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("create tag: status %d, body %s", rec.Code, rec.Body.String())
	}

	// Tag name.
	rec = hub.do(t, http.MethodHead, "/alice/m1/resolve/v1/a.json", "", nil)
	if rec.Code != http.StatusOK || rec.Header().Get("X-Repo-Commit") != commit.CommitOID {
		t.Fatalf("tag resolve: status %d, commit %q", rec.Code, rec.Header().Get("X-Repo-Commit"))
	}

	// Commit id prefix.
	rec = hub.do(t, http.MethodHead, "/alice/m1/resolve/"+commit.CommitOID[:7]+"/a.json", "", nil)
	if rec.Code != http.StatusOK || rec.Header().Get("X-Repo-Commit") != commit.CommitOID {
		t.Fatalf("prefix resolve: status %d", rec.Code)
	}

	// Unknown revision.
	rec = hub.do(t, http.MethodHead, "/alice/m1/resolve/nope/a.json", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown revision: status %d", rec.Code)
	}
	if got := rec.Header().Get("X-Error-Code"); got != "revision_not_found" {
		t.Fatalf("x-error-code = %q", got)
	}
}

func TestCommitErrorEnvelopes(t *testing.T) {
	hub := newTestHub(t)
	hub.createRepo(t, "m1", false)

	tests := []struct {
		name   string
		body   io.Reader
		status int
		kind   string
	}{
		{"empty payload", strings.NewReader(""), http.StatusBadRequest, "malformed_payload"},
		{"missing header", ndjsonBody(
			map[string]any{"key": "file", "value": map[string]any{"path": "a", "content": "aGk="}},
		), http.StatusBadRequest, "malformed_payload"},
		{"inline too large", ndjsonBody(
			map[string]any{"key": "header", "value": map[string]any{"summary": "big"}},
			map[string]any{"key": "file", "value": map[string]any{
				"path": "big.bin", "content": base64.StdEncoding.EncodeToString(bytes.Repeat([]byte("x"), 11)),
			}},
		), http.StatusRequestEntityTooLarge, "inline_too_large"},
		{"object not ready", ndjsonBody(
			map[string]any{"key": "header", "value": map[string]any{"summary": "lfs"}},
			map[string]any{"key": "lfsFile", "value": map[string]any{
				"path": "w.bin", "algo": "sha256", "oid": oidOf("never uploaded"), "size": 14,
			}},
		), http.StatusUnprocessableEntity, "object_not_ready"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := hub.do(t, http.MethodPost, "/api/models/alice/m1/commit/main", hub.token, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body.String())
			}
			if got := rec.Header().Get("X-Error-Code"); got != tt.kind {
				t.Fatalf("x-error-code = %q, want %q", got, tt.kind)
			}
			var envelope struct {
				Error string `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil || envelope.Error != tt.kind {
				t.Fatalf("body = %s, want error %q", rec.Body.String(), tt.kind)
			}
		})
	}
}

func TestPrivateRepoAccess(t *testing.T) {
	hub := newTestHub(t)
	hub.createRepo(t, "secret", true)

	rec := hub.do(t, http.MethodPost, "/api/models/alice/secret/commit/main", hub.token, ndjsonBody(
		map[string]any{"key": "header", "value": map[string]any{"summary": "add"}},
		map[string]any{"key": "file", "value": map[string]any{
			"path": "a.json", "content": base64.StdEncoding.EncodeToString([]byte("hi")),
		}},
	))
	if rec.Code != http.StatusOK {
		t.Fatalf("commit: status %d, body %s", rec.Code, rec.Body.String())
	}

	// Anonymous reads are rejected with the unauthenticated kind.
	rec = hub.do(t, http.MethodGet, "/alice/secret/resolve/main/a.json", "", nil)
	if rec.Code != http.StatusUnauthorized || rec.Header().Get("X-Error-Code") != "unauthenticated" {
		t.Fatalf("anonymous read: status %d, kind %q", rec.Code, rec.Header().Get("X-Error-Code"))
	}

	// The owner reads fine.
	rec = hub.do(t, http.MethodGet, "/alice/secret/resolve/main/a.json", hub.token, nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "hi" {
		t.Fatalf("owner read: status %d, body %q", rec.Code, rec.Body.String())
	}

	// A garbage credential is rejected outright, never downgraded to
	// anonymous.
	rec = hub.do(t, http.MethodGet, "/alice/secret/resolve/main/a.json", models.TokenPrefix+"bogus", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bogus token: status %d", rec.Code)
	}
}

func TestTreeAndRefsEndpoints(t *testing.T) {
	hub := newTestHub(t)
	hub.createRepo(t, "m1", false)

	rec := hub.do(t, http.MethodPost, "/api/models/alice/m1/commit/main", hub.token, ndjsonBody(
		map[string]any{"key": "header", "value": map[string]any{"summary": "seed"}},
		map[string]any{"key": "file", "value": map[string]any{
			"path": "README.md", "content": base64.StdEncoding.EncodeToString([]byte("hello")),
		}},
		map[string]any{"key": "file", "value": map[string]any{
			"path": "weights/a.bin", "content": base64.StdEncoding.EncodeToString([]byte("aaaa")),
		}},
	))
	if rec.Code != http.StatusOK {
		t.Fatalf("commit: status %d, body %s", rec.Code, rec.Body.String())
	}

	rec = hub.do(t, http.MethodGet, "/api/models/alice/m1/tree/main", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("tree: status %d, body %s", rec.Code, rec.Body.String())
	}
	items := decodeBody[[]resolver.TreeItem](t, rec)
	if len(items) != 2 || items[0].Path != "README.md" || items[1].Type != "directory" {
		t.Fatalf("unexpected tree: %+v", items)
	}

	rec = hub.doJSON(t, http.MethodPost, "/api/models/alice/m1/paths-info/main", "", map[string]any{
		"paths": []string{"README.md", "weights", "missing"},
	})
	infos := decodeBody[[]resolver.TreeItem](t, rec)
	if len(infos) != 2 {
		t.Fatalf("paths-info: %+v", infos)
	}

	rec = hub.do(t, http.MethodPost, "/api/models/alice/m1/branch/dev", hub.token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("create branch: status %d, body %s", rec.Code, rec.Body.String())
	}
	rec = hub.do(t, http.MethodGet, "/api/models/alice/m1/refs", "", nil)
	refs := decodeBody[struct {
		Branches []map[string]string `json:"branches"`
		Tags     []map[string]string `json:"tags"`
	}](t, rec)
	if len(refs.Branches) != 2 {
		t.Fatalf("refs: %+v", refs)
	}

	// The default branch cannot be deleted.
	rec = hub.do(t, http.MethodDelete, "/api/models/alice/m1/branch/main", hub.token, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("delete default branch: status %d", rec.Code)
	}
	rec = hub.do(t, http.MethodDelete, "/api/models/alice/m1/branch/dev", hub.token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete branch: status %d", rec.Code)
	}
}

func TestLoginAndWhoami(t *testing.T) {
	hub := newTestHub(t)

	rec := hub.doJSON(t, http.MethodPost, "/api/login", "", map[string]string{
		"username": "alice", "password": "correct-horse",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status %d, body %s", rec.Code, rec.Body.String())
	}
	session := decodeBody[struct {
		AccessToken string `json:"access_token"`
	}](t, rec)
	if session.AccessToken == "" {
		t.Fatal("login: empty access token")
	}

	rec = hub.do(t, http.MethodGet, "/api/whoami-v2", session.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("whoami: status %d, body %s", rec.Code, rec.Body.String())
	}
	who := decodeBody[struct {
		Name string `json:"name"`
		Type string `json:"type"`
	}](t, rec)
	if who.Name != "alice" || who.Type != "user" {
		t.Fatalf("whoami: %+v", who)
	}

	rec = hub.doJSON(t, http.MethodPost, "/api/login", "", map[string]string{
		"username": "alice", "password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized || rec.Header().Get("X-Error-Code") != "invalid_credentials" {
		t.Fatalf("bad login: status %d, kind %q", rec.Code, rec.Header().Get("X-Error-Code"))
	}

	rec = hub.do(t, http.MethodGet, "/api/whoami-v2", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous whoami: status %d", rec.Code)
	}
}

func TestRepoLifecycle(t *testing.T) {
	hub := newTestHub(t)
	hub.createRepo(t, "m1", false)

	// Duplicate names collide.
	rec := hub.doJSON(t, http.MethodPost, "/api/repos/create", hub.token, map[string]any{
		"type": "model", "name": "m1",
	})
	if rec.Code != http.StatusConflict || rec.Header().Get("X-Error-Code") != "name_taken" {
		t.Fatalf("duplicate create: status %d, kind %q", rec.Code, rec.Header().Get("X-Error-Code"))
	}

	// Flip visibility.
	rec = hub.doJSON(t, http.MethodPut, "/api/models/alice/m1/settings", hub.token, map[string]any{
		"private": true,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("settings: status %d, body %s", rec.Code, rec.Body.String())
	}
	repo, err := hub.store.GetRepo(context.Background(), models.RepoKindModel, "alice", "m1")
	if err != nil || !repo.Private {
		t.Fatalf("visibility not updated: %+v (%v)", repo, err)
	}

	rec = hub.doJSON(t, http.MethodDelete, "/api/repos/delete", hub.token, map[string]any{
		"type": "model", "name": "m1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: status %d, body %s", rec.Code, rec.Body.String())
	}
	if _, err := hub.store.GetRepo(context.Background(), models.RepoKindModel, "alice", "m1"); err == nil {
		t.Fatal("repo still present after delete")
	}
	rec = hub.do(t, http.MethodGet, "/alice/m1/resolve/main/a.json", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("resolve after delete: status %d", rec.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	hub := newTestHub(t)

	for _, path := range []string{"/health", "/health/ready"} {
		rec := hub.do(t, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status %d", path, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `"healthy"`) {
			t.Fatalf("%s: body %s", path, rec.Body.String())
		}
	}
}
