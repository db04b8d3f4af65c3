// Package commitengine turns a streaming NDJSON payload of file
// operations into exactly one new commit.
//
// The payload is applied in a single pass into a private versioning
// workspace; nothing is visible until the compare-and-set commit
// succeeds, and the metadata transaction afterwards either lands in
// full or the branch ref is rolled back to the parent. A client
// reading the branch therefore sees the fully-applied commit or the
// unchanged parent, never anything in between.
package commitengine

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/modelsilo/silo/internal/logger"
	"github.com/modelsilo/silo/pkg/models"
	"github.com/modelsilo/silo/pkg/objectstore"
	"github.com/modelsilo/silo/pkg/store"
	"github.com/modelsilo/silo/pkg/transfer"
	"github.com/modelsilo/silo/pkg/versioning"
)

// QuotaGate is the authoritative quota check run before the commit.
type QuotaGate interface {
	CheckQuota(ctx context.Context, repo *models.Repository, delta int64) error
}

// MetadataStore is the persistence the engine needs around a commit.
type MetadataStore interface {
	GetLFSConfig(ctx context.Context, repoID string) (*models.LFSConfig, error)
	PendingStaging(ctx context.Context, oid string) ([]*models.StagingUpload, error)
	ApplyCommit(ctx context.Context, apply *store.CommitApply) error
}

// Engine applies commit payloads.
type Engine struct {
	cfg     *transfer.Config
	meta    MetadataStore
	engine  versioning.Engine
	objects objectstore.Store
	quota   QuotaGate
}

// New creates a commit engine.
func New(cfg *transfer.Config, meta MetadataStore, engine versioning.Engine, objects objectstore.Store, quota QuotaGate) *Engine {
	return &Engine{cfg: cfg, meta: meta, engine: engine, objects: objects, quota: quota}
}

// Result describes the accepted commit.
type Result struct {
	CommitID string
	Parent   string
	Summary  string
}

// Commit reads the NDJSON payload and produces one new commit on the
// branch. Author is the committing principal's username.
func (e *Engine) Commit(ctx context.Context, repo *models.Repository, branch, author string, body io.Reader) (*Result, error) {
	lfs, err := e.meta.GetLFSConfig(ctx, repo.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load lfs config: %w", err)
	}
	settings := transfer.EffectiveSettings(e.cfg, lfs)

	ws, err := e.engine.Begin(ctx, repo.ID, branch)
	if err != nil {
		return nil, err
	}
	base := ws.Base()

	state := &applyState{
		upserts: make(map[string]versioning.FileEntry),
		deletes: make(map[string]struct{}),
	}

	header, err := e.applyStream(ctx, repo, ws, base, settings, body, state)
	if err != nil {
		return nil, err
	}

	// Authoritative quota admission; nothing has been committed yet.
	if err := e.quota.CheckQuota(ctx, repo, state.delta); err != nil {
		return nil, err
	}

	commit, err := ws.Commit(ctx, versioning.CommitOpts{
		Message:        header.Summary,
		Description:    header.Description,
		Author:         author,
		ExpectedParent: base,
	})
	if err != nil {
		if errors.Is(err, models.ErrConcurrentUpdate) {
			return nil, models.ErrStaleRevision
		}
		return nil, err
	}

	apply := &store.CommitApply{
		RepoID:       repo.ID,
		NamespaceID:  repo.NamespaceID,
		Private:      repo.Private,
		Branch:       branch,
		CommitID:     commit.ID,
		BytesDelta:   state.delta,
		VerifiedOIDs: state.oids,
	}
	for path, entry := range state.upserts {
		kind := models.StorageInline
		if entry.External {
			kind = models.StorageExternal
		}
		apply.Upserts = append(apply.Upserts, models.File{
			Path:        path,
			Size:        entry.Size,
			SHA256:      entry.SHA256,
			StorageKind: kind,
		})
	}
	for path := range state.deletes {
		apply.Deletes = append(apply.Deletes, path)
	}

	if err := e.meta.ApplyCommit(ctx, apply); err != nil {
		// Compensation: move the branch back to the parent so the new
		// commit is never observable. The orphaned commit is left for GC.
		if rbErr := e.engine.RollbackBranch(ctx, repo.ID, branch, commit.ID, base); rbErr != nil {
			logger.Error("failed to roll back branch after metadata failure",
				"repo", repo.FullName(), "branch", branch,
				"commit", commit.ID, "error", rbErr)
		}
		return nil, err
	}

	return &Result{
		CommitID: commit.ID,
		Parent:   base,
		Summary:  header.Summary,
	}, nil
}

// applyState accumulates the metadata side effects of the stream.
type applyState struct {
	upserts map[string]versioning.FileEntry
	deletes map[string]struct{}
	oids    []string
	delta   int64
}

// stage records a path's new entry and adjusts the byte delta against
// whatever the path held before.
func (s *applyState) stage(prev *versioning.FileEntry, entry versioning.FileEntry) {
	if prev != nil {
		s.delta -= prev.Size
	}
	s.delta += entry.Size
	s.upserts[entry.Path] = entry
	delete(s.deletes, entry.Path)
}

// drop records a path removal.
func (s *applyState) drop(path string, prev *versioning.FileEntry) {
	if prev != nil {
		s.delta -= prev.Size
	}
	delete(s.upserts, path)
	s.deletes[path] = struct{}{}
}

// applyStream parses and applies records in stream order. The first
// record must be the header; a payload with no records at all is
// malformed.
func (e *Engine) applyStream(ctx context.Context, repo *models.Repository, ws versioning.Workspace, base string, settings transfer.Settings, body io.Reader, state *applyState) (*headerRecord, error) {
	reader := newRecordReader(body)

	first, err := reader.next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty commit payload", models.ErrMalformedPayload)
		}
		return nil, err
	}
	if first.Key != recordHeader {
		return nil, fmt.Errorf("%w: first record must be the header", models.ErrMalformedPayload)
	}
	var header headerRecord
	if err := decodeValue(first, &header); err != nil {
		return nil, err
	}

	for {
		rec, err := reader.next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return &header, nil
			}
			return nil, err
		}

		switch rec.Key {
		case recordHeader:
			return nil, fmt.Errorf("%w: duplicate header record", models.ErrMalformedPayload)
		case recordFile:
			err = e.applyFile(ctx, ws, settings, rec, state)
		case recordLFSFile:
			err = e.applyLFSFile(ctx, ws, rec, state)
		case recordDeleted:
			err = e.applyDeleted(ctx, ws, rec, state)
		case recordCopy:
			err = e.applyCopy(ctx, repo, ws, base, rec, state)
		default:
			err = fmt.Errorf("%w: unknown record key %q", models.ErrMalformedPayload, rec.Key)
		}
		if err != nil {
			return nil, err
		}
	}
}

// applyFile flushes an inline file into the workspace.
func (e *Engine) applyFile(ctx context.Context, ws versioning.Workspace, settings transfer.Settings, rec *record, state *applyState) error {
	var f fileRecord
	if err := decodeValue(rec, &f); err != nil {
		return err
	}
	data, err := base64.StdEncoding.DecodeString(f.Content)
	if err != nil {
		return fmt.Errorf("%w: bad base64 in file record for %q", models.ErrMalformedPayload, f.Path)
	}
	if settings.External(f.Path, int64(len(data))) {
		return fmt.Errorf("%w: %s", models.ErrInlineTooLarge, f.Path)
	}

	prev := prevEntry(ctx, ws, f.Path)
	entry, err := ws.UploadInline(ctx, f.Path, data)
	if err != nil {
		return err
	}
	state.stage(prev, entry)
	return nil
}

// applyLFSFile links an externally uploaded blob. The blob must exist
// at its content-addressed key with the declared size, and every
// staging record for the oid must have passed verification.
func (e *Engine) applyLFSFile(ctx context.Context, ws versioning.Workspace, rec *record, state *applyState) error {
	var f lfsFileRecord
	if err := decodeValue(rec, &f); err != nil {
		return err
	}
	if f.Algo != "" && f.Algo != "sha256" {
		return fmt.Errorf("%w: %s", models.ErrUnsupportedHash, f.Algo)
	}
	if !transfer.ValidOID(f.OID) {
		return fmt.Errorf("%w: %s", models.ErrUnsupportedHash, f.OID)
	}

	key := objectstore.ObjectKey(f.OID)
	info, err := e.objects.Stat(ctx, key)
	if err != nil {
		if errors.Is(err, objectstore.ErrObjectMissing) {
			return fmt.Errorf("%w: %s", models.ErrObjectNotReady, f.OID)
		}
		return err
	}
	if info.Size != f.Size {
		return fmt.Errorf("%w: %s", models.ErrSizeMismatch, f.OID)
	}

	pending, err := e.meta.PendingStaging(ctx, f.OID)
	if err != nil {
		return err
	}
	if len(pending) > 0 {
		return fmt.Errorf("%w: %s awaits verification", models.ErrObjectNotReady, f.OID)
	}

	prev := prevEntry(ctx, ws, f.Path)
	entry, err := ws.LinkExternal(ctx, f.Path, key, f.OID, f.Size)
	if err != nil {
		return err
	}
	state.stage(prev, entry)
	state.oids = append(state.oids, f.OID)
	return nil
}

// applyDeleted removes a path. Missing paths are not an error.
func (e *Engine) applyDeleted(ctx context.Context, ws versioning.Workspace, rec *record, state *applyState) error {
	var d deletedRecord
	if err := decodeValue(rec, &d); err != nil {
		return err
	}
	prev := prevEntry(ctx, ws, d.Path)
	if err := ws.Delete(ctx, d.Path); err != nil {
		return err
	}
	if prev != nil {
		state.drop(d.Path, prev)
	}
	return nil
}

// applyCopy re-links existing content at a new path. from_revision
// defaults to the branch tip the workspace started from.
func (e *Engine) applyCopy(ctx context.Context, repo *models.Repository, ws versioning.Workspace, base string, rec *record, state *applyState) error {
	var c copyRecord
	if err := decodeValue(rec, &c); err != nil {
		return err
	}

	fromCommit := ""
	if c.FromRevision != "" && c.FromRevision != base {
		id, _, err := versioning.ResolveRevision(ctx, e.engine, repo.ID, c.FromRevision)
		if err != nil {
			return err
		}
		fromCommit = id
	}

	prev := prevEntry(ctx, ws, c.ToPath)
	entry, err := ws.Copy(ctx, c.FromPath, fromCommit, c.ToPath)
	if err != nil {
		return err
	}
	state.stage(prev, entry)
	return nil
}

// prevEntry returns the staged entry currently at a path, or nil.
func prevEntry(ctx context.Context, ws versioning.Workspace, path string) *versioning.FileEntry {
	if entry, ok := ws.Stat(ctx, path); ok {
		return &entry
	}
	return nil
}
