package transfer

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelsilo/silo/pkg/models"
	"github.com/modelsilo/silo/pkg/versioning"
)

// PreuploadFile is one entry of a preupload request.
type PreuploadFile struct {
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256,omitempty"`
}

// PreuploadResult is the classification for one file.
//
// UploadMode uses the wire vocabulary "regular"/"lfs"; internally the
// same split is called inline/external.
type PreuploadResult struct {
	Path         string `json:"path"`
	UploadMode   string `json:"uploadMode"`
	ShouldIgnore bool   `json:"shouldIgnore"`
}

// UploadMode wire values.
const (
	UploadModeRegular = "regular"
	UploadModeLFS     = "lfs"
)

// Classifier implements the preupload decision: which path each file
// takes, and whether the blob can be skipped entirely.
type Classifier struct {
	cfg    *Config
	store  StagingStore
	engine versioning.Engine
}

// NewClassifier creates a preupload classifier.
func NewClassifier(cfg *Config, store StagingStore, engine versioning.Engine) *Classifier {
	return &Classifier{cfg: cfg, store: store, engine: engine}
}

// Classify resolves the target branch tip and classifies each file.
//
// should_ignore is true only when the tip already holds an entry with
// the same path, sha256 and size; a request that omits the sha256 is
// never ignorable.
func (c *Classifier) Classify(ctx context.Context, repo *models.Repository, branch string, files []PreuploadFile) ([]PreuploadResult, error) {
	lfs, err := c.store.GetLFSConfig(ctx, repo.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load lfs config: %w", err)
	}
	settings := EffectiveSettings(c.cfg, lfs)

	tip, err := c.engine.ResolveBranch(ctx, repo.ID, branch)
	if err != nil {
		return nil, err
	}
	tree, err := c.engine.Tree(ctx, repo.ID, tip)
	if err != nil {
		return nil, err
	}

	results := make([]PreuploadResult, len(files))
	for i, f := range files {
		mode := UploadModeRegular
		if settings.External(f.Path, f.Size) {
			mode = UploadModeLFS
		}

		ignore := false
		if f.SHA256 != "" {
			if entry, ok := tree[f.Path]; ok {
				ignore = entry.SHA256 == f.SHA256 && entry.Size == f.Size
			}
		}

		results[i] = PreuploadResult{
			Path:         f.Path,
			UploadMode:   mode,
			ShouldIgnore: ignore,
		}
	}
	return results, nil
}

// QuotaGate is the advisory quota check the preupload handler runs.
type QuotaGate interface {
	CheckQuota(ctx context.Context, repo *models.Repository, delta int64) error
}

// AdvisoryQuota sums the claimed sizes of files that are not ignorable
// and runs them through the gate. The result is advisory: a true
// return means the handler should attach a quota warning, not fail.
func AdvisoryQuota(ctx context.Context, gate QuotaGate, repo *models.Repository, files []PreuploadFile, results []PreuploadResult) (bool, error) {
	var claimed int64
	for i, f := range files {
		if i < len(results) && results[i].ShouldIgnore {
			continue
		}
		claimed += f.Size
	}

	err := gate.CheckQuota(ctx, repo, claimed)
	if err == nil {
		return false, nil
	}
	if errors.Is(err, models.ErrQuotaExceeded) {
		return true, nil
	}
	return false, err
}
