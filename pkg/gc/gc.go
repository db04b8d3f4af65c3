// Package gc implements the background janitors: the staging sweeper,
// which aborts and removes expired upload reservations, and the blob
// sweeper, which reclaims external objects no reserved ref can reach.
package gc

import (
	"context"
	"strings"
	"time"

	"github.com/modelsilo/silo/internal/logger"
	"github.com/modelsilo/silo/pkg/models"
	"github.com/modelsilo/silo/pkg/objectstore"
	"github.com/modelsilo/silo/pkg/transfer"
	"github.com/modelsilo/silo/pkg/versioning"
)

// Defaults for the janitor schedule.
const (
	DefaultStagingTTL = 24 * time.Hour
	DefaultInterval   = time.Hour
	DefaultBatchSize  = 100
)

// Config holds the janitor settings.
type Config struct {
	// StagingTTL is how long an unverified upload reservation lives
	// before it is aborted and removed.
	StagingTTL time.Duration `mapstructure:"staging_ttl" yaml:"staging_ttl"`

	// Interval is the pause between background sweep rounds.
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`

	// BatchSize caps how many blobs one sweep round deletes.
	BatchSize int `mapstructure:"batch_size" yaml:"batch_size"`
}

// ApplyDefaults fills in missing configuration with default values.
func (c *Config) ApplyDefaults() {
	if c.StagingTTL == 0 {
		c.StagingTTL = DefaultStagingTTL
	}
	if c.Interval == 0 {
		c.Interval = DefaultInterval
	}
	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}
}

// MetadataStore is the persistence the janitors need.
type MetadataStore interface {
	ListRepos(ctx context.Context, namespace string) ([]*models.Repository, error)
	GetLFSConfig(ctx context.Context, repoID string) (*models.LFSConfig, error)
	StaleStaging(ctx context.Context, cutoff time.Time) ([]*models.StagingUpload, error)
	DeleteStaging(ctx context.Context, id string) error
	RecentStagingOIDs(ctx context.Context, cutoff time.Time) (map[string]struct{}, error)
	HasExternalReference(ctx context.Context, sha256 string) (bool, error)
}

// Metrics receives sweep counters. A nil Metrics disables reporting.
type Metrics interface {
	AddBlobsSwept(n int)
}

// Sweeper runs the staging and blob janitors.
type Sweeper struct {
	cfg      Config
	transfer *transfer.Config
	meta     MetadataStore
	engine   versioning.Engine
	objects  objectstore.Store
	metrics  Metrics
}

// New creates a sweeper.
func New(cfg Config, transferCfg *transfer.Config, meta MetadataStore, engine versioning.Engine, objects objectstore.Store, m Metrics) *Sweeper {
	cfg.ApplyDefaults()
	return &Sweeper{cfg: cfg, transfer: transferCfg, meta: meta, engine: engine, objects: objects, metrics: m}
}

// Run executes sweep rounds until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.SweepStaging(ctx); err != nil {
				logger.Error("staging sweep failed", "error", err)
			} else if n > 0 {
				logger.Info("staging sweep finished", "expired", n)
			}
			if n, err := s.SweepBlobs(ctx); err != nil {
				logger.Error("blob sweep failed", "error", err)
			} else if n > 0 {
				logger.Info("blob sweep finished", "deleted", n)
			}
		}
	}
}

// SweepStaging aborts and removes upload reservations older than the
// staging TTL. In-flight multipart uploads are aborted at the backend
// so their parts stop accruing storage.
func (s *Sweeper) SweepStaging(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.cfg.StagingTTL)
	stale, err := s.meta.StaleStaging(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, rec := range stale {
		if rec.MultipartID != "" {
			key := objectstore.ObjectKey(rec.OID)
			if err := s.objects.AbortMultipart(ctx, key, rec.MultipartID); err != nil {
				logger.Warn("failed to abort stale multipart upload",
					"oid", rec.OID, "upload_id", rec.MultipartID, "error", err)
				continue
			}
		}
		if err := s.meta.DeleteStaging(ctx, rec.ID); err != nil {
			return swept, err
		}
		swept++
	}
	return swept, nil
}

// SweepBlobs deletes external objects that no reserved ref can reach.
//
// Reserved means: the tree of every branch and tag tip of every
// repository, plus the trees of the last keep_versions commits of each
// repository's default branch. Objects with an open or recent staging
// reservation are skipped, as is anything the file mirror still
// references. Deletes are capped per round by BatchSize.
func (s *Sweeper) SweepBlobs(ctx context.Context) (int, error) {
	reachable, err := s.reachableKeys(ctx)
	if err != nil {
		return 0, err
	}
	recent, err := s.meta.RecentStagingOIDs(ctx, time.Now().Add(-s.cfg.StagingTTL))
	if err != nil {
		return 0, err
	}

	deleted := 0
	err = s.objects.List(ctx, "sha256/", func(info objectstore.ObjectInfo) error {
		if deleted >= s.cfg.BatchSize {
			return nil
		}
		if _, ok := reachable[info.Key]; ok {
			return nil
		}
		oid := oidFromKey(info.Key)
		if _, ok := recent[oid]; ok {
			return nil
		}

		// Cross-check against the metadata mirror before destroying
		// anything.
		referenced, err := s.meta.HasExternalReference(ctx, oid)
		if err != nil {
			return err
		}
		if referenced {
			return nil
		}

		if err := s.objects.Delete(ctx, info.Key); err != nil {
			return err
		}
		deleted++
		return nil
	})
	if s.metrics != nil {
		s.metrics.AddBlobsSwept(deleted)
	}
	return deleted, err
}

// reachableKeys collects the storage keys of every external entry any
// reserved ref can reach.
func (s *Sweeper) reachableKeys(ctx context.Context) (map[string]struct{}, error) {
	reachable := make(map[string]struct{})

	repos, err := s.meta.ListRepos(ctx, "")
	if err != nil {
		return nil, err
	}

	for _, repo := range repos {
		refs, err := s.engine.ListRefs(ctx, repo.ID)
		if err != nil {
			return nil, err
		}
		for _, ref := range refs {
			if err := s.collectTree(ctx, repo.ID, ref.CommitID, reachable); err != nil {
				return nil, err
			}
		}

		keep := s.keepVersions(ctx, repo.ID)
		tip, err := s.engine.ResolveBranch(ctx, repo.ID, repo.DefaultBranch)
		if err != nil {
			continue
		}
		commits, _, err := s.engine.Log(ctx, repo.ID, tip, keep, "")
		if err != nil {
			return nil, err
		}
		for _, commit := range commits {
			if err := s.collectTree(ctx, repo.ID, commit.ID, reachable); err != nil {
				return nil, err
			}
		}
	}
	return reachable, nil
}

// keepVersions resolves the per-repo retention depth.
func (s *Sweeper) keepVersions(ctx context.Context, repoID string) int {
	lfs, err := s.meta.GetLFSConfig(ctx, repoID)
	if err != nil {
		lfs = nil
	}
	return transfer.EffectiveSettings(s.transfer, lfs).KeepVersions
}

func (s *Sweeper) collectTree(ctx context.Context, repoID, commitID string, into map[string]struct{}) error {
	tree, err := s.engine.Tree(ctx, repoID, commitID)
	if err != nil {
		return err
	}
	for _, entry := range tree {
		if entry.External {
			into[entry.StorageKey] = struct{}{}
		}
	}
	return nil
}

// oidFromKey recovers the object id from a content-addressed key.
func oidFromKey(key string) string {
	if i := strings.LastIndexByte(key, '/'); i >= 0 {
		return key[i+1:]
	}
	return key
}
