package store

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/modelsilo/silo/pkg/models"
)

// GetRepo retrieves a repository by its (kind, namespace, name) identity.
func (s *Store) GetRepo(ctx context.Context, kind models.RepoKind, namespace, name string) (*models.Repository, error) {
	var repo *models.Repository
	err := withRetry(ctx, func() error {
		var r models.Repository
		err := s.db.WithContext(ctx).
			Where("kind = ? AND namespace_name = ? AND name = ?", kind, namespace, name).
			First(&r).Error
		if err != nil {
			return convertNotFoundError(err, models.ErrRepoNotFound)
		}
		repo = &r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return repo, nil
}

// GetRepoByID retrieves a repository by ID.
func (s *Store) GetRepoByID(ctx context.Context, id string) (*models.Repository, error) {
	return getByField[models.Repository](s.db, ctx, "id", id, models.ErrRepoNotFound)
}

// ListRepos returns all repositories, optionally filtered by namespace.
func (s *Store) ListRepos(ctx context.Context, namespace string) ([]*models.Repository, error) {
	q := s.db.WithContext(ctx)
	if namespace != "" {
		q = q.Where("namespace_name = ?", namespace)
	}
	var repos []*models.Repository
	if err := q.Find(&repos).Error; err != nil {
		return nil, err
	}
	return repos, nil
}

// CreateRepo creates a repository row. The caller is responsible for
// creating the versioning root afterwards.
func (s *Store) CreateRepo(ctx context.Context, repo *models.Repository) error {
	if err := models.ValidateName(repo.Name); err != nil {
		return err
	}
	if repo.DefaultBranch == "" {
		repo.DefaultBranch = models.DefaultBranch
	}
	_, err := createWithID(s.db, ctx, repo, func(r *models.Repository, id string) { r.ID = id }, repo.ID, models.ErrNameTaken)
	return err
}

// DeleteRepo removes the repository and its dependent rows. Physical
// blobs are reclaimed later by GC; this only removes the logical view.
func (s *Store) DeleteRepo(ctx context.Context, repoID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var repo models.Repository
		if err := tx.Where("id = ?", repoID).First(&repo).Error; err != nil {
			return convertNotFoundError(err, models.ErrRepoNotFound)
		}

		// Release the repo's committed bytes from the namespace pool.
		column := "used_public_bytes"
		if repo.Private {
			column = "used_private_bytes"
		}
		if err := tx.Model(&models.Namespace{}).
			Where("id = ?", repo.NamespaceID).
			Update(column, gorm.Expr(column+" - ?", repo.UsedBytes)).Error; err != nil {
			return err
		}

		for _, m := range []any{
			&models.File{}, &models.Revision{}, &models.LFSConfig{}, &models.StagingUpload{},
		} {
			if err := tx.Where("repo_id = ?", repoID).Delete(m).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("repo_id = ?", repoID).Delete(&models.QuotaPolicy{}).Error; err != nil {
			return err
		}
		return tx.Delete(&repo).Error
	})
}

// UpdateRepoSettings updates visibility and default branch. Visibility
// changes move the repo's usage between the namespace's public and
// private pools.
func (s *Store) UpdateRepoSettings(ctx context.Context, repoID string, private *bool, defaultBranch string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var repo models.Repository
		if err := tx.Where("id = ?", repoID).First(&repo).Error; err != nil {
			return convertNotFoundError(err, models.ErrRepoNotFound)
		}

		if private != nil && *private != repo.Private {
			from, to := "used_public_bytes", "used_private_bytes"
			if repo.Private {
				from, to = to, from
			}
			if err := tx.Model(&models.Namespace{}).Where("id = ?", repo.NamespaceID).
				Update(from, gorm.Expr(from+" - ?", repo.UsedBytes)).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.Namespace{}).Where("id = ?", repo.NamespaceID).
				Update(to, gorm.Expr(to+" + ?", repo.UsedBytes)).Error; err != nil {
				return err
			}
			repo.Private = *private
		}
		if defaultBranch != "" {
			repo.DefaultBranch = defaultBranch
		}
		return tx.Save(&repo).Error
	})
}

// GetLFSConfig returns the per-repository LFS configuration, or nil if
// the repository inherits every server default.
func (s *Store) GetLFSConfig(ctx context.Context, repoID string) (*models.LFSConfig, error) {
	var cfg models.LFSConfig
	err := s.db.WithContext(ctx).Where("repo_id = ?", repoID).First(&cfg).Error
	if err != nil {
		if convertNotFoundError(err, nil) == nil {
			return nil, nil
		}
		return nil, err
	}
	return &cfg, nil
}

// PutLFSConfig creates or replaces the per-repository LFS configuration.
func (s *Store) PutLFSConfig(ctx context.Context, cfg *models.LFSConfig) error {
	var existing models.LFSConfig
	err := s.db.WithContext(ctx).Where("repo_id = ?", cfg.RepoID).First(&existing).Error
	if err == nil {
		cfg.ID = existing.ID
		return s.db.WithContext(ctx).Save(cfg).Error
	}
	if convertNotFoundError(err, nil) != nil {
		return err
	}
	cfg.ID = uuid.New().String()
	return s.db.WithContext(ctx).Create(cfg).Error
}

// UpsertRevision records a ref mirror outside the commit transaction
// (branch/tag management endpoints).
func (s *Store) UpsertRevision(ctx context.Context, repoID, name, kind, commitID string) error {
	var rev models.Revision
	err := s.db.WithContext(ctx).
		Where("repo_id = ? AND name = ?", repoID, name).
		First(&rev).Error
	if err == nil {
		rev.CommitID = commitID
		rev.Kind = kind
		return s.db.WithContext(ctx).Save(&rev).Error
	}
	if convertNotFoundError(err, nil) != nil {
		return err
	}
	rev = models.Revision{
		ID:       uuid.New().String(),
		RepoID:   repoID,
		Name:     name,
		Kind:     kind,
		CommitID: commitID,
	}
	return s.db.WithContext(ctx).Create(&rev).Error
}

// DeleteRevision removes a ref mirror.
func (s *Store) DeleteRevision(ctx context.Context, repoID, name string) error {
	return s.db.WithContext(ctx).
		Where("repo_id = ? AND name = ?", repoID, name).
		Delete(&models.Revision{}).Error
}

// ListRevisions returns the ref mirrors for a repository.
func (s *Store) ListRevisions(ctx context.Context, repoID string) ([]*models.Revision, error) {
	var revs []*models.Revision
	if err := s.db.WithContext(ctx).Where("repo_id = ?", repoID).Find(&revs).Error; err != nil {
		return nil, err
	}
	return revs, nil
}
