package store

import (
	"context"

	"github.com/modelsilo/silo/pkg/models"
)

// GetFile returns the branch-tip mirror row for a path, or
// models.ErrPathNotFound.
func (s *Store) GetFile(ctx context.Context, repoID, path string) (*models.File, error) {
	var f models.File
	err := s.db.WithContext(ctx).
		Where("repo_id = ? AND path = ?", repoID, path).
		First(&f).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrPathNotFound)
	}
	return &f, nil
}

// ListFiles returns all tip mirror rows for a repository.
func (s *Store) ListFiles(ctx context.Context, repoID string) ([]*models.File, error) {
	var files []*models.File
	if err := s.db.WithContext(ctx).Where("repo_id = ?", repoID).Find(&files).Error; err != nil {
		return nil, err
	}
	return files, nil
}

// HasExternalReference reports whether any tip mirror row still
// references the given content hash. Used by GC reachability checks.
func (s *Store) HasExternalReference(ctx context.Context, sha256 string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.File{}).
		Where("sha256 = ? AND storage_kind = ?", sha256, models.StorageExternal).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
