package store

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/modelsilo/silo/pkg/models"
)

// GetNamespaceQuota returns the quota policy attached to a namespace,
// or nil when the namespace inherits the server default.
func (s *Store) GetNamespaceQuota(ctx context.Context, namespaceID string) (*models.QuotaPolicy, error) {
	var p models.QuotaPolicy
	err := s.db.WithContext(ctx).Where("namespace_id = ?", namespaceID).First(&p).Error
	if err != nil {
		if convertNotFoundError(err, nil) == nil {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// GetRepoQuota returns the quota policy attached to a repository, or
// nil when the repository has no policy of its own.
func (s *Store) GetRepoQuota(ctx context.Context, repoID string) (*models.QuotaPolicy, error) {
	var p models.QuotaPolicy
	err := s.db.WithContext(ctx).Where("repo_id = ?", repoID).First(&p).Error
	if err != nil {
		if convertNotFoundError(err, nil) == nil {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// AdjustNamespaceUsage moves a namespace's per-pool usage counters by
// the given deltas. Normal commits adjust usage inside ApplyCommit;
// this entry point exists for administrative reconciliation.
func (s *Store) AdjustNamespaceUsage(ctx context.Context, namespaceID string, publicDelta, privateDelta int64) error {
	return s.db.WithContext(ctx).
		Model(&models.Namespace{}).
		Where("id = ?", namespaceID).
		Updates(map[string]interface{}{
			"used_public_bytes":  gorm.Expr("used_public_bytes + ?", publicDelta),
			"used_private_bytes": gorm.Expr("used_private_bytes + ?", privateDelta),
		}).Error
}

// PutQuotaPolicy creates or replaces a quota policy. Exactly one of
// NamespaceID and RepoID must be set.
func (s *Store) PutQuotaPolicy(ctx context.Context, policy *models.QuotaPolicy) error {
	var existing models.QuotaPolicy
	q := s.db.WithContext(ctx)
	switch {
	case policy.NamespaceID != nil:
		q = q.Where("namespace_id = ?", *policy.NamespaceID)
	case policy.RepoID != nil:
		q = q.Where("repo_id = ?", *policy.RepoID)
	default:
		return models.ErrMalformedPayload
	}

	err := q.First(&existing).Error
	if err == nil {
		policy.ID = existing.ID
		return s.db.WithContext(ctx).Save(policy).Error
	}
	if convertNotFoundError(err, nil) != nil {
		return err
	}
	policy.ID = uuid.New().String()
	return s.db.WithContext(ctx).Create(policy).Error
}
