package store

import (
	"context"
	"time"

	"github.com/modelsilo/silo/pkg/models"
)

// CreateStaging records an in-flight large-file upload.
func (s *Store) CreateStaging(ctx context.Context, rec *models.StagingUpload) (string, error) {
	return createWithID(s.db, ctx, rec, func(r *models.StagingUpload, id string) { r.ID = id }, rec.ID, models.ErrNameTaken)
}

// PendingStaging returns the pending staging records for an oid, oldest
// first. An oid is "not ready" for commit while any pending record
// exists.
func (s *Store) PendingStaging(ctx context.Context, oid string) ([]*models.StagingUpload, error) {
	var recs []*models.StagingUpload
	err := s.db.WithContext(ctx).
		Where("oid = ? AND state = ?", oid, models.StagingPending).
		Order("created_at asc").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return recs, nil
}

// CompleteStaging marks every pending record for an oid as complete.
// Verification is idempotent: whichever client completes first wins and
// later verifications find nothing left to close.
func (s *Store) CompleteStaging(ctx context.Context, oid string) error {
	now := time.Now()
	return s.db.WithContext(ctx).
		Model(&models.StagingUpload{}).
		Where("oid = ? AND state = ?", oid, models.StagingPending).
		Updates(map[string]any{
			"state":        models.StagingComplete,
			"completed_at": &now,
		}).Error
}

// StaleStaging returns pending records created before the cutoff, for
// the janitor to abort and reap.
func (s *Store) StaleStaging(ctx context.Context, cutoff time.Time) ([]*models.StagingUpload, error) {
	var recs []*models.StagingUpload
	err := s.db.WithContext(ctx).
		Where("state = ? AND created_at < ?", models.StagingPending, cutoff).
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return recs, nil
}

// DeleteStaging removes a staging record by ID.
func (s *Store) DeleteStaging(ctx context.Context, id string) error {
	return deleteByField[models.StagingUpload](s.db, ctx, "id", id, models.ErrStagingNotFound)
}

// RecentStagingOIDs returns the oids of staging records newer than the
// cutoff, regardless of state. GC must not delete blobs whose upload
// may still be in progress.
func (s *Store) RecentStagingOIDs(ctx context.Context, cutoff time.Time) (map[string]struct{}, error) {
	var oids []string
	err := s.db.WithContext(ctx).
		Model(&models.StagingUpload{}).
		Where("created_at >= ?", cutoff).
		Distinct().
		Pluck("oid", &oids).Error
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(oids))
	for _, oid := range oids {
		set[oid] = struct{}{}
	}
	return set, nil
}
