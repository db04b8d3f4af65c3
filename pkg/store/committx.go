package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/modelsilo/silo/pkg/models"
)

// CommitApply is the unit of work the commit engine hands to the store
// after the versioning engine has accepted a new commit. It is applied
// in a single transaction: file mirrors, usage counters, the revision
// pointer and staging closures move together or not at all.
type CommitApply struct {
	RepoID      string
	NamespaceID string
	Private     bool
	Branch      string
	CommitID    string

	// Upserts are the post-commit entries for every path the commit
	// touched (created, modified or copied).
	Upserts []models.File

	// Deletes are the paths the commit removed from the tip.
	Deletes []string

	// BytesDelta is the signed change in committed bytes.
	BytesDelta int64

	// VerifiedOIDs are the external content hashes the commit
	// referenced; their staging records are closed with the commit.
	VerifiedOIDs []string
}

// ApplyCommit applies a commit's metadata effects atomically.
//
// Transient failures are retried at most twice before surfacing
// storage_unavailable; the commit engine then compensates by rolling
// the branch ref back to the parent.
func (s *Store) ApplyCommit(ctx context.Context, apply *CommitApply) error {
	return withRetry(ctx, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			// File mirror upserts keyed on (repo_id, path).
			for i := range apply.Upserts {
				f := apply.Upserts[i]
				f.RepoID = apply.RepoID
				f.CommitID = apply.CommitID
				if f.ID == "" {
					f.ID = uuid.New().String()
				}
				err := tx.Clauses(clause.OnConflict{
					Columns: []clause.Column{{Name: "repo_id"}, {Name: "path"}},
					DoUpdates: clause.AssignmentColumns([]string{
						"size", "sha256", "storage_kind", "commit_id", "updated_at",
					}),
				}).Create(&f).Error
				if err != nil {
					return err
				}
			}

			if len(apply.Deletes) > 0 {
				if err := tx.Where("repo_id = ? AND path IN ?", apply.RepoID, apply.Deletes).
					Delete(&models.File{}).Error; err != nil {
					return err
				}
			}

			// Usage counters.
			if apply.BytesDelta != 0 {
				if err := tx.Model(&models.Repository{}).
					Where("id = ?", apply.RepoID).
					Update("used_bytes", gorm.Expr("used_bytes + ?", apply.BytesDelta)).Error; err != nil {
					return err
				}
				column := "used_public_bytes"
				if apply.Private {
					column = "used_private_bytes"
				}
				if err := tx.Model(&models.Namespace{}).
					Where("id = ?", apply.NamespaceID).
					Update(column, gorm.Expr(column+" + ?", apply.BytesDelta)).Error; err != nil {
					return err
				}
			}

			// Revision pointer mirror.
			var rev models.Revision
			err := tx.Where("repo_id = ? AND name = ?", apply.RepoID, apply.Branch).First(&rev).Error
			switch {
			case err == nil:
				rev.CommitID = apply.CommitID
				if err := tx.Save(&rev).Error; err != nil {
					return err
				}
			case convertNotFoundError(err, nil) == nil:
				rev = models.Revision{
					ID:       uuid.New().String(),
					RepoID:   apply.RepoID,
					Name:     apply.Branch,
					Kind:     "branch",
					CommitID: apply.CommitID,
				}
				if err := tx.Create(&rev).Error; err != nil {
					return err
				}
			default:
				return err
			}

			// Close staging for every oid the commit referenced.
			if len(apply.VerifiedOIDs) > 0 {
				now := time.Now()
				if err := tx.Model(&models.StagingUpload{}).
					Where("oid IN ? AND state = ?", apply.VerifiedOIDs, models.StagingPending).
					Updates(map[string]any{
						"state":        models.StagingComplete,
						"completed_at": &now,
					}).Error; err != nil {
					return err
				}
			}

			return nil
		})
	})
}
