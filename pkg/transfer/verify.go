package transfer

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelsilo/silo/internal/logger"
	"github.com/modelsilo/silo/pkg/models"
	"github.com/modelsilo/silo/pkg/objectstore"
)

// VerifyRequest is the body of the verify call a client makes after
// finishing its upload. Parts is set only for multipart transfers, in
// which case the broker completes the upload before checking the
// object.
type VerifyRequest struct {
	OID   string       `json:"oid"`
	Size  int64        `json:"size"`
	Parts []VerifyPart `json:"parts,omitempty"`
}

// VerifyPart reports one uploaded part's backend etag.
type VerifyPart struct {
	PartNumber int32  `json:"part_number"`
	ETag       string `json:"etag"`
}

// Verify closes the loop on an upload: complete any multipart
// assembly, stat the object, compare sizes, abort superseded sibling
// uploads, and mark the staging records complete.
//
// Verification is idempotent and first-wins: once any client has
// verified an oid, later calls find a matching object and no pending
// records, and succeed trivially.
func (b *Broker) Verify(ctx context.Context, repo *models.Repository, req *VerifyRequest) error {
	if !ValidOID(req.OID) {
		return models.ErrUnsupportedHash
	}
	key := objectstore.ObjectKey(req.OID)

	pending, err := b.staging.PendingStaging(ctx, req.OID)
	if err != nil {
		return err
	}

	completedID := ""
	if len(req.Parts) > 0 {
		completedID, err = b.completeMultipart(ctx, req, key, pending)
		if err != nil {
			return err
		}
	}

	info, err := b.objects.Stat(ctx, key)
	if err != nil {
		if errors.Is(err, objectstore.ErrObjectMissing) {
			return models.ErrObjectNotReady
		}
		return err
	}
	if info.Size != req.Size {
		return models.ErrSizeMismatch
	}

	// Closing a sibling's pending row hides its multipart upload from
	// the janitor, so abort the upload here or its parts orphan in the
	// bucket.
	for _, rec := range pending {
		if rec.MultipartID == "" || rec.MultipartID == completedID {
			continue
		}
		if err := b.objects.AbortMultipart(ctx, key, rec.MultipartID); err != nil {
			logger.Warn("failed to abort superseded multipart upload",
				"oid", req.OID, "upload_id", rec.MultipartID, "error", err)
		}
	}

	if err := b.staging.CompleteStaging(ctx, req.OID); err != nil {
		return fmt.Errorf("failed to close staging records: %w", err)
	}
	return nil
}

// completeMultipart assembles the parts of the oldest pending
// multipart upload for this oid and returns its upload id. No pending
// multipart record means another client already completed the upload,
// which is not an error.
func (b *Broker) completeMultipart(ctx context.Context, req *VerifyRequest, key string, pending []*models.StagingUpload) (string, error) {
	var uploadID string
	for _, rec := range pending {
		if rec.MultipartID != "" {
			uploadID = rec.MultipartID
			break
		}
	}
	if uploadID == "" {
		return "", nil
	}

	parts := make([]objectstore.MultipartPart, len(req.Parts))
	for i, p := range req.Parts {
		parts[i] = objectstore.MultipartPart{Number: p.PartNumber, ETag: p.ETag}
	}
	if err := b.objects.CompleteMultipart(ctx, key, uploadID, parts); err != nil {
		return "", err
	}
	return uploadID, nil
}
