package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/modelsilo/silo/pkg/models"
	"github.com/modelsilo/silo/pkg/objectstore"
)

// Batch operation names on the wire.
const (
	OperationUpload   = "upload"
	OperationDownload = "download"
)

// Transfer adapter names on the wire.
const (
	TransferBasic     = "basic"
	TransferMultipart = "multipart"
)

// BatchRequest is the Git-LFS batch request body.
type BatchRequest struct {
	Operation string        `json:"operation"`
	Transfers []string      `json:"transfers,omitempty"`
	Objects   []BatchObject `json:"objects"`
}

// BatchObject identifies one blob by content hash and size.
type BatchObject struct {
	OID  string `json:"oid"`
	Size int64  `json:"size"`
}

// Action is one presigned step of a transfer.
type Action struct {
	Href      string            `json:"href"`
	Header    map[string]string `json:"header,omitempty"`
	ExpiresAt *time.Time        `json:"expires_at,omitempty"`
}

// Actions groups the steps offered for one object. An upload object
// with a nil Actions set is the dedup acknowledgement: the blob already
// exists and nothing needs transferring.
type Actions struct {
	Upload   *Action `json:"upload,omitempty"`
	Download *Action `json:"download,omitempty"`
	Verify   *Action `json:"verify,omitempty"`
}

// PartPlan is one presigned part of a multipart upload.
type PartPlan struct {
	PartNumber int32  `json:"part_number"`
	Href       string `json:"href"`
	SizeRange  string `json:"size_range"`
}

// ObjectError is the per-object error form of the LFS protocol.
type ObjectError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// BatchObjectResponse is the per-object response.
type BatchObjectResponse struct {
	OID      string       `json:"oid"`
	Size     int64        `json:"size"`
	Actions  *Actions     `json:"actions,omitempty"`
	UploadID string       `json:"upload_id,omitempty"`
	Parts    []PartPlan   `json:"parts,omitempty"`
	Error    *ObjectError `json:"error,omitempty"`
}

// BatchResponse is the Git-LFS batch response body.
type BatchResponse struct {
	Transfer string                `json:"transfer"`
	Objects  []BatchObjectResponse `json:"objects"`
}

// Broker issues presigned transfer plans against the object store.
type Broker struct {
	cfg     *Config
	objects objectstore.Store
	staging StagingStore
	baseURL string
}

// NewBroker creates a batch broker. baseURL is the externally
// reachable hub URL used for verify hrefs.
func NewBroker(cfg *Config, objects objectstore.Store, staging StagingStore, baseURL string) *Broker {
	return &Broker{cfg: cfg, objects: objects, staging: staging, baseURL: baseURL}
}

// verifyHref builds the absolute verify URL for a repository.
func (b *Broker) verifyHref(repo *models.Repository) string {
	return fmt.Sprintf("%s/%s/%s.git/info/lfs/objects/verify", b.baseURL, repo.NamespaceName, repo.Name)
}

// wantsMultipart reports whether the client advertised the multipart
// transfer adapter.
func wantsMultipart(transfers []string) bool {
	for _, t := range transfers {
		if t == TransferMultipart {
			return true
		}
	}
	return false
}

// Batch resolves one batch request. Authorization and quota admission
// happen before this call; Batch itself only brokers transfers.
func (b *Broker) Batch(ctx context.Context, repo *models.Repository, req *BatchRequest) (*BatchResponse, error) {
	if req.Operation != OperationUpload && req.Operation != OperationDownload {
		return nil, models.ErrMalformedPayload
	}

	multipartOK := wantsMultipart(req.Transfers)

	resp := &BatchResponse{
		Transfer: TransferBasic,
		Objects:  make([]BatchObjectResponse, 0, len(req.Objects)),
	}

	for _, obj := range req.Objects {
		out, multipart, err := b.resolveObject(ctx, repo, req.Operation, obj, multipartOK)
		if err != nil {
			return nil, err
		}
		if multipart {
			resp.Transfer = TransferMultipart
		}
		resp.Objects = append(resp.Objects, out)
	}
	return resp, nil
}

// resolveObject produces the response for a single object.
func (b *Broker) resolveObject(ctx context.Context, repo *models.Repository, operation string, obj BatchObject, multipartOK bool) (BatchObjectResponse, bool, error) {
	out := BatchObjectResponse{OID: obj.OID, Size: obj.Size}

	if !ValidOID(obj.OID) {
		out.Error = &ObjectError{Code: 422, Message: "unsupported_hash"}
		return out, false, nil
	}
	if operation == OperationUpload && obj.Size > b.cfg.MaxObjectBytes {
		out.Error = &ObjectError{Code: 422, Message: "object_too_large"}
		return out, false, nil
	}

	key := objectstore.ObjectKey(obj.OID)

	switch operation {
	case OperationDownload:
		if _, err := b.objects.Stat(ctx, key); err != nil {
			if errors.Is(err, objectstore.ErrObjectMissing) {
				out.Error = &ObjectError{Code: 404, Message: "object not found"}
				return out, false, nil
			}
			return out, false, err
		}
		url, err := b.objects.PresignGet(ctx, key, b.cfg.DownloadTTL)
		if err != nil {
			return out, false, err
		}
		expires := url.ExpiresAt
		out.Actions = &Actions{
			Download: &Action{Href: url.URL, ExpiresAt: &expires},
		}
		return out, false, nil

	case OperationUpload:
		// Content-addressed dedup: an existing blob needs no transfer.
		if info, err := b.objects.Stat(ctx, key); err == nil && info.Size == obj.Size {
			return out, false, nil
		} else if err != nil && !errors.Is(err, objectstore.ErrObjectMissing) {
			return out, false, err
		}

		if multipartOK && obj.Size > b.cfg.MultipartThresholdBytes {
			multi, err := b.multipartPlan(ctx, repo, obj, key)
			return multi, true, err
		}
		single, err := b.singlePlan(ctx, repo, obj, key)
		return single, false, err
	}

	return out, false, models.ErrMalformedPayload
}

// singlePlan issues one presigned PUT plus a verify action.
func (b *Broker) singlePlan(ctx context.Context, repo *models.Repository, obj BatchObject, key string) (BatchObjectResponse, error) {
	out := BatchObjectResponse{OID: obj.OID, Size: obj.Size}

	url, err := b.objects.PresignPut(ctx, key, obj.Size, b.cfg.UploadTTL)
	if err != nil {
		return out, err
	}

	if _, err := b.staging.CreateStaging(ctx, &models.StagingUpload{
		ID:     uuid.NewString(),
		RepoID: repo.ID,
		OID:    obj.OID,
		Size:   obj.Size,
		State:  models.StagingPending,
	}); err != nil {
		return out, fmt.Errorf("failed to record staging upload: %w", err)
	}

	expires := url.ExpiresAt
	out.Actions = &Actions{
		Upload: &Action{Href: url.URL, Header: url.Header, ExpiresAt: &expires},
		Verify: &Action{Href: b.verifyHref(repo)},
	}
	return out, nil
}

// maxMultipartParts is the S3 limit on parts per upload.
const maxMultipartParts = 10000

// multipartPlan initiates a multipart upload and presigns every part.
func (b *Broker) multipartPlan(ctx context.Context, repo *models.Repository, obj BatchObject, key string) (BatchObjectResponse, error) {
	out := BatchObjectResponse{OID: obj.OID, Size: obj.Size}

	uploadID, err := b.objects.InitiateMultipart(ctx, key)
	if err != nil {
		return out, err
	}

	// Scale the part size up when the configured size would need more
	// parts than the backend accepts.
	partSize := b.cfg.PartSizeBytes
	if minSize := (obj.Size + maxMultipartParts - 1) / maxMultipartParts; partSize < minSize {
		partSize = minSize
	}
	partCount := int32((obj.Size + partSize - 1) / partSize)
	parts := make([]PartPlan, 0, partCount)
	for n := int32(1); n <= partCount; n++ {
		url, err := b.objects.PresignPart(ctx, key, uploadID, n, b.cfg.UploadTTL)
		if err != nil {
			return out, err
		}
		from := int64(n-1) * partSize
		to := from + partSize - 1
		if to >= obj.Size {
			to = obj.Size - 1
		}
		parts = append(parts, PartPlan{
			PartNumber: n,
			Href:       url.URL,
			SizeRange:  fmt.Sprintf("%d-%d", from, to),
		})
	}

	if _, err := b.staging.CreateStaging(ctx, &models.StagingUpload{
		ID:          uuid.NewString(),
		RepoID:      repo.ID,
		OID:         obj.OID,
		Size:        obj.Size,
		MultipartID: uploadID,
		State:       models.StagingPending,
	}); err != nil {
		return out, fmt.Errorf("failed to record staging upload: %w", err)
	}

	out.UploadID = uploadID
	out.Parts = parts
	out.Actions = &Actions{
		Verify: &Action{Href: b.verifyHref(repo)},
	}
	return out, nil
}
