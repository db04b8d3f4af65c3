// Package objectstore defines the capability interface for the bucket
// holding large artifact payloads.
//
// Objects are content addressed: the key of a blob is derived from its
// sha256 so identical content across repositories shares one object.
// Clients never stream bytes through the hub; they follow presigned
// URLs straight to the backend.
package objectstore

import (
	"context"
	"time"
)

// ObjectKey returns the bucket key for a sha256 digest. The two
// two-character fan-out segments keep any single listing prefix small.
//
// Example: sha256/ab/cd/abcd1234...
func ObjectKey(sha256 string) string {
	if len(sha256) < 4 {
		return "sha256/" + sha256
	}
	return "sha256/" + sha256[0:2] + "/" + sha256[2:4] + "/" + sha256
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key  string
	Size int64
}

// PresignedURL is a time-limited URL for one direct-to-bucket request.
type PresignedURL struct {
	URL       string
	Method    string
	Header    map[string]string
	ExpiresAt time.Time
}

// MultipartPart pairs a part number with the etag the backend returned
// for it.
type MultipartPart struct {
	Number int32
	ETag   string
}

// Store is the object storage capability.
//
// Implementations retry transient backend failures internally and
// return ErrBackendUnavailable once retries are exhausted.
type Store interface {
	// PresignPut returns a URL authorising a single PUT of the object.
	PresignPut(ctx context.Context, key string, size int64, expiry time.Duration) (PresignedURL, error)

	// PresignGet returns a URL authorising a GET of the object.
	PresignGet(ctx context.Context, key string, expiry time.Duration) (PresignedURL, error)

	// InitiateMultipart starts a multipart upload and returns its id.
	InitiateMultipart(ctx context.Context, key string) (string, error)

	// PresignPart returns a URL authorising the upload of one part.
	PresignPart(ctx context.Context, key, uploadID string, partNumber int32, expiry time.Duration) (PresignedURL, error)

	// CompleteMultipart assembles the uploaded parts into the object.
	CompleteMultipart(ctx context.Context, key, uploadID string, parts []MultipartPart) error

	// AbortMultipart abandons a multipart upload and frees its parts.
	AbortMultipart(ctx context.Context, key, uploadID string) error

	// Stat returns size information for an object, or ErrObjectMissing.
	Stat(ctx context.Context, key string) (ObjectInfo, error)

	// Delete removes an object. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error

	// List walks every key under prefix, invoking fn per object. fn
	// returning an error stops the walk.
	List(ctx context.Context, prefix string, fn func(ObjectInfo) error) error
}
