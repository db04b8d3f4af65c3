package models

import "errors"

// Domain errors for the hub core. The HTTP layer maps these onto status
// codes and symbolic X-Error-Code values; components raise them directly
// and callers match with errors.Is.
var (
	// Authentication and authorization errors.
	ErrUnauthenticated    = errors.New("authentication required")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrRevokedToken       = errors.New("token has been revoked")
	ErrForbidden          = errors.New("insufficient permissions")

	// Lookup errors.
	ErrRepoNotFound      = errors.New("repository not found")
	ErrRevisionNotFound  = errors.New("revision not found")
	ErrPathNotFound      = errors.New("path not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrNamespaceNotFound = errors.New("namespace not found")
	ErrTokenNotFound     = errors.New("token not found")
	ErrStagingNotFound   = errors.New("staging record not found")

	// Naming and uniqueness errors.
	ErrNameTaken   = errors.New("name already taken")
	ErrInvalidName = errors.New("invalid name")

	// Admission errors.
	ErrQuotaExceeded  = errors.New("storage quota exceeded")
	ErrInlineTooLarge = errors.New("inline file exceeds the large-file threshold")
	ErrObjectTooLarge = errors.New("object exceeds the maximum allowed size")

	// Large-file transfer errors.
	ErrObjectNotReady  = errors.New("object has not completed upload verification")
	ErrSizeMismatch    = errors.New("uploaded object size does not match the declared size")
	ErrUnsupportedHash = errors.New("unsupported hash algorithm")

	// Concurrency errors.
	ErrStaleRevision    = errors.New("branch tip moved since the commit was prepared")
	ErrConcurrentUpdate = errors.New("concurrent update detected")

	// Infrastructure errors.
	ErrStorageUnavailable = errors.New("metadata storage unavailable")
	ErrBackendUnavailable = errors.New("object storage unavailable")

	// Protocol errors.
	ErrMalformedPayload = errors.New("malformed request payload")
)
