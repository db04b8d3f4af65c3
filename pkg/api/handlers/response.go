package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/modelsilo/silo/internal/logger"
	"github.com/modelsilo/silo/pkg/models"
)

// errorKind maps a domain error onto its HTTP status and stable
// symbolic code.
func errorKind(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, models.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, models.ErrRevokedToken):
		return http.StatusUnauthorized, "revoked_token"
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, models.ErrRepoNotFound):
		return http.StatusNotFound, "repo_not_found"
	case errors.Is(err, models.ErrRevisionNotFound):
		return http.StatusNotFound, "revision_not_found"
	case errors.Is(err, models.ErrPathNotFound):
		return http.StatusNotFound, "path_not_found"
	case errors.Is(err, models.ErrUserNotFound):
		return http.StatusNotFound, "user_not_found"
	case errors.Is(err, models.ErrNamespaceNotFound):
		return http.StatusNotFound, "namespace_not_found"
	case errors.Is(err, models.ErrNameTaken):
		return http.StatusConflict, "name_taken"
	case errors.Is(err, models.ErrInvalidName):
		return http.StatusUnprocessableEntity, "invalid_name"
	case errors.Is(err, models.ErrQuotaExceeded):
		return http.StatusRequestEntityTooLarge, "quota_exceeded"
	case errors.Is(err, models.ErrInlineTooLarge):
		return http.StatusRequestEntityTooLarge, "inline_too_large"
	case errors.Is(err, models.ErrObjectTooLarge):
		return http.StatusRequestEntityTooLarge, "object_too_large"
	case errors.Is(err, models.ErrObjectNotReady):
		return http.StatusUnprocessableEntity, "object_not_ready"
	case errors.Is(err, models.ErrSizeMismatch):
		return http.StatusUnprocessableEntity, "size_mismatch"
	case errors.Is(err, models.ErrUnsupportedHash):
		return http.StatusUnprocessableEntity, "unsupported_hash"
	case errors.Is(err, models.ErrStaleRevision):
		return http.StatusConflict, "stale_revision"
	case errors.Is(err, models.ErrConcurrentUpdate):
		return http.StatusConflict, "concurrent_update"
	case errors.Is(err, models.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, "storage_unavailable"
	case errors.Is(err, models.ErrBackendUnavailable):
		return http.StatusServiceUnavailable, "backend_unavailable"
	case errors.Is(err, models.ErrMalformedPayload):
		return http.StatusBadRequest, "malformed_payload"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// WriteJSON writes v as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

// WriteError writes the error envelope for a domain error: the mapped
// status, a JSON body {"error": "<kind>"} and an X-Error-Code header.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := errorKind(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
	}
	w.Header().Set("X-Error-Code", kind)
	WriteJSON(w, status, map[string]string{"error": kind})
}
