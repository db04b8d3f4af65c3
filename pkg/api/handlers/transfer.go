package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/modelsilo/silo/internal/logger"
	"github.com/modelsilo/silo/pkg/access"
	"github.com/modelsilo/silo/pkg/transfer"
)

type preuploadRequest struct {
	Files []transfer.PreuploadFile `json:"files"`
}

type preuploadResponse struct {
	Files    []transfer.PreuploadResult `json:"files"`
	Warnings []string                   `json:"warnings,omitempty"`
}

// Preupload classifies a batch of files ahead of upload and runs the
// advisory quota check.
func (h *Handler) Preupload(w http.ResponseWriter, r *http.Request) {
	repo, err := h.loadRepo(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if err := h.checkRepo(r, repo, access.CapWrite); err != nil {
		WriteError(w, r, err)
		return
	}
	var req preuploadRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	branch := chi.URLParam(r, "revision")
	results, err := h.classifier.Classify(r.Context(), repo, branch, req.Files)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	resp := preuploadResponse{Files: results}
	warn, err := transfer.AdvisoryQuota(r.Context(), h.authz, repo, req.Files, results)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if warn {
		resp.Warnings = append(resp.Warnings, "this upload will exceed the namespace storage quota; the commit will be rejected")
	}
	WriteJSON(w, http.StatusOK, resp)
}

// LFSBatch serves the Git-LFS batch endpoint: it hands out presigned
// upload or download plans for a batch of objects.
func (h *Handler) LFSBatch(w http.ResponseWriter, r *http.Request) {
	repo, err := h.loadRepoAnyKind(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	var req transfer.BatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	cap := access.CapWrite
	if req.Operation == "download" {
		cap = access.CapRead
	}
	if err := h.checkRepo(r, repo, cap); err != nil {
		WriteError(w, r, err)
		return
	}

	resp, err := h.broker.Batch(r.Context(), repo, &req)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.git-lfs+json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error("failed to encode batch response", "error", err)
	}
}

// LFSVerify confirms that an uploaded object landed intact, completing
// multipart uploads and closing the staging reservation.
func (h *Handler) LFSVerify(w http.ResponseWriter, r *http.Request) {
	repo, err := h.loadRepoAnyKind(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if err := h.checkRepo(r, repo, access.CapWrite); err != nil {
		WriteError(w, r, err)
		return
	}

	var req transfer.VerifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.broker.Verify(r.Context(), repo, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "verified"})
}
