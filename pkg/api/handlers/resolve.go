package handlers

import (
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/modelsilo/silo/pkg/access"
	"github.com/modelsilo/silo/pkg/models"
	"github.com/modelsilo/silo/pkg/resolver"
)

// resolveHeaders writes the metadata headers common to HEAD and GET.
func resolveHeaders(w http.ResponseWriter, res *resolver.FileResolution) {
	w.Header().Set("X-Repo-Commit", res.CommitID)
	w.Header().Set("X-Linked-Etag", res.ETag())
	w.Header().Set("X-Linked-Size", strconv.FormatInt(res.Entry.Size, 10))
	w.Header().Set("ETag", `"`+res.Entry.SHA256+`"`)
	w.Header().Set("Accept-Ranges", "bytes")
}

// contentTypeFor guesses the response content type from the file
// extension.
func contentTypeFor(path string) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func (h *Handler) resolveFile(w http.ResponseWriter, r *http.Request) (*models.Repository, *resolver.FileResolution, bool) {
	repo, err := h.loadRepoAnyKind(r)
	if err != nil {
		WriteError(w, r, err)
		return nil, nil, false
	}
	if err := h.checkRepo(r, repo, access.CapRead); err != nil {
		WriteError(w, r, err)
		return nil, nil, false
	}

	res, err := h.resolver.ResolveFile(r.Context(), repo.ID, chi.URLParam(r, "revision"), chi.URLParam(r, "*"))
	if err != nil {
		WriteError(w, r, err)
		return nil, nil, false
	}
	return repo, res, true
}

// ResolveHead answers metadata-only lookups: commit, etag, size and,
// for external entries, a presigned download location.
func (h *Handler) ResolveHead(w http.ResponseWriter, r *http.Request) {
	_, res, ok := h.resolveFile(w, r)
	if !ok {
		return
	}
	resolveHeaders(w, res)
	w.Header().Set("Content-Length", strconv.FormatInt(res.Entry.Size, 10))
	if res.Redirect != nil {
		w.Header().Set("Location", res.Redirect.URL)
	}
	w.WriteHeader(http.StatusOK)
}

// ResolveGet serves inline bytes directly and redirects external
// entries to a presigned GET. Large blobs never pass through the hub.
func (h *Handler) ResolveGet(w http.ResponseWriter, r *http.Request) {
	repo, res, ok := h.resolveFile(w, r)
	if !ok {
		return
	}
	resolveHeaders(w, res)

	if res.Redirect != nil {
		w.Header().Set("Location", res.Redirect.URL)
		w.WriteHeader(http.StatusFound)
		return
	}

	data, err := h.resolver.Open(r.Context(), repo.ID, res.Entry)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentTypeFor(res.Entry.Path))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
