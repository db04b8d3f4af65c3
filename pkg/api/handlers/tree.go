package handlers

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/modelsilo/silo/pkg/access"
	"github.com/modelsilo/silo/pkg/resolver"
)

// defaultTreeLimit is the page size when the client does not ask for
// one; maxTreeLimit caps what it may ask for.
const (
	defaultTreeLimit = 100
	maxTreeLimit     = 1000
)

func treeOptions(r *http.Request) resolver.TreeOptions {
	q := r.URL.Query()
	opts := resolver.TreeOptions{
		Recursive: q.Get("recursive") == "true" || q.Get("recursive") == "1",
		Expand:    q.Get("expand") == "true" || q.Get("expand") == "1",
		Cursor:    q.Get("cursor"),
		Limit:     defaultTreeLimit,
	}
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			opts.Limit = n
		}
	}
	if opts.Limit > maxTreeLimit {
		opts.Limit = maxTreeLimit
	}
	return opts
}

// Tree lists the entries under a path at a revision. Pagination is
// cursor-based; when more pages remain the next cursor is exposed in
// the Link header and the X-Cursor header.
func (h *Handler) Tree(w http.ResponseWriter, r *http.Request) {
	repo, err := h.loadRepo(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if err := h.checkRepo(r, repo, access.CapRead); err != nil {
		WriteError(w, r, err)
		return
	}

	items, next, err := h.resolver.Tree(r.Context(), repo.ID, chi.URLParam(r, "revision"), chi.URLParam(r, "*"), treeOptions(r))
	if err != nil {
		WriteError(w, r, err)
		return
	}

	if next != "" {
		q := r.URL.Query()
		q.Set("cursor", next)
		w.Header().Set("Link", `<`+r.URL.Path+`?`+q.Encode()+`>; rel="next"`)
		w.Header().Set("X-Cursor", url.QueryEscape(next))
	}
	WriteJSON(w, http.StatusOK, items)
}

type pathsInfoRequest struct {
	Paths []string `json:"paths"`
}

// PathsInfo stats a batch of paths at a revision in one call.
func (h *Handler) PathsInfo(w http.ResponseWriter, r *http.Request) {
	repo, err := h.loadRepo(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if err := h.checkRepo(r, repo, access.CapRead); err != nil {
		WriteError(w, r, err)
		return
	}
	var req pathsInfoRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	items, err := h.resolver.PathsInfo(r.Context(), repo.ID, chi.URLParam(r, "revision"), req.Paths)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, items)
}

type revisionResponse struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Parent      string `json:"parent,omitempty"`
	Author      string `json:"author"`
	Message     string `json:"message"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// Revision resolves a revision name and returns its commit.
func (h *Handler) Revision(w http.ResponseWriter, r *http.Request) {
	repo, err := h.loadRepo(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if err := h.checkRepo(r, repo, access.CapRead); err != nil {
		WriteError(w, r, err)
		return
	}

	commit, kind, err := h.resolver.RevisionInfo(r.Context(), repo.ID, chi.URLParam(r, "revision"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, revisionResponse{
		ID:          commit.ID,
		Kind:        string(kind),
		Parent:      commit.Parent,
		Author:      commit.Author,
		Message:     commit.Message,
		Description: commit.Description,
		CreatedAt:   commit.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	})
}

type commitsResponse struct {
	Commits []revisionResponse `json:"commits"`
	Cursor  string             `json:"cursor,omitempty"`
}

// Commits walks the history of a revision, newest first.
func (h *Handler) Commits(w http.ResponseWriter, r *http.Request) {
	repo, err := h.loadRepo(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if err := h.checkRepo(r, repo, access.CapRead); err != nil {
		WriteError(w, r, err)
		return
	}

	commit, _, err := h.resolver.RevisionInfo(r.Context(), repo.ID, chi.URLParam(r, "revision"))
	if err != nil {
		WriteError(w, r, err)
		return
	}

	limit := defaultTreeLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= maxTreeLimit {
			limit = n
		}
	}
	log, next, err := h.engine.Log(r.Context(), repo.ID, commit.ID, limit, r.URL.Query().Get("cursor"))
	if err != nil {
		WriteError(w, r, err)
		return
	}

	resp := commitsResponse{Cursor: next}
	for _, c := range log {
		resp.Commits = append(resp.Commits, revisionResponse{
			ID:        c.ID,
			Parent:    c.Parent,
			Author:    c.Author,
			Message:   c.Message,
			CreatedAt: c.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	WriteJSON(w, http.StatusOK, resp)
}
