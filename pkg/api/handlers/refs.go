package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/modelsilo/silo/pkg/access"
	"github.com/modelsilo/silo/pkg/models"
	"github.com/modelsilo/silo/pkg/versioning"
)

type refEntry struct {
	Name         string `json:"name"`
	Ref          string `json:"ref"`
	TargetCommit string `json:"targetCommit"`
}

type refsResponse struct {
	Branches []refEntry `json:"branches"`
	Tags     []refEntry `json:"tags"`
}

// Refs lists every branch and tag with its target commit.
func (h *Handler) Refs(w http.ResponseWriter, r *http.Request) {
	repo, err := h.loadRepo(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if err := h.checkRepo(r, repo, access.CapRead); err != nil {
		WriteError(w, r, err)
		return
	}

	refs, err := h.engine.ListRefs(r.Context(), repo.ID)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	resp := refsResponse{Branches: []refEntry{}, Tags: []refEntry{}}
	for _, ref := range refs {
		switch ref.Kind {
		case versioning.RefBranch:
			resp.Branches = append(resp.Branches, refEntry{
				Name:         ref.Name,
				Ref:          "refs/heads/" + ref.Name,
				TargetCommit: ref.CommitID,
			})
		case versioning.RefTag:
			resp.Tags = append(resp.Tags, refEntry{
				Name:         ref.Name,
				Ref:          "refs/tags/" + ref.Name,
				TargetCommit: ref.CommitID,
			})
		}
	}
	WriteJSON(w, http.StatusOK, resp)
}

type createRefRequest struct {
	// Revision is the starting point; the repository's default branch
	// tip when empty.
	Revision string `json:"revision,omitempty"`
}

// CreateBranch creates a branch at a revision.
func (h *Handler) CreateBranch(w http.ResponseWriter, r *http.Request) {
	h.createRef(w, r, "branch", h.engine.CreateBranch)
}

// CreateTag creates a tag at a revision.
func (h *Handler) CreateTag(w http.ResponseWriter, r *http.Request) {
	h.createRef(w, r, "tag", h.engine.CreateTag)
}

func (h *Handler) createRef(w http.ResponseWriter, r *http.Request, param string, create func(ctx context.Context, repoID, name, atCommit string) error) {
	repo, err := h.loadRepo(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if err := h.checkRepo(r, repo, access.CapWrite); err != nil {
		WriteError(w, r, err)
		return
	}

	var req createRefRequest
	if r.ContentLength > 0 {
		if !decodeJSON(w, r, &req) {
			return
		}
	}
	revision := req.Revision
	if revision == "" {
		revision = repo.DefaultBranch
	}
	commitID, _, err := versioning.ResolveRevision(r.Context(), h.engine, repo.ID, revision)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	if err := create(r.Context(), repo.ID, chi.URLParam(r, param), commitID); err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "created", "targetCommit": commitID})
}

// DeleteBranch deletes a branch. The default branch is protected.
func (h *Handler) DeleteBranch(w http.ResponseWriter, r *http.Request) {
	repo, err := h.loadRepo(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if chi.URLParam(r, "branch") == repo.DefaultBranch {
		WriteError(w, r, fmt.Errorf("delete default branch %q: %w", repo.DefaultBranch, models.ErrForbidden))
		return
	}
	h.deleteRef(w, r, "branch", h.engine.DeleteBranch)
}

// DeleteTag deletes a tag.
func (h *Handler) DeleteTag(w http.ResponseWriter, r *http.Request) {
	h.deleteRef(w, r, "tag", h.engine.DeleteTag)
}

func (h *Handler) deleteRef(w http.ResponseWriter, r *http.Request, param string, del func(ctx context.Context, repoID, name string) error) {
	repo, err := h.loadRepo(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if err := h.checkRepo(r, repo, access.CapWrite); err != nil {
		WriteError(w, r, err)
		return
	}
	if err := del(r.Context(), repo.ID, chi.URLParam(r, param)); err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
