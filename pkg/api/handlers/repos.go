package handlers

import (
	"fmt"
	"net/http"

	"github.com/modelsilo/silo/internal/logger"
	"github.com/modelsilo/silo/pkg/access"
	"github.com/modelsilo/silo/pkg/models"
)

type createRepoRequest struct {
	Type         string `json:"type"`
	Name         string `json:"name"`
	Organization string `json:"organization,omitempty"`
	Private      bool   `json:"private"`
}

type createRepoResponse struct {
	URL  string `json:"url"`
	Name string `json:"name"`
	ID   string `json:"id"`
}

// CreateRepo creates a repository and its versioning root.
func (h *Handler) CreateRepo(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if p == nil {
		WriteError(w, r, models.ErrUnauthenticated)
		return
	}
	var req createRepoRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	kind := models.RepoKind(req.Type)
	if req.Type == "" {
		kind = models.RepoKindModel
	}
	if !kind.IsValid() {
		WriteError(w, r, fmt.Errorf("%w: unknown repository type %q", models.ErrInvalidName, req.Type))
		return
	}

	// Target namespace: the caller's own unless an organization is
	// named.
	namespace := p.Username
	if req.Organization != "" {
		namespace = req.Organization
	}
	ns, err := h.store.GetNamespace(r.Context(), namespace)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if err := h.authz.CheckNamespace(r.Context(), p, ns, access.CapWrite); err != nil {
		WriteError(w, r, err)
		return
	}

	repo := &models.Repository{
		Kind:          kind,
		NamespaceID:   ns.ID,
		NamespaceName: ns.Name,
		Name:          req.Name,
		Private:       req.Private,
		CreatedBy:     p.UserID,
	}
	if err := h.store.CreateRepo(r.Context(), repo); err != nil {
		WriteError(w, r, err)
		return
	}
	if _, err := h.engine.CreateRoot(r.Context(), repo.ID, repo.DefaultBranch, p.Username); err != nil {
		// Without a root the repository is unusable; undo the row.
		if delErr := h.store.DeleteRepo(r.Context(), repo.ID); delErr != nil {
			logger.Error("failed to remove repository after root creation failure",
				"repo", repo.FullName(), "error", delErr)
		}
		WriteError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, createRepoResponse{
		URL:  fmt.Sprintf("%s/%s", h.baseURL, repo.FullName()),
		Name: repo.FullName(),
		ID:   repo.ID,
	})
}

type deleteRepoRequest struct {
	Type         string `json:"type"`
	Name         string `json:"name"`
	Organization string `json:"organization,omitempty"`
}

// DeleteRepo removes a repository, its metadata and its commit graph.
// External blobs are left for the GC sweep.
func (h *Handler) DeleteRepo(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if p == nil {
		WriteError(w, r, models.ErrUnauthenticated)
		return
	}
	var req deleteRepoRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	kind := models.RepoKind(req.Type)
	if req.Type == "" {
		kind = models.RepoKindModel
	}

	namespace := p.Username
	if req.Organization != "" {
		namespace = req.Organization
	}
	repo, err := h.store.GetRepo(r.Context(), kind, namespace, req.Name)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if err := h.authz.CheckRepo(r.Context(), p, repo, access.CapSettings); err != nil {
		WriteError(w, r, err)
		return
	}

	if err := h.store.DeleteRepo(r.Context(), repo.ID); err != nil {
		WriteError(w, r, err)
		return
	}
	if err := h.engine.DropRoot(r.Context(), repo.ID); err != nil {
		logger.Error("failed to drop versioning root",
			"repo", repo.FullName(), "error", err)
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type updateSettingsRequest struct {
	Private       *bool  `json:"private,omitempty"`
	DefaultBranch string `json:"default_branch,omitempty"`
}

// UpdateSettings changes repository visibility or default branch.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	repo, err := h.loadRepo(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if err := h.checkRepo(r, repo, access.CapSettings); err != nil {
		WriteError(w, r, err)
		return
	}
	var req updateSettingsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.DefaultBranch != "" {
		// The new default branch must exist.
		if _, err := h.engine.ResolveBranch(r.Context(), repo.ID, req.DefaultBranch); err != nil {
			WriteError(w, r, err)
			return
		}
	}
	if err := h.store.UpdateRepoSettings(r.Context(), repo.ID, req.Private, req.DefaultBranch); err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}
