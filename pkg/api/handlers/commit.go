package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/modelsilo/silo/pkg/access"
	"github.com/modelsilo/silo/pkg/models"
)

type commitResponse struct {
	CommitURL      string  `json:"commitUrl"`
	CommitOID      string  `json:"commitOid"`
	PullRequestURL *string `json:"pullRequestUrl"`
}

// Commit applies a streaming NDJSON commit payload to a branch.
func (h *Handler) Commit(w http.ResponseWriter, r *http.Request) {
	repo, err := h.loadRepo(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if err := h.checkRepo(r, repo, access.CapWrite); err != nil {
		WriteError(w, r, err)
		return
	}
	p := principal(r)
	if p == nil {
		WriteError(w, r, models.ErrUnauthenticated)
		return
	}

	branch := chi.URLParam(r, "revision")
	result, err := h.commits.Commit(r.Context(), repo, branch, p.Username, r.Body)
	if err != nil {
		h.metrics.ObserveCommit(commitMetricResult(err))
		WriteError(w, r, err)
		return
	}
	h.metrics.ObserveCommit("ok")

	WriteJSON(w, http.StatusOK, commitResponse{
		CommitURL: fmt.Sprintf("%s/%s/commit/%s", h.baseURL, repo.FullName(), result.CommitID),
		CommitOID: result.CommitID,
	})
}

func commitMetricResult(err error) string {
	switch status, _ := errorKind(err); {
	case status >= 500:
		return "error"
	default:
		return "rejected"
	}
}
