// Package handlers implements the hub's HTTP endpoints.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/modelsilo/silo/pkg/access"
	"github.com/modelsilo/silo/pkg/api/middleware"
	"github.com/modelsilo/silo/pkg/auth"
	"github.com/modelsilo/silo/pkg/commitengine"
	"github.com/modelsilo/silo/pkg/metrics"
	"github.com/modelsilo/silo/pkg/models"
	"github.com/modelsilo/silo/pkg/objectstore"
	"github.com/modelsilo/silo/pkg/resolver"
	"github.com/modelsilo/silo/pkg/store"
	"github.com/modelsilo/silo/pkg/transfer"
	"github.com/modelsilo/silo/pkg/versioning"
)

// Handler bundles the hub components behind the HTTP surface.
type Handler struct {
	store      *store.Store
	engine     versioning.Engine
	objects    objectstore.Store
	authn      *auth.Authenticator
	authz      *access.Authorizer
	classifier *transfer.Classifier
	broker     *transfer.Broker
	commits    *commitengine.Engine
	resolver   *resolver.Resolver
	jwt        *auth.JWTService
	metrics    *metrics.Metrics
	baseURL    string
}

// Deps are the components the handlers dispatch into.
type Deps struct {
	Store      *store.Store
	Engine     versioning.Engine
	Objects    objectstore.Store
	Authn      *auth.Authenticator
	Authz      *access.Authorizer
	Classifier *transfer.Classifier
	Broker     *transfer.Broker
	Commits    *commitengine.Engine
	Resolver   *resolver.Resolver
	JWT        *auth.JWTService
	Metrics    *metrics.Metrics
	BaseURL    string
}

// New creates the handler set.
func New(deps Deps) *Handler {
	return &Handler{
		store:      deps.Store,
		engine:     deps.Engine,
		objects:    deps.Objects,
		authn:      deps.Authn,
		authz:      deps.Authz,
		classifier: deps.Classifier,
		broker:     deps.Broker,
		commits:    deps.Commits,
		resolver:   deps.Resolver,
		jwt:        deps.JWT,
		metrics:    deps.Metrics,
		baseURL:    strings.TrimSuffix(deps.BaseURL, "/"),
	}
}

// principal returns the authenticated principal, or nil for anonymous
// requests.
func principal(r *http.Request) *auth.Principal {
	return middleware.GetPrincipal(r.Context())
}

// decodeJSON decodes the request body into v. On failure it writes the
// malformed_payload envelope and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteError(w, r, fmt.Errorf("%w: %v", models.ErrMalformedPayload, err))
		return false
	}
	return true
}

// repoKind parses the plural kind segment ("models", "datasets",
// "spaces") of an /api route.
func repoKind(r *http.Request) (models.RepoKind, error) {
	kind := models.RepoKind(strings.TrimSuffix(chi.URLParam(r, "kind"), "s"))
	if !kind.IsValid() {
		return "", fmt.Errorf("%w: unknown repository kind", models.ErrRepoNotFound)
	}
	return kind, nil
}

// loadRepo resolves the {kind}/{namespace}/{name} route parameters.
func (h *Handler) loadRepo(r *http.Request) (*models.Repository, error) {
	kind, err := repoKind(r)
	if err != nil {
		return nil, err
	}
	return h.store.GetRepo(r.Context(), kind, chi.URLParam(r, "namespace"), chi.URLParam(r, "name"))
}

// loadRepoAnyKind resolves {namespace}/{name} routes that carry no kind
// segment (resolve, LFS). Models shadow datasets which shadow spaces,
// matching how the unprefixed URL space is allocated.
func (h *Handler) loadRepoAnyKind(r *http.Request) (*models.Repository, error) {
	namespace := chi.URLParam(r, "namespace")
	name := chi.URLParam(r, "name")
	for _, kind := range []models.RepoKind{models.RepoKindModel, models.RepoKindDataset, models.RepoKindSpace} {
		repo, err := h.store.GetRepo(r.Context(), kind, namespace, name)
		if err == nil {
			return repo, nil
		}
	}
	return nil, models.ErrRepoNotFound
}

// checkRepo runs the role matrix for the request's principal.
func (h *Handler) checkRepo(r *http.Request, repo *models.Repository, cap access.Capability) error {
	return h.authz.CheckRepo(r.Context(), principal(r), repo, cap)
}
