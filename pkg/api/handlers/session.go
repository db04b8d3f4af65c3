package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/modelsilo/silo/pkg/auth"
	"github.com/modelsilo/silo/pkg/models"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Login exchanges username/password for a session token pair and sets
// the session cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.authn.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	pair, err := h.jwt.GenerateTokenPair(user)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    pair.AccessToken,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  pair.ExpiresAt,
	})
	WriteJSON(w, http.StatusOK, loginResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
	})
}

type whoamiOrg struct {
	Name string `json:"name"`
	Role string `json:"roleInOrg"`
}

type whoamiResponse struct {
	Type      string      `json:"type"`
	Name      string      `json:"name"`
	Email     string      `json:"email,omitempty"`
	SiteAdmin bool        `json:"siteAdmin"`
	Orgs      []whoamiOrg `json:"orgs"`
}

// Whoami introspects the presented credential.
func (h *Handler) Whoami(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if p == nil {
		WriteError(w, r, models.ErrUnauthenticated)
		return
	}

	user, err := h.store.GetUserByID(r.Context(), p.UserID)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	memberships, err := h.store.ListMemberships(r.Context(), p.UserID)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	orgs := make([]whoamiOrg, 0, len(memberships))
	for _, m := range memberships {
		ns, err := h.store.GetNamespaceByID(r.Context(), m.NamespaceID)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		orgs = append(orgs, whoamiOrg{Name: ns.Name, Role: string(m.Role)})
	}

	WriteJSON(w, http.StatusOK, whoamiResponse{
		Type:      "user",
		Name:      user.Username,
		Email:     user.Email,
		SiteAdmin: user.SiteAdmin,
		Orgs:      orgs,
	})
}

type createTokenRequest struct {
	Label string `json:"label"`
}

type createTokenResponse struct {
	ID    string `json:"id"`
	Token string `json:"token"`
	Label string `json:"label"`
}

// CreateToken issues a new API token for the authenticated user. The
// secret is shown exactly once.
func (h *Handler) CreateToken(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if p == nil {
		WriteError(w, r, models.ErrUnauthenticated)
		return
	}
	var req createTokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	secret, digest, err := models.NewTokenSecret()
	if err != nil {
		WriteError(w, r, err)
		return
	}
	token := &models.Token{
		ID:           uuid.NewString(),
		UserID:       p.UserID,
		Label:        req.Label,
		SecretDigest: digest,
	}
	if _, err := h.store.CreateToken(r.Context(), token); err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, createTokenResponse{
		ID:    token.ID,
		Token: secret,
		Label: token.Label,
	})
}

// ListTokens lists the caller's API tokens (metadata only).
func (h *Handler) ListTokens(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if p == nil {
		WriteError(w, r, models.ErrUnauthenticated)
		return
	}
	tokens, err := h.store.ListTokens(r.Context(), p.UserID)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"tokens": tokens})
}

// RevokeToken revokes one of the caller's API tokens.
func (h *Handler) RevokeToken(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if p == nil {
		WriteError(w, r, models.ErrUnauthenticated)
		return
	}
	id := chi.URLParam(r, "id")
	tokens, err := h.store.ListTokens(r.Context(), p.UserID)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	for _, t := range tokens {
		if t.ID == id {
			if err := h.store.RevokeToken(r.Context(), id); err != nil {
				WriteError(w, r, err)
				return
			}
			WriteJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
			return
		}
	}
	WriteError(w, r, models.ErrTokenNotFound)
}
