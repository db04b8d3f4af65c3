package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/modelsilo/silo/pkg/models"
)

// SessionCookie is the cookie carrying the browser session JWT.
const SessionCookie = "silo_session"

// Principal is an authenticated caller. A nil *Principal means the
// request is anonymous.
type Principal struct {
	UserID      string
	Username    string
	NamespaceID string
	SiteAdmin   bool

	// TokenID is set when the principal authenticated with an API
	// token rather than a session.
	TokenID string
}

// CredentialStore is the persistence the authenticator needs.
type CredentialStore interface {
	GetUser(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetTokenByDigest(ctx context.Context, digest string) (*models.Token, error)
	TouchToken(ctx context.Context, id string) error
	TouchLastLogin(ctx context.Context, userID string) error
}

// Authenticator resolves requests into principals.
type Authenticator struct {
	store CredentialStore
	jwt   *JWTService
}

// NewAuthenticator creates an authenticator over a credential store and
// a JWT service.
func NewAuthenticator(store CredentialStore, jwt *JWTService) *Authenticator {
	return &Authenticator{store: store, jwt: jwt}
}

// Login verifies a username/password pair and returns the user.
// Unknown users and wrong passwords are indistinguishable to the caller.
func (a *Authenticator) Login(ctx context.Context, username, password string) (*models.User, error) {
	user, err := a.store.GetUser(ctx, username)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return nil, models.ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.Enabled || !models.VerifyPassword(password, user.PasswordHash) {
		return nil, models.ErrInvalidCredentials
	}

	// Best effort; login still succeeds when the timestamp write fails.
	_ = a.store.TouchLastLogin(ctx, user.ID)
	return user, nil
}

// Authenticate resolves the caller of an HTTP request.
//
// It accepts, in order: an Authorization bearer API token (silo_
// prefix), an Authorization bearer session JWT, and the session cookie.
// A request with no credential at all yields a nil principal and no
// error; the authorization layer decides whether anonymous is enough.
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) (*Principal, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		credential, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			return nil, models.ErrInvalidCredentials
		}
		credential = strings.TrimSpace(credential)
		if strings.HasPrefix(credential, models.TokenPrefix) {
			return a.authenticateAPIToken(ctx, credential)
		}
		return a.authenticateSession(ctx, credential)
	}

	if cookie, err := r.Cookie(SessionCookie); err == nil && cookie.Value != "" {
		return a.authenticateSession(ctx, cookie.Value)
	}

	return nil, nil
}

// authenticateAPIToken resolves a long-lived API token.
func (a *Authenticator) authenticateAPIToken(ctx context.Context, secret string) (*Principal, error) {
	token, err := a.store.GetTokenByDigest(ctx, models.DigestTokenSecret(secret))
	if err != nil {
		if errors.Is(err, models.ErrTokenNotFound) {
			return nil, models.ErrInvalidCredentials
		}
		return nil, err
	}
	if !models.VerifyTokenSecret(secret, token.SecretDigest) {
		return nil, models.ErrInvalidCredentials
	}
	if token.Revoked {
		return nil, models.ErrRevokedToken
	}

	user, err := a.store.GetUserByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return nil, models.ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.Enabled {
		return nil, models.ErrInvalidCredentials
	}

	_ = a.store.TouchToken(ctx, token.ID)

	return &Principal{
		UserID:      user.ID,
		Username:    user.Username,
		NamespaceID: user.NamespaceID,
		SiteAdmin:   user.SiteAdmin,
		TokenID:     token.ID,
	}, nil
}

// authenticateSession resolves a session JWT.
func (a *Authenticator) authenticateSession(ctx context.Context, tokenString string) (*Principal, error) {
	claims, err := a.jwt.ValidateAccessToken(tokenString)
	if err != nil {
		return nil, models.ErrInvalidCredentials
	}

	user, err := a.store.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return nil, models.ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.Enabled {
		return nil, models.ErrInvalidCredentials
	}

	return &Principal{
		UserID:      user.ID,
		Username:    user.Username,
		NamespaceID: user.NamespaceID,
		SiteAdmin:   user.SiteAdmin,
	}, nil
}
