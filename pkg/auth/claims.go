package auth

import "github.com/golang-jwt/jwt/v5"

// TokenType distinguishes session access tokens from refresh tokens.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims are the JWT claims carried by browser session tokens.
type Claims struct {
	jwt.RegisteredClaims

	UserID    string    `json:"uid"`
	Username  string    `json:"username"`
	SiteAdmin bool      `json:"site_admin,omitempty"`
	TokenType TokenType `json:"token_type"`
}

// IsAccessToken reports whether the claims belong to an access token.
func (c *Claims) IsAccessToken() bool {
	return c.TokenType == TokenTypeAccess
}

// IsRefreshToken reports whether the claims belong to a refresh token.
func (c *Claims) IsRefreshToken() bool {
	return c.TokenType == TokenTypeRefresh
}
