package store

import (
	"context"
	"time"

	"github.com/modelsilo/silo/pkg/models"
)

// CreateToken persists a new API token row.
func (s *Store) CreateToken(ctx context.Context, token *models.Token) (string, error) {
	return createWithID(s.db, ctx, token, func(t *models.Token, id string) { t.ID = id }, token.ID, models.ErrNameTaken)
}

// GetTokenByDigest looks a token up by its stored secret digest.
// Revoked tokens are still returned; the auth layer distinguishes
// revoked_token from invalid_credentials.
func (s *Store) GetTokenByDigest(ctx context.Context, digest string) (*models.Token, error) {
	var token *models.Token
	err := withRetry(ctx, func() error {
		var err error
		token, err = getByField[models.Token](s.db, ctx, "secret_digest", digest, models.ErrTokenNotFound)
		return err
	})
	if err != nil {
		return nil, err
	}
	return token, nil
}

// ListTokens returns all tokens owned by a user.
func (s *Store) ListTokens(ctx context.Context, userID string) ([]*models.Token, error) {
	var tokens []*models.Token
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&tokens).Error; err != nil {
		return nil, err
	}
	return tokens, nil
}

// RevokeToken marks a token as revoked. Revocation is permanent.
func (s *Store) RevokeToken(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).
		Model(&models.Token{}).
		Where("id = ?", id).
		Update("revoked", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrTokenNotFound
	}
	return nil
}

// TouchToken updates a token's last-used timestamp. Best effort; a
// failure here never blocks the request.
func (s *Store) TouchToken(ctx context.Context, id string) error {
	now := time.Now()
	return s.db.WithContext(ctx).
		Model(&models.Token{}).
		Where("id = ?", id).
		Update("last_used", &now).Error
}
