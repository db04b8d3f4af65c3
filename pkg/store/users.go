package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/modelsilo/silo/pkg/models"
)

// GetUser retrieves a user by username.
func (s *Store) GetUser(ctx context.Context, username string) (*models.User, error) {
	return getByField[models.User](s.db, ctx, "username", username, models.ErrUserNotFound)
}

// GetUserByID retrieves a user by ID.
func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return getByField[models.User](s.db, ctx, "id", id, models.ErrUserNotFound)
}

// CreateUser creates a user together with its namespace in one
// transaction. The namespace name is the username; namespace names are
// globally unique across users and organizations, so a clash with an
// existing organization surfaces as name_taken.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if err := models.ValidateName(user.Username); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ns := &models.Namespace{
			ID:   uuid.New().String(),
			Name: user.Username,
			Kind: models.NamespaceUser,
		}
		if err := tx.Create(ns).Error; err != nil {
			if isUniqueConstraintError(err) {
				return models.ErrNameTaken
			}
			return err
		}

		if user.ID == "" {
			user.ID = uuid.New().String()
		}
		user.NamespaceID = ns.ID
		if err := tx.Create(user).Error; err != nil {
			if isUniqueConstraintError(err) {
				return models.ErrNameTaken
			}
			return err
		}
		return nil
	})
}

// ListUsers returns every user ordered by username.
func (s *Store) ListUsers(ctx context.Context) ([]*models.User, error) {
	var users []*models.User
	err := s.db.WithContext(ctx).
		Order("username asc").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

// TouchLastLogin records a successful authentication.
func (s *Store) TouchLastLogin(ctx context.Context, userID string) error {
	now := time.Now()
	return s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("last_login", &now).Error
}

// CreateOrg creates an organization namespace and makes creator its
// super-admin.
func (s *Store) CreateOrg(ctx context.Context, name, creatorUserID string) (*models.Namespace, error) {
	if err := models.ValidateName(name); err != nil {
		return nil, err
	}

	ns := &models.Namespace{
		ID:   uuid.New().String(),
		Name: name,
		Kind: models.NamespaceOrg,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(ns).Error; err != nil {
			if isUniqueConstraintError(err) {
				return models.ErrNameTaken
			}
			return err
		}
		member := &models.OrgMembership{
			ID:          uuid.New().String(),
			NamespaceID: ns.ID,
			UserID:      creatorUserID,
			Role:        models.RoleSuperAdmin,
		}
		return tx.Create(member).Error
	})
	if err != nil {
		return nil, err
	}
	return ns, nil
}

// GetNamespace retrieves a namespace by name.
func (s *Store) GetNamespace(ctx context.Context, name string) (*models.Namespace, error) {
	return getByField[models.Namespace](s.db, ctx, "name", name, models.ErrNamespaceNotFound)
}

// GetNamespaceByID retrieves a namespace by ID.
func (s *Store) GetNamespaceByID(ctx context.Context, id string) (*models.Namespace, error) {
	return getByField[models.Namespace](s.db, ctx, "id", id, models.ErrNamespaceNotFound)
}

// GetMembership returns the caller's role in an organization namespace,
// or nil if the user is not a member.
func (s *Store) GetMembership(ctx context.Context, namespaceID, userID string) (*models.OrgMembership, error) {
	var m models.OrgMembership
	err := s.db.WithContext(ctx).
		Where("namespace_id = ? AND user_id = ?", namespaceID, userID).
		First(&m).Error
	if err != nil {
		if convertNotFoundError(err, nil) == nil {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// ListMemberships returns every organization membership of a user.
func (s *Store) ListMemberships(ctx context.Context, userID string) ([]*models.OrgMembership, error) {
	var ms []*models.OrgMembership
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at asc").
		Find(&ms).Error
	if err != nil {
		return nil, err
	}
	return ms, nil
}

// AddMember adds or updates an organization membership.
func (s *Store) AddMember(ctx context.Context, namespaceID, userID string, role models.OrgRole) error {
	m := &models.OrgMembership{
		ID:          uuid.New().String(),
		NamespaceID: namespaceID,
		UserID:      userID,
		Role:        role,
	}
	err := s.db.WithContext(ctx).Create(m).Error
	if isUniqueConstraintError(err) {
		return s.db.WithContext(ctx).
			Model(&models.OrgMembership{}).
			Where("namespace_id = ? AND user_id = ?", namespaceID, userID).
			Update("role", role).Error
	}
	return err
}

// RemoveMember removes a user from an organization.
func (s *Store) RemoveMember(ctx context.Context, namespaceID, userID string) error {
	result := s.db.WithContext(ctx).
		Where("namespace_id = ? AND user_id = ?", namespaceID, userID).
		Delete(&models.OrgMembership{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrUserNotFound
	}
	return nil
}
