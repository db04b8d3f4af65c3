package models

import "time"

// User is a principal with credentials.
//
// Every user owns the namespace matching their username and may belong
// to any number of organizations through OrgMembership rows. API tokens
// are exclusively owned by their user.
type User struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	Username     string     `gorm:"uniqueIndex;not null;size:96" json:"username"`
	PasswordHash string     `gorm:"not null" json:"-"`
	Email        string     `gorm:"size:255" json:"email,omitempty"`
	DisplayName  string     `gorm:"size:255" json:"display_name,omitempty"`
	Enabled      bool       `gorm:"default:true" json:"enabled"`
	SiteAdmin    bool       `gorm:"default:false" json:"site_admin"`
	NamespaceID  string     `gorm:"uniqueIndex;not null;size:36" json:"namespace_id"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

// TableName returns the table name for User.
func (User) TableName() string {
	return "users"
}

// GetDisplayName returns the display name, or username if not set.
func (u *User) GetDisplayName() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

// Token is an API bearer token owned by a user.
//
// Only the SHA-256 digest of the secret is stored; the secret itself is
// shown to the user once at creation time.
type Token struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	UserID       string     `gorm:"index;not null;size:36" json:"user_id"`
	Label        string     `gorm:"size:255" json:"label"`
	SecretDigest string     `gorm:"uniqueIndex;not null;size:64" json:"-"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	LastUsed     *time.Time `json:"last_used,omitempty"`
	Revoked      bool       `gorm:"default:false" json:"revoked"`
}

// TableName returns the table name for Token.
func (Token) TableName() string {
	return "tokens"
}
