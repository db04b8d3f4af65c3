package models

import (
	"regexp"
	"time"
)

// NamespaceKind distinguishes user namespaces from organization namespaces.
type NamespaceKind string

const (
	// NamespaceUser is a namespace owned by exactly one user.
	NamespaceUser NamespaceKind = "user"
	// NamespaceOrg is a namespace owned by an organization.
	NamespaceOrg NamespaceKind = "org"
)

// namespacePattern restricts namespace and repository names to the
// characters hub clients expect in URLs.
var namespacePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,95}$`)

// ValidateName checks a namespace or repository name.
func ValidateName(name string) error {
	if !namespacePattern.MatchString(name) {
		return ErrInvalidName
	}
	return nil
}

// Namespace is a globally unique name owning a set of repositories.
//
// A namespace is created when a user registers or an organization is
// created, and is never silently deleted. Byte usage is tracked per
// visibility pool so public and private quotas can differ.
type Namespace struct {
	ID   string        `gorm:"primaryKey;size:36" json:"id"`
	Name string        `gorm:"uniqueIndex;not null;size:96" json:"name"`
	Kind NamespaceKind `gorm:"not null;size:16" json:"kind"`

	// UsedPublicBytes and UsedPrivateBytes are committed byte usage per
	// visibility pool. Updated only inside the commit transaction.
	UsedPublicBytes  int64 `gorm:"default:0" json:"used_public_bytes"`
	UsedPrivateBytes int64 `gorm:"default:0" json:"used_private_bytes"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for Namespace.
func (Namespace) TableName() string {
	return "namespaces"
}

// OrgRole is a member's role inside an organization namespace.
type OrgRole string

const (
	RoleMember     OrgRole = "member"
	RoleAdmin      OrgRole = "admin"
	RoleSuperAdmin OrgRole = "super-admin"
)

// IsValid checks if the role is a known OrgRole.
func (r OrgRole) IsValid() bool {
	return r == RoleMember || r == RoleAdmin || r == RoleSuperAdmin
}

// OrgMembership links a user to an organization namespace with a role.
type OrgMembership struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	NamespaceID string    `gorm:"uniqueIndex:idx_org_member;not null;size:36" json:"namespace_id"`
	UserID      string    `gorm:"uniqueIndex:idx_org_member;not null;size:36" json:"user_id"`
	Role        OrgRole   `gorm:"not null;size:16" json:"role"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for OrgMembership.
func (OrgMembership) TableName() string {
	return "org_memberships"
}
