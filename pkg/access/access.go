// Package access is the shared authorization and quota gate.
//
// Every mutating and private-read path in the hub goes through one
// Authorizer. Authorization is namespace scoped: a user owns their own
// namespace outright, organization namespaces grant capabilities by
// role. Quota admission compares projected usage against the effective
// byte budget, advisory at preupload and authoritative at commit.
package access

import (
	"context"

	"github.com/modelsilo/silo/pkg/auth"
	"github.com/modelsilo/silo/pkg/models"
)

// Capability is one of the namespace-scoped permissions the role
// matrix grants.
type Capability int

const (
	// CapRead covers resolve, tree, revision and refs reads.
	CapRead Capability = iota
	// CapWrite covers preupload, LFS transfer and commit.
	CapWrite
	// CapSettings covers visibility changes, LFS config and deletion.
	CapSettings
	// CapManageMembers covers organization membership changes.
	CapManageMembers
)

// MetadataStore is the persistence the gate needs.
type MetadataStore interface {
	GetNamespaceByID(ctx context.Context, id string) (*models.Namespace, error)
	GetMembership(ctx context.Context, namespaceID, userID string) (*models.OrgMembership, error)
	GetNamespaceQuota(ctx context.Context, namespaceID string) (*models.QuotaPolicy, error)
	GetRepoQuota(ctx context.Context, repoID string) (*models.QuotaPolicy, error)
}

// QuotaDefaults are the server-wide byte budgets used when a namespace
// inherits. Zero means unlimited.
type QuotaDefaults struct {
	PublicBytes  int64
	PrivateBytes int64
}

// Authorizer implements the role matrix and the quota gate.
type Authorizer struct {
	store    MetadataStore
	defaults QuotaDefaults
}

// New creates an authorizer over a metadata store.
func New(store MetadataStore, defaults QuotaDefaults) *Authorizer {
	return &Authorizer{store: store, defaults: defaults}
}

// CheckRepo decides whether a principal holds a capability on a
// repository. A nil principal is anonymous: it can read public
// repositories and nothing else.
func (a *Authorizer) CheckRepo(ctx context.Context, p *auth.Principal, repo *models.Repository, cap Capability) error {
	if cap == CapRead && !repo.Private {
		return nil
	}
	if p == nil {
		return models.ErrUnauthenticated
	}
	if p.SiteAdmin {
		return nil
	}

	// The principal's own namespace grants everything.
	if p.NamespaceID == repo.NamespaceID {
		return nil
	}

	membership, err := a.store.GetMembership(ctx, repo.NamespaceID, p.UserID)
	if err != nil {
		return err
	}
	if membership == nil {
		return models.ErrForbidden
	}

	switch cap {
	case CapRead:
		return nil
	case CapWrite:
		if membership.Role == models.RoleAdmin || membership.Role == models.RoleSuperAdmin {
			return nil
		}
		// Members may write to repositories they created.
		if membership.Role == models.RoleMember && repo.CreatedBy == p.UserID {
			return nil
		}
		return models.ErrForbidden
	case CapSettings:
		if membership.Role == models.RoleAdmin || membership.Role == models.RoleSuperAdmin {
			return nil
		}
		return models.ErrForbidden
	default:
		return models.ErrForbidden
	}
}

// CheckNamespace decides whether a principal may create repositories
// in, or manage members of, a namespace.
func (a *Authorizer) CheckNamespace(ctx context.Context, p *auth.Principal, ns *models.Namespace, cap Capability) error {
	if p == nil {
		return models.ErrUnauthenticated
	}
	if p.SiteAdmin || p.NamespaceID == ns.ID {
		return nil
	}
	if ns.Kind != models.NamespaceOrg {
		return models.ErrForbidden
	}

	membership, err := a.store.GetMembership(ctx, ns.ID, p.UserID)
	if err != nil {
		return err
	}
	if membership == nil {
		return models.ErrForbidden
	}

	switch cap {
	case CapRead:
		return nil
	case CapWrite:
		// Any member may create repositories in the organization; the
		// repo-level matrix then restricts who can write to them.
		return nil
	case CapSettings, CapManageMembers:
		if membership.Role == models.RoleAdmin || membership.Role == models.RoleSuperAdmin {
			return nil
		}
		return models.ErrForbidden
	default:
		return models.ErrForbidden
	}
}

// CanGrantRole refuses admins granting or revoking super-admin; only a
// super-admin (or site admin) touches that role.
func (a *Authorizer) CanGrantRole(ctx context.Context, p *auth.Principal, ns *models.Namespace, role models.OrgRole) error {
	if err := a.CheckNamespace(ctx, p, ns, CapManageMembers); err != nil {
		return err
	}
	if role != models.RoleSuperAdmin {
		return nil
	}
	if p.SiteAdmin {
		return nil
	}
	membership, err := a.store.GetMembership(ctx, ns.ID, p.UserID)
	if err != nil {
		return err
	}
	if membership == nil || membership.Role != models.RoleSuperAdmin {
		return models.ErrForbidden
	}
	return nil
}

// limits is the resolved byte budget for one visibility pool.
type limits struct {
	namespaceBytes int64
	repoBytes      int64
	hasRepoLimit   bool
}

// effectiveLimits resolves the quota chain for a repository's
// visibility pool: repo policy where present, namespace policy, then
// server defaults. Zero resolves to unlimited.
func (a *Authorizer) effectiveLimits(ctx context.Context, repo *models.Repository) (limits, error) {
	var l limits

	nsPolicy, err := a.store.GetNamespaceQuota(ctx, repo.NamespaceID)
	if err != nil {
		return l, err
	}
	if nsPolicy != nil && nsPolicy.Mode == models.QuotaCustom {
		if repo.Private {
			l.namespaceBytes = nsPolicy.PrivateBytes
		} else {
			l.namespaceBytes = nsPolicy.PublicBytes
		}
	} else {
		if repo.Private {
			l.namespaceBytes = a.defaults.PrivateBytes
		} else {
			l.namespaceBytes = a.defaults.PublicBytes
		}
	}

	repoPolicy, err := a.store.GetRepoQuota(ctx, repo.ID)
	if err != nil {
		return l, err
	}
	if repoPolicy != nil && repoPolicy.Mode == models.QuotaCustom {
		l.hasRepoLimit = true
		if repo.Private {
			l.repoBytes = repoPolicy.PrivateBytes
		} else {
			l.repoBytes = repoPolicy.PublicBytes
		}
	}
	return l, nil
}

// CheckQuota verifies that adding delta bytes to a repository keeps the
// namespace pool and any repo-level budget within their limits. A zero
// or negative delta always passes.
func (a *Authorizer) CheckQuota(ctx context.Context, repo *models.Repository, delta int64) error {
	if delta <= 0 {
		return nil
	}

	l, err := a.effectiveLimits(ctx, repo)
	if err != nil {
		return err
	}

	ns, err := a.store.GetNamespaceByID(ctx, repo.NamespaceID)
	if err != nil {
		return err
	}
	used := ns.UsedPublicBytes
	if repo.Private {
		used = ns.UsedPrivateBytes
	}

	if l.namespaceBytes > 0 && used+delta > l.namespaceBytes {
		return models.ErrQuotaExceeded
	}
	if l.hasRepoLimit && l.repoBytes > 0 && repo.UsedBytes+delta > l.repoBytes {
		return models.ErrQuotaExceeded
	}
	return nil
}
