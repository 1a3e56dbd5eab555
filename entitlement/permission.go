package entitlement

import (
	"context"
	"strings"

	"realnext/models"
	"realnext/store"
)

// systemRoleNames maps legacy membership roles to the system roles used as a
// fallback for tenants that never adopted custom roles. The mapping is
// explicit rather than derived by string casing.
var systemRoleNames = map[string]string{
	models.RoleAdmin:   "Admin",
	models.RoleManager: "Manager",
	models.RoleUser:    "User",
}

// PermissionWildcard grants every permission code.
const PermissionWildcard = "*"

// Evaluator builds the merged permission set for a membership. Matching over
// an already-built set is pure; see HasPermission.
type Evaluator struct {
	roles store.RoleStore
}

func NewEvaluator(roles store.RoleStore) *Evaluator {
	return &Evaluator{roles: roles}
}

// PermissionSet returns the deduplicated union of the role-derived codes and
// the membership's direct grants. The linked custom role wins when present;
// otherwise the legacy role name falls back to the matching system role. A
// missing role resolves to only the direct grants, never to an error.
func (e *Evaluator) PermissionSet(ctx context.Context, membership *models.ClientUser) map[string]struct{} {
	set := map[string]struct{}{}
	if membership == nil {
		return set
	}

	var role *models.Role
	var err error
	if membership.CustomRole != nil {
		role = membership.CustomRole
	} else if membership.RoleID != nil {
		role, err = e.roles.FindRoleByID(ctx, *membership.RoleID)
	} else if name, ok := systemRoleNames[membership.Role]; ok {
		role, err = e.roles.FindSystemRoleByName(ctx, name)
	}
	if err == nil && role != nil {
		for _, code := range role.Permissions {
			set[code] = struct{}{}
		}
	}

	for _, code := range membership.Permissions {
		set[code] = struct{}{}
	}
	return set
}

// HasPermission reports whether the caller may perform the action identified
// by code. Super admins and client owners always pass. A code matches when
// present verbatim, when the namespace admin wildcard "<ns>:admin" is held,
// or when the global "*" is held.
func HasPermission(rc *RequestContext, code string) bool {
	if rc == nil {
		return false
	}
	if rc.IsSuperAdmin() || rc.IsOwner() {
		return true
	}
	return matchPermission(rc.Permissions, code)
}

// HasAnyPermission reports whether any one of the codes matches.
func HasAnyPermission(rc *RequestContext, codes ...string) bool {
	if rc == nil {
		return false
	}
	if rc.IsSuperAdmin() || rc.IsOwner() {
		return true
	}
	for _, code := range codes {
		if matchPermission(rc.Permissions, code) {
			return true
		}
	}
	return false
}

func matchPermission(set map[string]struct{}, code string) bool {
	if _, ok := set[PermissionWildcard]; ok {
		return true
	}
	if _, ok := set[code]; ok {
		return true
	}
	if ns, _, found := strings.Cut(code, ":"); found {
		if _, ok := set[ns+":admin"]; ok {
			return true
		}
	}
	return false
}
