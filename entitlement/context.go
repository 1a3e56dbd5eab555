package entitlement

import (
	"realnext/models"
)

// RequestContext is the resolved authorization context attached to a request
// by the auth middleware and consumed by route handlers and guards.
type RequestContext struct {
	User       *models.User
	Client     *models.Client
	Membership *models.ClientUser

	// Permissions is the merged, deduplicated permission set: the role's
	// codes plus the membership's direct grants.
	Permissions map[string]struct{}

	// Features and FeatureLimits are the Resolver's output.
	Features      map[string]bool
	FeatureLimits map[string]models.LimitMap
}

// HasTenant reports whether a client context was resolved for this request.
// Handlers that require tenant scope must check this before touching Client.
func (rc *RequestContext) HasTenant() bool {
	return rc.Client != nil && rc.Membership != nil
}

// IsSuperAdmin reports whether the caller bypasses tenant-scoped checks.
func (rc *RequestContext) IsSuperAdmin() bool {
	return rc.User != nil && rc.User.IsSuperAdmin
}

// IsOwner reports whether the caller owns the active client.
func (rc *RequestContext) IsOwner() bool {
	return rc.Membership != nil && rc.Membership.IsOwner
}

// HasFeature reports whether a feature resolved to enabled for this request.
func (rc *RequestContext) HasFeature(code string) bool {
	return rc.Features[code]
}

// FeatureLimit returns the plan limits for a feature, or nil when the plan
// sets none.
func (rc *RequestContext) FeatureLimit(code string) models.LimitMap {
	return rc.FeatureLimits[code]
}
