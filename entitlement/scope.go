package entitlement

import (
	"gorm.io/gorm"
)

// TenantFilter returns a query scope restricting reads to the caller's
// client. Super admins always get an unrestricted scope.
func TenantFilter(rc *RequestContext) func(*gorm.DB) *gorm.DB {
	if rc != nil && rc.IsSuperAdmin() {
		return func(db *gorm.DB) *gorm.DB { return db }
	}
	return func(db *gorm.DB) *gorm.DB {
		if rc == nil || rc.Client == nil {
			// No resolved tenant: match nothing rather than everything.
			return db.Where("1 = 0")
		}
		return db.Where("client_id = ?", rc.Client.ID)
	}
}

// ValidateOwnership fails with Forbidden when a non-super-admin caller
// targets data belonging to a different client.
func ValidateOwnership(rc *RequestContext, targetClientID uint) error {
	if rc != nil && rc.IsSuperAdmin() {
		return nil
	}
	if rc == nil || rc.Client == nil {
		return ErrMissingTenant
	}
	if rc.Client.ID != targetClientID {
		return ErrForbidden
	}
	return nil
}
