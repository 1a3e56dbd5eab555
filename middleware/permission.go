package middleware

import (
	"github.com/gofiber/fiber/v2"

	"realnext/entitlement"
)

// RequirePermission rejects the request unless the caller holds the
// permission code (or a matching wildcard).
func RequirePermission(code string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rc := AuthContext(c)
		if rc == nil || !rc.HasTenant() {
			return deny(c, fiber.StatusForbidden, entitlement.ErrMissingTenant)
		}
		if !entitlement.HasPermission(rc, code) {
			return deny(c, fiber.StatusForbidden, entitlement.ErrForbidden)
		}
		return c.Next()
	}
}

// RequireAnyPermission passes when any one of the codes matches.
func RequireAnyPermission(codes ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rc := AuthContext(c)
		if rc == nil || !rc.HasTenant() {
			return deny(c, fiber.StatusForbidden, entitlement.ErrMissingTenant)
		}
		if !entitlement.HasAnyPermission(rc, codes...) {
			return deny(c, fiber.StatusForbidden, entitlement.ErrForbidden)
		}
		return c.Next()
	}
}

// RequireRole restricts a route to the given membership roles. Super admins
// always pass.
func RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rc := AuthContext(c)
		if rc == nil {
			return deny(c, fiber.StatusUnauthorized, entitlement.ErrInvalidCredential)
		}
		if rc.IsSuperAdmin() {
			return c.Next()
		}
		if !rc.HasTenant() {
			return deny(c, fiber.StatusForbidden, entitlement.ErrMissingTenant)
		}
		for _, role := range roles {
			if rc.Membership.Role == role {
				return c.Next()
			}
		}
		return deny(c, fiber.StatusForbidden, entitlement.ErrForbidden)
	}
}
