package middleware

import (
	"github.com/gofiber/fiber/v2"

	"realnext/entitlement"
)

// RequireTenant blocks handlers that need tenant scope from running against
// a tenant-less (or unauthenticated) request.
func RequireTenant() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rc := AuthContext(c)
		if rc == nil || !rc.HasTenant() {
			return deny(c, fiber.StatusForbidden, entitlement.ErrMissingTenant)
		}
		return c.Next()
	}
}

// RequireFeature rejects the request unless the feature resolved to enabled.
func RequireFeature(code string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rc := AuthContext(c)
		if rc == nil || !rc.HasTenant() {
			return deny(c, fiber.StatusForbidden, entitlement.ErrMissingTenant)
		}
		if !rc.HasFeature(code) {
			return deny(c, fiber.StatusForbidden, entitlement.ErrForbidden)
		}
		return c.Next()
	}
}

// RequireModule gates coarse module visibility. An explicit menu_access
// override in the client settings wins in either direction; otherwise the
// resolved feature map decides.
func RequireModule(code string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rc := AuthContext(c)
		if rc == nil || !rc.HasTenant() {
			return deny(c, fiber.StatusForbidden, entitlement.ErrMissingTenant)
		}
		if visible, ok := rc.Client.Settings.MenuAccess[code]; ok {
			if !visible && !rc.IsSuperAdmin() {
				return deny(c, fiber.StatusForbidden, entitlement.ErrForbidden)
			}
			return c.Next()
		}
		if !rc.HasFeature(code) {
			return deny(c, fiber.StatusForbidden, entitlement.ErrForbidden)
		}
		return c.Next()
	}
}
