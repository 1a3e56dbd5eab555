package middleware

import (
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"realnext/entitlement"
	"realnext/store"
	"realnext/utils"
)

// Locals keys set by the gate.
const (
	LocalsAuthContext = "authContext"
	LocalsUser        = "user"
)

// Gate is the request-scoped authorization orchestrator: it verifies the
// credential, loads the user and membership, resolves entitlements and
// attaches the resulting context for downstream handlers.
type Gate struct {
	codec       *utils.TokenCodec
	users       store.UserStore
	clients     store.ClientStore
	memberships store.MembershipStore
	resolver    *entitlement.Resolver
	evaluator   *entitlement.Evaluator
	logger      *log.Logger
}

func NewGate(
	codec *utils.TokenCodec,
	users store.UserStore,
	clients store.ClientStore,
	memberships store.MembershipStore,
	resolver *entitlement.Resolver,
	evaluator *entitlement.Evaluator,
	logger *log.Logger,
) *Gate {
	return &Gate{
		codec:       codec,
		users:       users,
		clients:     clients,
		memberships: memberships,
		resolver:    resolver,
		evaluator:   evaluator,
		logger:      logger,
	}
}

// Protected requires a valid credential on every request.
func (g *Gate) Protected() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return g.authenticate(c, false)
	}
}

// Optional lets unauthenticated requests through with no context attached.
// A credential that is presented must still be fully valid; partial or
// garbage credentials are rejected even here.
func (g *Gate) Optional() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return g.authenticate(c, true)
	}
}

func (g *Gate) authenticate(c *fiber.Ctx, optional bool) error {
	token := extractToken(c)
	if token == "" {
		if optional {
			return c.Next()
		}
		return deny(c, fiber.StatusUnauthorized, entitlement.ErrInvalidCredential)
	}

	claims, err := g.codec.Verify(token)
	if err != nil {
		if errors.Is(err, utils.ErrTokenExpired) {
			return deny(c, fiber.StatusUnauthorized, entitlement.ErrExpiredCredential)
		}
		return deny(c, fiber.StatusUnauthorized, entitlement.ErrInvalidCredential)
	}

	user, err := g.users.FindByID(c.Context(), claims.UserID)
	if err != nil {
		return g.internalError(c, "auth_user_load_failed", err)
	}
	if user == nil {
		return deny(c, fiber.StatusUnauthorized, entitlement.ErrInvalidCredential)
	}
	if !user.IsActive {
		return deny(c, fiber.StatusForbidden, entitlement.ErrAccountSuspended)
	}
	user.Sanitize()

	// No active tenant claim: authenticated but tenant-less. Routes that
	// need tenant scope re-check via RequireTenant.
	if claims.ClientID == nil {
		return g.attach(c, &entitlement.RequestContext{User: user})
	}

	membership, err := g.memberships.FindByUserAndClient(c.Context(), user.ID, *claims.ClientID)
	if err != nil {
		return g.internalError(c, "auth_membership_load_failed", err)
	}
	if membership == nil {
		// The token claims a tenant the user no longer belongs to.
		utils.LogEvent("membership_missing_for_claimed_client", map[string]interface{}{
			"user_id":   user.ID,
			"client_id": *claims.ClientID,
		})
		return g.attach(c, &entitlement.RequestContext{User: user})
	}

	client, err := g.clients.FindClientByID(c.Context(), *claims.ClientID)
	if err != nil {
		return g.internalError(c, "auth_client_load_failed", err)
	}
	if client == nil {
		utils.LogEvent("client_missing_for_membership", map[string]interface{}{
			"user_id":   user.ID,
			"client_id": *claims.ClientID,
		})
		return g.attach(c, &entitlement.RequestContext{User: user})
	}

	if !client.IsActive() && !user.IsSuperAdmin {
		return deny(c, fiber.StatusForbidden, entitlement.ErrTenantInactive)
	}

	ent := g.resolver.Resolve(c.Context(), client, user, membership)
	rc := &entitlement.RequestContext{
		User:          user,
		Client:        client,
		Membership:    membership,
		Permissions:   g.evaluator.PermissionSet(c.Context(), membership),
		Features:      ent.Features,
		FeatureLimits: ent.Limits,
	}
	return g.attach(c, rc)
}

func (g *Gate) attach(c *fiber.Ctx, rc *entitlement.RequestContext) error {
	c.Locals(LocalsAuthContext, rc)
	c.Locals(LocalsUser, rc.User)
	return c.Next()
}

func (g *Gate) internalError(c *fiber.Ctx, errorType string, err error) error {
	g.logger.Printf("%s: %v", errorType, err)
	utils.LogError(errorType, err, map[string]interface{}{
		"path": c.Path(),
	})
	// Store-level detail stays server-side.
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Internal server error",
	})
}

func extractToken(c *fiber.Ctx) string {
	authHeader := c.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
		// A malformed header counts as a presented-but-invalid credential.
		return authHeader
	}
	return c.Cookies("access_token")
}

// AuthContext returns the resolved context for the request, or nil when the
// request is unauthenticated.
func AuthContext(c *fiber.Ctx) *entitlement.RequestContext {
	rc, _ := c.Locals(LocalsAuthContext).(*entitlement.RequestContext)
	return rc
}

func deny(c *fiber.Ctx, status int, accessErr *entitlement.AccessError) error {
	return c.Status(status).JSON(accessErr)
}
