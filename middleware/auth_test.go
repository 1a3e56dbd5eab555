package middleware

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"realnext/entitlement"
	"realnext/models"
	"realnext/utils"
)

// fakeStore backs every store interface the gate consumes.
type fakeStore struct {
	users       map[uint]*models.User
	clients     map[uint]*models.Client
	memberships map[uint]map[uint]*models.ClientUser // userID -> clientID
	subs        map[uint]*models.Subscription
	systemRoles map[string]*models.Role
	err         error
}

func (f *fakeStore) FindByID(ctx context.Context, id uint) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.users[id], nil
}

func (f *fakeStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) FindByUserAndClient(ctx context.Context, userID, clientID uint) (*models.ClientUser, error) {
	return f.memberships[userID][clientID], nil
}

func (f *fakeStore) FindClientByID(ctx context.Context, id uint) (*models.Client, error) {
	return f.clients[id], nil
}

func (f *fakeStore) FindCurrent(ctx context.Context, clientID uint) (*models.Subscription, error) {
	return f.subs[clientID], nil
}

func (f *fakeStore) FindRoleByID(ctx context.Context, id uint) (*models.Role, error) {
	return nil, nil
}

func (f *fakeStore) FindSystemRoleByName(ctx context.Context, name string) (*models.Role, error) {
	return f.systemRoles[name], nil
}

type testClock struct {
	t time.Time
}

func (c testClock) Now() time.Time { return c.t }

const testSecret = "test-secret"

// newFixture builds a store with one active client (id 1) whose plan grants
// leads, one member user (id 1) assigned the lms module, and one suspended
// user (id 2).
func newFixture() *fakeStore {
	member := &models.User{Email: "member@example.com", IsActive: true}
	member.ID = 1
	suspended := &models.User{Email: "gone@example.com", IsActive: false}
	suspended.ID = 2

	client := &models.Client{Status: models.ClientStatusActive}
	client.ID = 1
	inactive := &models.Client{Status: models.ClientStatusInactive}
	inactive.ID = 2

	sub := &models.Subscription{
		Status: models.SubscriptionStatusActive,
		Plan: models.Plan{
			PlanFeatures: []models.PlanFeature{{
				IsEnabled: true,
				Feature:   models.Feature{Code: "leads", IsEnabled: true},
			}},
		},
	}

	return &fakeStore{
		users:   map[uint]*models.User{1: member, 2: suspended},
		clients: map[uint]*models.Client{1: client, 2: inactive},
		memberships: map[uint]map[uint]*models.ClientUser{
			1: {
				1: {ClientID: 1, UserID: 1, Role: models.RoleUser, AssignedModules: models.StringList{"lms"}},
				2: {ClientID: 2, UserID: 1, Role: models.RoleUser},
			},
		},
		subs: map[uint]*models.Subscription{1: sub},
		systemRoles: map[string]*models.Role{
			"User": {Name: "User", IsSystem: true, Permissions: models.StringList{"leads:read"}},
		},
	}
}

func newTestApp(s *fakeStore, now time.Time) (*fiber.App, *Gate, *utils.TokenCodec) {
	codec := utils.NewTokenCodec(testSecret, testClock{now})
	gate := NewGate(
		codec, s, s, s,
		entitlement.NewResolver(s),
		entitlement.NewEvaluator(s),
		log.New(io.Discard, "", 0),
	)
	return fiber.New(), gate, codec
}

func issueToken(t *testing.T, codec *utils.TokenCodec, s *fakeStore, userID uint, clientID *uint) string {
	t.Helper()
	var membership *models.ClientUser
	if clientID != nil {
		membership = &models.ClientUser{ClientID: *clientID, Role: models.RoleUser}
	}
	access, _, err := codec.Issue(s.users[userID], membership)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return access
}

func doRequest(t *testing.T, app *fiber.App, token string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	return resp
}

func denialCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body.Code
}

func ok(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusOK)
}

func TestProtectedMissingCredential(t *testing.T) {
	app, gate, _ := newTestApp(newFixture(), time.Now())
	app.Get("/probe", gate.Protected(), ok)

	resp := doRequest(t, app, "")
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("status: got %d", resp.StatusCode)
	}
	if code := denialCode(t, resp); code != entitlement.KindInvalidCredential {
		t.Fatalf("code: got %s", code)
	}
}

func TestProtectedExpiredCredential(t *testing.T) {
	s := newFixture()
	issuedAt := time.Now().Add(-2 * time.Hour)
	issuer := utils.NewTokenCodec(testSecret, testClock{issuedAt})
	token, _, err := issuer.Issue(s.users[1], nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	app, gate, _ := newTestApp(s, time.Now())
	app.Get("/probe", gate.Protected(), ok)

	resp := doRequest(t, app, token)
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("status: got %d", resp.StatusCode)
	}
	if code := denialCode(t, resp); code != entitlement.KindExpiredCredential {
		t.Fatalf("expired and invalid must be distinguishable, got %s", code)
	}
}

func TestProtectedTamperedCredential(t *testing.T) {
	s := newFixture()
	app, gate, codec := newTestApp(s, time.Now())
	app.Get("/probe", gate.Protected(), ok)

	token := issueToken(t, codec, s, 1, nil)
	resp := doRequest(t, app, token+"x")
	if code := denialCode(t, resp); code != entitlement.KindInvalidCredential {
		t.Fatalf("code: got %s", code)
	}
}

func TestProtectedMalformedHeader(t *testing.T) {
	app, gate, _ := newTestApp(newFixture(), time.Now())
	app.Get("/probe", gate.Protected(), ok)

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("Authorization", "Token abc123")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("status: got %d", resp.StatusCode)
	}
}

func TestProtectedCookieFallback(t *testing.T) {
	s := newFixture()
	app, gate, codec := newTestApp(s, time.Now())
	app.Get("/probe", gate.Protected(), ok)

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: issueToken(t, codec, s, 1, nil)})
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status: got %d", resp.StatusCode)
	}
}

func TestProtectedUnknownUser(t *testing.T) {
	s := newFixture()
	app, gate, _ := newTestApp(s, time.Now())
	app.Get("/probe", gate.Protected(), ok)

	ghost := &models.User{}
	ghost.ID = 99
	token, _, err := utils.NewTokenCodec(testSecret, testClock{time.Now()}).Issue(ghost, nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	resp := doRequest(t, app, token)
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("status: got %d", resp.StatusCode)
	}
}

func TestProtectedSuspendedUser(t *testing.T) {
	s := newFixture()
	app, gate, codec := newTestApp(s, time.Now())
	app.Get("/probe", gate.Protected(), ok)

	resp := doRequest(t, app, issueToken(t, codec, s, 2, nil))
	if resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("status: got %d", resp.StatusCode)
	}
	if code := denialCode(t, resp); code != entitlement.KindAccountSuspended {
		t.Fatalf("code: got %s", code)
	}
}

func TestProtectedStoreFailure(t *testing.T) {
	s := newFixture()
	app, gate, codec := newTestApp(s, time.Now())
	app.Get("/probe", gate.Protected(), ok)

	token := issueToken(t, codec, s, 1, nil)
	s.err = io.ErrUnexpectedEOF

	resp := doRequest(t, app, token)
	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("status: got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != `{"error":"Internal server error"}` {
		t.Fatalf("store detail must not leak: %s", body)
	}
}

func TestProtectedNoTenantClaim(t *testing.T) {
	// A token without a client id authenticates but resolves no tenant;
	// tenant-scoped routes then deny with a tenant-context code.
	s := newFixture()
	app, gate, codec := newTestApp(s, time.Now())
	app.Get("/probe", gate.Protected(), func(c *fiber.Ctx) error {
		rc := AuthContext(c)
		if rc == nil || rc.User == nil {
			t.Errorf("expected an authenticated context")
		}
		if rc.HasTenant() {
			t.Errorf("no tenant should be resolved")
		}
		return ok(c)
	})
	app.Get("/scoped", gate.Protected(), RequireTenant(), ok)

	if resp := doRequest(t, app, issueToken(t, codec, s, 1, nil)); resp.StatusCode != fiber.StatusOK {
		t.Fatalf("plain route: got %d", resp.StatusCode)
	}

	req := httptest.NewRequest(http.MethodGet, "/scoped", nil)
	req.Header.Set("Authorization", "Bearer "+issueToken(t, codec, s, 1, nil))
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("scoped route: got %d", resp.StatusCode)
	}
	if code := denialCode(t, resp); code != entitlement.KindMissingTenantContext {
		t.Fatalf("code: got %s", code)
	}
}

func TestProtectedStaleMembershipClaim(t *testing.T) {
	// Token still names client 1 but the membership row is gone. The request
	// proceeds tenant-less instead of failing.
	s := newFixture()
	delete(s.memberships[1], 1)
	app, gate, codec := newTestApp(s, time.Now())
	app.Get("/probe", gate.Protected(), func(c *fiber.Ctx) error {
		if AuthContext(c).HasTenant() {
			t.Errorf("stale claim must not resolve a tenant")
		}
		return ok(c)
	})

	resp := doRequest(t, app, issueToken(t, codec, s, 1, utils.Pointer(uint(1))))
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status: got %d", resp.StatusCode)
	}
}

func TestProtectedInactiveTenant(t *testing.T) {
	s := newFixture()
	app, gate, codec := newTestApp(s, time.Now())
	app.Get("/probe", gate.Protected(), ok)

	resp := doRequest(t, app, issueToken(t, codec, s, 1, utils.Pointer(uint(2))))
	if resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("status: got %d", resp.StatusCode)
	}
	if code := denialCode(t, resp); code != entitlement.KindTenantInactive {
		t.Fatalf("code: got %s", code)
	}
}

func TestProtectedFullContext(t *testing.T) {
	s := newFixture()
	app, gate, codec := newTestApp(s, time.Now())
	app.Get("/probe", gate.Protected(), func(c *fiber.Ctx) error {
		rc := AuthContext(c)
		if !rc.HasTenant() {
			t.Errorf("expected tenant context")
		}
		if !rc.HasFeature("leads") {
			t.Errorf("plan-granted feature missing: %v", rc.Features)
		}
		if !entitlement.HasPermission(rc, "leads:read") {
			t.Errorf("system role permission missing: %v", rc.Permissions)
		}
		if rc.User.PasswordHash != "" {
			t.Errorf("password hash must be stripped before attach")
		}
		return ok(c)
	})

	s.users[1].PasswordHash = "bcrypt-blob"
	resp := doRequest(t, app, issueToken(t, codec, s, 1, utils.Pointer(uint(1))))
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status: got %d", resp.StatusCode)
	}
}

func TestOptionalModes(t *testing.T) {
	s := newFixture()
	app, gate, codec := newTestApp(s, time.Now())
	app.Get("/probe", gate.Optional(), func(c *fiber.Ctx) error {
		if AuthContext(c) != nil {
			return c.SendString("authed")
		}
		return c.SendString("anonymous")
	})

	// No credential passes through with no context.
	resp := doRequest(t, app, "")
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != fiber.StatusOK || string(body) != "anonymous" {
		t.Fatalf("got %d %q", resp.StatusCode, body)
	}

	// A valid credential attaches context.
	resp = doRequest(t, app, issueToken(t, codec, s, 1, nil))
	body, _ = io.ReadAll(resp.Body)
	if string(body) != "authed" {
		t.Fatalf("got %q", body)
	}

	// A presented-but-garbage credential is still rejected.
	resp = doRequest(t, app, "garbage")
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("got %d", resp.StatusCode)
	}
}

func TestRequireFeature(t *testing.T) {
	s := newFixture()
	app, gate, codec := newTestApp(s, time.Now())
	app.Get("/leads", gate.Protected(), RequireFeature("leads"), ok)
	app.Get("/campaigns", gate.Protected(), RequireFeature("campaigns"), ok)

	token := issueToken(t, codec, s, 1, utils.Pointer(uint(1)))
	for _, tc := range []struct {
		path string
		want int
	}{
		{"/leads", fiber.StatusOK},
		{"/campaigns", fiber.StatusForbidden},
	} {
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req, -1)
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		if resp.StatusCode != tc.want {
			t.Fatalf("%s: got %d, want %d", tc.path, resp.StatusCode, tc.want)
		}
	}
}

func TestRequirePermission(t *testing.T) {
	s := newFixture()
	app, gate, codec := newTestApp(s, time.Now())
	app.Get("/read", gate.Protected(), RequirePermission("leads:read"), ok)
	app.Get("/manage", gate.Protected(), RequirePermission("team:manage"), ok)
	app.Get("/either", gate.Protected(), RequireAnyPermission("team:manage", "leads:read"), ok)

	token := issueToken(t, codec, s, 1, utils.Pointer(uint(1)))
	for _, tc := range []struct {
		path string
		want int
	}{
		{"/read", fiber.StatusOK},
		{"/manage", fiber.StatusForbidden},
		{"/either", fiber.StatusOK},
	} {
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req, -1)
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		if resp.StatusCode != tc.want {
			t.Fatalf("%s: got %d, want %d", tc.path, resp.StatusCode, tc.want)
		}
	}
}

func TestRequireRole(t *testing.T) {
	s := newFixture()
	// Promote the member on client 1 to manager for this case.
	s.memberships[1][1].Role = models.RoleManager
	app, gate, codec := newTestApp(s, time.Now())
	app.Get("/admin", gate.Protected(), RequireRole(models.RoleAdmin), ok)
	app.Get("/staff", gate.Protected(), RequireRole(models.RoleAdmin, models.RoleManager), ok)

	token := issueToken(t, codec, s, 1, utils.Pointer(uint(1)))
	for _, tc := range []struct {
		path string
		want int
	}{
		{"/admin", fiber.StatusForbidden},
		{"/staff", fiber.StatusOK},
	} {
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req, -1)
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		if resp.StatusCode != tc.want {
			t.Fatalf("%s: got %d, want %d", tc.path, resp.StatusCode, tc.want)
		}
	}
}
