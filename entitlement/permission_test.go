package entitlement

import (
	"context"
	"errors"
	"testing"

	"realnext/models"
	"realnext/utils"
)

type fakeRoleStore struct {
	byID   map[uint]*models.Role
	system map[string]*models.Role
	err    error
}

func (f *fakeRoleStore) FindRoleByID(ctx context.Context, id uint) (*models.Role, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byID[id], nil
}

func (f *fakeRoleStore) FindSystemRoleByName(ctx context.Context, name string) (*models.Role, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.system[name], nil
}

func TestPermissionSetCustomRoleWins(t *testing.T) {
	e := NewEvaluator(&fakeRoleStore{
		system: map[string]*models.Role{"Admin": {Permissions: models.StringList{"*"}}},
	})
	membership := &models.ClientUser{
		Role:       models.RoleAdmin,
		CustomRole: &models.Role{Permissions: models.StringList{"leads:read"}},
	}

	set := e.PermissionSet(context.Background(), membership)

	if _, ok := set["leads:read"]; !ok {
		t.Fatalf("custom role permissions missing: %v", set)
	}
	if _, ok := set["*"]; ok {
		t.Fatalf("system role must not apply when a custom role is linked")
	}
}

func TestPermissionSetByRoleID(t *testing.T) {
	e := NewEvaluator(&fakeRoleStore{
		byID: map[uint]*models.Role{7: {Permissions: models.StringList{"campaigns:read", "campaigns:write"}}},
	})
	membership := &models.ClientUser{Role: models.RoleUser, RoleID: utils.Pointer(uint(7))}

	set := e.PermissionSet(context.Background(), membership)

	for _, code := range []string{"campaigns:read", "campaigns:write"} {
		if _, ok := set[code]; !ok {
			t.Fatalf("expected %s in %v", code, set)
		}
	}
}

func TestPermissionSetSystemFallback(t *testing.T) {
	e := NewEvaluator(&fakeRoleStore{
		system: map[string]*models.Role{
			"Admin": {Permissions: models.StringList{"*"}},
			"User":  {Permissions: models.StringList{"leads:read"}},
		},
	})

	tests := []struct {
		role string
		want string
	}{
		{models.RoleAdmin, "*"},
		{models.RoleUser, "leads:read"},
	}
	for _, tc := range tests {
		set := e.PermissionSet(context.Background(), &models.ClientUser{Role: tc.role})
		if _, ok := set[tc.want]; !ok {
			t.Errorf("role %s: expected %s in %v", tc.role, tc.want, set)
		}
	}
}

func TestPermissionSetUnknownRole(t *testing.T) {
	e := NewEvaluator(&fakeRoleStore{})
	membership := &models.ClientUser{
		Role:        "ghost",
		Permissions: models.StringList{"reports:read"},
	}

	set := e.PermissionSet(context.Background(), membership)

	if len(set) != 1 {
		t.Fatalf("unknown role must resolve to direct grants only, got %v", set)
	}
	if _, ok := set["reports:read"]; !ok {
		t.Fatalf("direct grant missing: %v", set)
	}
}

func TestPermissionSetDirectGrantsMerged(t *testing.T) {
	e := NewEvaluator(&fakeRoleStore{
		system: map[string]*models.Role{"User": {Permissions: models.StringList{"leads:read"}}},
	})
	membership := &models.ClientUser{
		Role:        models.RoleUser,
		Permissions: models.StringList{"reports:read", "leads:read"},
	}

	set := e.PermissionSet(context.Background(), membership)

	if len(set) != 2 {
		t.Fatalf("expected deduplicated union of size 2, got %v", set)
	}
}

func TestPermissionSetStoreError(t *testing.T) {
	e := NewEvaluator(&fakeRoleStore{err: errors.New("down")})
	membership := &models.ClientUser{
		Role:        models.RoleAdmin,
		Permissions: models.StringList{"leads:read"},
	}

	set := e.PermissionSet(context.Background(), membership)

	if len(set) != 1 {
		t.Fatalf("role lookup failure must leave only direct grants, got %v", set)
	}
}

func TestPermissionSetNilMembership(t *testing.T) {
	e := NewEvaluator(&fakeRoleStore{})
	if set := e.PermissionSet(context.Background(), nil); len(set) != 0 {
		t.Fatalf("expected empty set, got %v", set)
	}
}

func permSet(codes ...string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, code := range codes {
		set[code] = struct{}{}
	}
	return set
}

func TestHasPermissionMatching(t *testing.T) {
	tests := []struct {
		name string
		held []string
		code string
		want bool
	}{
		{"verbatim", []string{"leads:read"}, "leads:read", true},
		{"namespace admin", []string{"leads:admin"}, "leads:delete", true},
		{"global wildcard", []string{"*"}, "anything:at_all", true},
		{"no match", []string{"leads:read"}, "leads:write", false},
		{"wrong namespace admin", []string{"leads:admin"}, "campaigns:read", false},
		{"bare code no namespace", []string{"leads:admin"}, "leads", false},
		{"empty set", nil, "leads:read", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rc := &RequestContext{
				Membership:  &models.ClientUser{},
				Permissions: permSet(tc.held...),
			}
			if got := HasPermission(rc, tc.code); got != tc.want {
				t.Fatalf("held %v, code %s: got %v, want %v", tc.held, tc.code, got, tc.want)
			}
		})
	}
}

func TestHasPermissionSuperAdminBypass(t *testing.T) {
	rc := &RequestContext{
		User:        &models.User{IsSuperAdmin: true},
		Permissions: permSet(),
	}
	if !HasPermission(rc, "anything:at_all") {
		t.Fatalf("super admin must pass every permission check")
	}
}

func TestHasPermissionOwnerBypass(t *testing.T) {
	rc := &RequestContext{
		Membership:  &models.ClientUser{IsOwner: true},
		Permissions: permSet(),
	}
	if !HasPermission(rc, "billing:manage") {
		t.Fatalf("client owner must pass every permission check")
	}
}

func TestHasPermissionNilContext(t *testing.T) {
	if HasPermission(nil, "leads:read") {
		t.Fatalf("nil context must deny")
	}
}

func TestHasAnyPermission(t *testing.T) {
	rc := &RequestContext{
		Membership:  &models.ClientUser{},
		Permissions: permSet("team:read"),
	}
	if !HasAnyPermission(rc, "team:manage", "team:read") {
		t.Fatalf("one matching code should be enough")
	}
	if HasAnyPermission(rc, "roles:read", "roles:manage") {
		t.Fatalf("no code matches, must deny")
	}
	if HasAnyPermission(rc) {
		t.Fatalf("empty code list must deny")
	}
}
