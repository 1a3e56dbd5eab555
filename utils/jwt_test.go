package utils

import (
	"errors"
	"testing"
	"time"

	"realnext/models"
)

type fixedClock struct {
	t time.Time
}

func (c fixedClock) Now() time.Time { return c.t }

func testUser() *models.User {
	u := &models.User{Email: "sam@example.com"}
	u.ID = 42
	return u
}

func TestTokenRoundTrip(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	codec := NewTokenCodec("test-secret", fixedClock{now})
	membership := &models.ClientUser{ClientID: 7, Role: models.RoleManager}

	access, refresh, err := codec.Issue(testUser(), membership)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if access == "" || refresh == "" || access == refresh {
		t.Fatalf("expected two distinct tokens")
	}

	claims, err := codec.Verify(access)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != 42 {
		t.Fatalf("user id: got %d", claims.UserID)
	}
	if claims.ClientID == nil || *claims.ClientID != 7 {
		t.Fatalf("client id: got %v", claims.ClientID)
	}
	if claims.Role != models.RoleManager {
		t.Fatalf("role: got %q", claims.Role)
	}
}

func TestTokenWithoutMembership(t *testing.T) {
	codec := NewTokenCodec("test-secret", fixedClock{time.Now()})

	access, _, err := codec.Issue(testUser(), nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := codec.Verify(access)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.ClientID != nil || claims.Role != "" {
		t.Fatalf("expected no tenant claims, got client_id=%v role=%q", claims.ClientID, claims.Role)
	}
}

func TestExpiredTokenIsDistinguishable(t *testing.T) {
	issuedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	issuer := NewTokenCodec("test-secret", fixedClock{issuedAt})
	access, _, err := issuer.Issue(testUser(), nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	// Same key, clock advanced past the access TTL.
	verifier := NewTokenCodec("test-secret", fixedClock{issuedAt.Add(time.Hour)})
	if _, err := verifier.Verify(access); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}

	// A tampered token must never be reported as merely expired.
	if _, err := verifier.Verify(access + "x"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for tampered token, got %v", err)
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	clock := fixedClock{time.Now()}
	access, _, err := NewTokenCodec("key-one", clock).Issue(testUser(), nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := NewTokenCodec("key-two", clock).Verify(access); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	codec := NewTokenCodec("test-secret", fixedClock{time.Now()})
	for _, token := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := codec.Verify(token); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("token %q: expected ErrTokenInvalid, got %v", token, err)
		}
	}
}

func TestIssueWithoutSigningKey(t *testing.T) {
	codec := NewTokenCodec("", fixedClock{time.Now()})
	if _, _, err := codec.Issue(testUser(), nil); !errors.Is(err, ErrSigningKeyMissing) {
		t.Fatalf("expected ErrSigningKeyMissing, got %v", err)
	}
}
