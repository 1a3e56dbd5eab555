package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"realnext/models"
	"realnext/store"
)

var (
	// ErrSigningKeyMissing indicates process misconfiguration, not a bad token.
	ErrSigningKeyMissing = errors.New("jwt signing key is not configured")
	// ErrTokenExpired and ErrTokenInvalid are distinct so the auth gate can
	// return the matching failure kind.
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("invalid token")
)

type Claims struct {
	UserID   uint   `json:"user_id"`
	ClientID *uint  `json:"client_id,omitempty"`
	Role     string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenCodec issues and verifies signed session credentials. The signing key
// is fixed at construction and never rotated at runtime.
type TokenCodec struct {
	secret     []byte
	clock      store.Clock
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewTokenCodec(secret string, clock store.Clock) *TokenCodec {
	if clock == nil {
		clock = store.SystemClock{}
	}
	return &TokenCodec{
		secret:     []byte(secret),
		clock:      clock,
		accessTTL:  15 * time.Minute,
		refreshTTL: 7 * 24 * time.Hour,
	}
}

// Issue signs an access/refresh token pair for the user. When an active
// client is known the client id and role are embedded so the auth gate can
// restore tenant context without another login.
func (tc *TokenCodec) Issue(user *models.User, membership *models.ClientUser) (string, string, error) {
	if len(tc.secret) == 0 {
		return "", "", ErrSigningKeyMissing
	}

	now := tc.clock.Now()
	accessClaims := &Claims{
		UserID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(tc.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	refreshClaims := &Claims{
		UserID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(tc.refreshTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	if membership != nil {
		accessClaims.ClientID = &membership.ClientID
		accessClaims.Role = membership.Role
		refreshClaims.ClientID = &membership.ClientID
		refreshClaims.Role = membership.Role
	}

	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims).SignedString(tc.secret)
	if err != nil {
		return "", "", err
	}
	refreshToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims).SignedString(tc.secret)
	if err != nil {
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

// Verify parses and validates a token. Expired credentials fail with
// ErrTokenExpired; anything else malformed or tampered fails with
// ErrTokenInvalid.
func (tc *TokenCodec) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return tc.secret, nil
	}, jwt.WithTimeFunc(tc.clock.Now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
