package store

import (
	"context"
	"time"

	"realnext/models"
)

// Lookup interfaces consumed by the authorization layer. Implementations
// return (nil, nil) when a record does not exist; a non-nil error always
// means the read itself failed.

type UserStore interface {
	FindByID(ctx context.Context, id uint) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

type MembershipStore interface {
	FindByUserAndClient(ctx context.Context, userID, clientID uint) (*models.ClientUser, error)
}

type ClientStore interface {
	FindClientByID(ctx context.Context, id uint) (*models.Client, error)
}

// SubscriptionStore resolves the current subscription for a client with the
// full Plan -> PlanFeatures -> Feature chain loaded.
type SubscriptionStore interface {
	FindCurrent(ctx context.Context, clientID uint) (*models.Subscription, error)
}

type RoleStore interface {
	FindRoleByID(ctx context.Context, id uint) (*models.Role, error)
	// FindSystemRoleByName looks up a global role (client_id IS NULL).
	FindSystemRoleByName(ctx context.Context, name string) (*models.Role, error)
}

// Clock abstracts the time source so expiry checks are deterministic in tests.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
