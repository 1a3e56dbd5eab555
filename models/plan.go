package models

import (
	"time"

	"gorm.io/gorm"
)

// Plan represents a priced product tier
type Plan struct {
	gorm.Model
	Name        string `gorm:"not null;uniqueIndex" json:"name"` // free, starter, growth, enterprise
	Description string `json:"description"`

	Price    int  `gorm:"not null" json:"price"` // in cents
	IsActive bool `gorm:"default:true" json:"is_active"`

	// For display purposes
	DisplayPrice string `gorm:"-" json:"display_price"` // e.g. "$20"
	IsPopular    bool   `gorm:"default:false" json:"is_popular"`

	StripePriceID   string `json:"stripe_price_id"`                           // price_xxx from Stripe dashboard
	BillingInterval string `json:"billing_interval" gorm:"default:'monthly'"` // monthly, yearly

	// Relations
	PlanFeatures []PlanFeature `gorm:"foreignKey:PlanID" json:"plan_features,omitempty"`
}

// Feature is a global catalog entry for a boolean-gated product module.
// Disabling a feature here turns it off for every plan that bundles it.
type Feature struct {
	gorm.Model
	Code        string `gorm:"uniqueIndex;not null" json:"code"`
	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`
	IsEnabled   bool   `gorm:"default:true" json:"is_enabled"`
}

// PlanFeature links a plan to a feature with per-plan usage limits.
type PlanFeature struct {
	gorm.Model
	PlanID    uint `gorm:"not null;index;uniqueIndex:uk_plan_feature,priority:1" json:"plan_id"`
	FeatureID uint `gorm:"not null;uniqueIndex:uk_plan_feature,priority:2" json:"feature_id"`

	IsEnabled bool     `gorm:"default:true" json:"is_enabled"`
	Limits    LimitMap `gorm:"type:jsonb" json:"limits"`

	// Relations
	Feature Feature `json:"feature"`
}

const (
	SubscriptionStatusTrial     = "trial"
	SubscriptionStatusActive    = "active"
	SubscriptionStatusPastDue   = "past_due"
	SubscriptionStatusSuspended = "suspended"
	SubscriptionStatusCancelled = "cancelled"
	SubscriptionStatusExpired   = "expired"
)

// Subscription links a client to a plan. At most one subscription is current
// per client: the newest row whose status is trial or active.
type Subscription struct {
	gorm.Model
	ClientID uint `gorm:"not null;index" json:"client_id"`
	PlanID   uint `gorm:"not null" json:"plan_id"`

	Status string `gorm:"default:'trial'" json:"status"`

	CurrentPeriodStart *time.Time `json:"current_period_start"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end"`

	StripeSubscriptionID string `gorm:"index" json:"stripe_subscription_id,omitempty"`

	// Relations
	Client Client `json:"-"`
	Plan   Plan   `json:"plan"`
}

// IsCurrent reports whether this subscription can grant entitlements.
func (s *Subscription) IsCurrent() bool {
	return s.Status == SubscriptionStatusTrial || s.Status == SubscriptionStatusActive
}
