package models

import (
	"database/sql/driver"
	"encoding/json"

	"gorm.io/gorm"
)

const (
	ClientStatusActive   = "active"
	ClientStatusInactive = "inactive"
)

// Client represents an organization (tenant) boundary. All business data is
// scoped to a client; an inactive client blocks every non-super-admin request.
type Client struct {
	gorm.Model

	Name   string `gorm:"not null" json:"name"`
	Status string `gorm:"default:'active'" json:"status"` // active, inactive

	// Settings holds per-tenant overrides that take precedence over
	// plan-derived entitlements.
	Settings ClientSettings `gorm:"type:jsonb" json:"settings"`

	// Relations
	Members       []ClientUser   `gorm:"foreignKey:ClientID" json:"members,omitempty"`
	Subscriptions []Subscription `gorm:"foreignKey:ClientID" json:"subscriptions,omitempty"`
}

// ClientSettings is a free-form settings document. MenuAccess controls coarse
// module visibility; Features overrides individual feature flags per key.
type ClientSettings struct {
	MenuAccess map[string]bool `json:"menu_access,omitempty"`
	Features   map[string]bool `json:"features,omitempty"`
}

func (s ClientSettings) Value() (driver.Value, error) {
	b, err := json.Marshal(s)
	return string(b), err
}

func (s *ClientSettings) Scan(value interface{}) error {
	return scanJSON(value, s)
}

// IsActive reports whether the client may be accessed by regular members.
func (c *Client) IsActive() bool {
	return c.Status == ClientStatusActive
}
