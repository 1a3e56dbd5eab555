package models

import (
	"gorm.io/gorm"
)

const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleUser    = "user"
)

// ClientUser joins a user to a client with a role. Exactly one membership may
// exist per (client, user) pair.
type ClientUser struct {
	gorm.Model
	ClientID uint `gorm:"not null;uniqueIndex:uk_client_user,priority:1" json:"client_id"`
	UserID   uint `gorm:"not null;uniqueIndex:uk_client_user,priority:2;index" json:"user_id"`

	// Role is the coarse legacy role. A custom Role may refine it.
	Role   string `gorm:"default:'user'" json:"role"` // admin, manager, user
	RoleID *uint  `json:"role_id,omitempty"`

	// Permissions granted directly on the membership, merged with the
	// role-derived set at request time.
	Permissions StringList `gorm:"type:jsonb" json:"permissions"`

	// IsOwner marks the member that created the client. Owners cannot be
	// demoted or removed.
	IsOwner bool `gorm:"default:false" json:"is_owner"`

	// Restriction lists for non-admin members. Empty lists mean the member
	// has access to nothing, not everything.
	AssignedFeatures StringList `gorm:"type:jsonb" json:"assigned_features"`
	AssignedModules  StringList `gorm:"type:jsonb" json:"assigned_modules"`

	// Relations
	Client     Client `json:"-"`
	User       User   `json:"-"`
	CustomRole *Role  `gorm:"foreignKey:RoleID" json:"custom_role,omitempty"`
}

// IsAdmin reports whether this membership skips per-member feature
// restriction. Owners are always admins regardless of the stored role.
func (m *ClientUser) IsAdmin() bool {
	return m.IsOwner || m.Role == RoleAdmin
}
