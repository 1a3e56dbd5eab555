package models

import (
	"gorm.io/gorm"
)

// Role is a named bundle of permission codes. A nil ClientID marks a system
// role shared by every tenant; system roles cannot be edited or deleted.
type Role struct {
	gorm.Model
	ClientID *uint  `gorm:"index" json:"client_id,omitempty"`
	Name     string `gorm:"not null" json:"name"`

	Permissions StringList `gorm:"type:jsonb" json:"permissions"`
	IsSystem    bool       `gorm:"default:false" json:"is_system"`
}

// Permission is a catalog entry. Roles reference permissions by code only, so
// a stale code in a role simply never matches.
type Permission struct {
	gorm.Model
	Code     string `gorm:"uniqueIndex;not null" json:"code"`
	Name     string `gorm:"not null" json:"name"`
	Category string `json:"category"`
}
