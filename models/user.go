package models

import (
	"gorm.io/gorm"
)

// User represents a user account in the system
type User struct {
	gorm.Model

	// Authentication fields
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`

	// Google OAuth fields
	GoogleID       *string `gorm:"uniqueIndex" json:"google_id,omitempty"`
	GoogleImageURL *string `json:"google_image_url,omitempty"`

	// Profile information
	Name     *string `json:"name,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	Timezone string  `gorm:"default:'UTC'" json:"timezone"`

	// Account status. Users are never hard-deleted; access is revoked by
	// flipping IsActive.
	IsActive     bool `gorm:"default:true" json:"is_active"`
	IsSuperAdmin bool `gorm:"default:false" json:"is_super_admin"`

	// Relations
	Memberships []ClientUser `gorm:"foreignKey:UserID" json:"memberships,omitempty"`
}

// Sanitize strips credential material before the record leaves the server.
func (u *User) Sanitize() {
	u.PasswordHash = ""
}
