package users

import (
	"time"
)

// Tier constants (single source of truth)
const (
	TierFree = "free"
	TierPro  = "pro"
)

type User struct {
	ID       uint `gorm:"primaryKey"`
	Name     string
	Email    string  `gorm:"not null;uniqueIndex:idx_users_email"`
	Password *string `gorm:""`
	Role     string

	// Denormalized entitlement for fast reads. The subscriptions table is
	// the source of truth; never trust this field for anything but display.
	Tier          string     `gorm:"type:varchar(20);not null;default:'free'"`
	TierExpiresAt *time.Time `gorm:"column:tier_expires_at"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
