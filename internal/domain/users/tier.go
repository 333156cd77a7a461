package users

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ProfileCacheKey is the cache key under which /me responses are stored.
// Everything that changes a user's entitlement must delete this key.
func ProfileCacheKey(userID uint) string {
	return fmt.Sprintf("user:profile:%d", userID)
}

// Lookup fetches a user by id.
func Lookup(db *gorm.DB, id uint) (*User, error) {
	var user User
	if err := db.Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// SetTier updates the denormalized entitlement fields in one write.
// Safe to apply repeatedly, since webhook delivery and the sweeper may both
// attempt the same downgrade.
func SetTier(db *gorm.DB, id uint, tier string, expiresAt *time.Time) error {
	updates := map[string]interface{}{
		"tier":            tier,
		"tier_expires_at": expiresAt,
	}
	return db.Model(&User{}).Where("id = ?", id).Updates(updates).Error
}
