package cache

import (
	"log"

	"videostar-app/internal/domain/users"
)

// UserProfiles is the redis-backed profile invalidator handed to the
// reconciliation engine. Invalidation failures are logged, never fatal: a
// stale cached profile corrects itself at TTL.
type UserProfiles struct{}

func (UserProfiles) InvalidateUser(userID uint) {
	if err := Delete(users.ProfileCacheKey(userID)); err != nil {
		log.Printf("cache: failed to invalidate profile for user %d: %v", userID, err)
	}
}
