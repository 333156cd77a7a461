package users

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"videostar-app/database"
	"videostar-app/internal/domain/users"
	"videostar-app/internal/infra/cache"
)

const profileCacheTTL = 5 * time.Minute

type meResponse struct {
	ID            uint       `json:"id"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	Role          string     `json:"role"`
	Tier          string     `json:"tier"`
	TierExpiresAt *time.Time `json:"tier_expires_at,omitempty"`
}

// GET /me
// The response is cached per user; tier changes invalidate the entry, so a
// downgrade is visible on the next request rather than at TTL.
func GetCurrentUser(c *gin.Context) {
	userID := c.GetUint("user_id")
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	key := users.ProfileCacheKey(userID)
	if cached, err := cache.Get(key); err == nil && cached != "" {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(cached))
		return
	}

	user, err := users.Lookup(database.DB, userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	resp := meResponse{
		ID:            user.ID,
		Name:          user.Name,
		Email:         user.Email,
		Role:          user.Role,
		Tier:          user.Tier,
		TierExpiresAt: user.TierExpiresAt,
	}

	if body, err := json.Marshal(resp); err == nil {
		if err := cache.Set(key, body, profileCacheTTL); err != nil {
			log.Printf("users: failed to cache profile for user %d: %v", userID, err)
		}
	}

	c.JSON(http.StatusOK, resp)
}
