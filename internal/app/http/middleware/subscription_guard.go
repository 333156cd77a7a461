package middleware

import (
	"net/http"
	"time"

	"videostar-app/database"
	"videostar-app/internal/domain/subscriptions"

	"github.com/gin-gonic/gin"
)

// RequireEntitledSubscription gates routes that only make sense for a user
// who currently holds an entitled subscription row. Cancelled rows do not
// count, even inside their paid window.
func RequireEntitledSubscription() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint("user_id")
		if userID == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not identified"})
			return
		}

		var sub subscriptions.Subscription
		err := database.DB.
			Where("user_id = ? AND status IN ?", userID, subscriptions.EntitledStatuses()).
			Order("expires_at DESC").
			First(&sub).Error
		if err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Subscription not found or expired",
			})
			return
		}

		if sub.Status == subscriptions.StatusActive && time.Now().After(sub.ExpiresAt) {
			c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{
				"error": "Your subscription has expired",
			})
			return
		}

		c.Next()
	}
}
