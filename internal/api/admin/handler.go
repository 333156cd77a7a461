package admin

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"videostar-app/database"
	domain "videostar-app/internal/domain/subscriptions"
)

var engine *domain.Engine

// Init wires the reconciliation engine; called once from route registration.
func Init(e *domain.Engine) {
	engine = e
}

// GET /admin/subscriptions?user_id=&status=
// Audit listing. Subscription rows are never deleted, so this is the full
// history of every renewal chain we have seen.
func ListSubscriptions(c *gin.Context) {
	q := database.DB.Model(&domain.Subscription{}).Preload("Plan").Order("updated_at DESC")

	if raw := c.Query("user_id"); raw != "" {
		userID, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user_id"})
			return
		}
		q = q.Where("user_id = ?", uint(userID))
	}
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}

	var subs []domain.Subscription
	if err := q.Limit(200).Find(&subs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load subscriptions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"subscriptions": subs, "count": len(subs)})
}

// POST /admin/subscriptions/sweep
// Manual trigger for the expiry sweep, same code path as the scheduler.
func TriggerSweep(c *gin.Context) {
	expired, err := engine.Sweep(time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Sweep failed", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"expired": expired})
}
