package webhooks

import (
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	domain "videostar-app/internal/domain/subscriptions"
)

var engine *domain.Engine

// Init wires the reconciliation engine; called once from route registration.
func Init(e *domain.Engine) {
	engine = e
}

// POST /webhooks/appstore
//
// Storefronts disable webhook endpoints that keep erroring, so reconcile
// failures are logged and acknowledged with 200. Apple's own retry plus the
// expiry sweep are the recovery mechanism for anything we drop.
func AppStoreWebhook(c *gin.Context) {
	payload, err := readBody(c, 1<<20)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Error reading request body"})
		return
	}

	if err := engine.HandleAppStoreNotification(payload); err != nil {
		log.Printf("webhooks: app store notification not applied: %v", err)
	}
	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

// POST /webhooks/playstore
func PlayStoreWebhook(c *gin.Context) {
	payload, err := readBody(c, 1<<20)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Error reading request body"})
		return
	}

	if err := engine.HandlePlayNotification(payload); err != nil {
		log.Printf("webhooks: play notification not applied: %v", err)
	}
	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

func readBody(c *gin.Context, maxBytes int64) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
	return io.ReadAll(c.Request.Body)
}
