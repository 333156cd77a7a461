package subscriptions

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	domain "videostar-app/internal/domain/subscriptions"
	"videostar-app/internal/infra/storefront"
)

var engine *domain.Engine

// Init wires the reconciliation engine; called once from route registration.
func Init(e *domain.Engine) {
	engine = e
}

type verifyRequest struct {
	Storefront string `json:"storefront" binding:"required"`
	Receipt    string `json:"receipt" binding:"required"`
}

// POST /subscriptions/verify
func VerifyReceipt(c *gin.Context) {
	handleVerify(c, "Subscription activated")
}

// POST /subscriptions/restore
// Restoring purchases is the same operation as verifying: the storefront is
// the source of truth and a cancelled row may legitimately come back active.
func RestorePurchases(c *gin.Context) {
	handleVerify(c, "Purchases restored")
}

func handleVerify(c *gin.Context, successMessage string) {
	userID := c.GetUint("user_id")
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not identified"})
		return
	}

	var body verifyRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing storefront or receipt"})
		return
	}

	sub, created, err := engine.VerifyReceipt(c.Request.Context(), userID, body.Storefront, body.Receipt)
	if err != nil {
		respondVerifyError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      successMessage,
		"created":      created,
		"subscription": sub,
	})
}

// GET /subscriptions/status
func GetStatus(c *gin.Context) {
	userID := c.GetUint("user_id")
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not identified"})
		return
	}

	status, err := engine.Status(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load subscription status"})
		return
	}

	c.JSON(http.StatusOK, status)
}

// POST /subscriptions/:id/cancel
func CancelSubscription(c *gin.Context) {
	userID := c.GetUint("user_id")
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not identified"})
		return
	}

	subID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid subscription id"})
		return
	}

	sub, err := engine.Cancel(userID, uint(subID))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrSubscriptionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Subscription not found"})
		case errors.Is(err, domain.ErrNotCancellable):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Subscription cannot be cancelled in its current state"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to cancel subscription"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      "Subscription cancelled",
		"subscription": sub,
	})
}

// respondVerifyError keeps the caller-facing taxonomy honest: rejected
// receipts are the client's problem (400), missing plans are ours (404), an
// unreachable storefront is retryable (502).
func respondVerifyError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrUnknownStorefront):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown storefront"})
	case errors.Is(err, domain.ErrReceiptCancelled):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Receipt belongs to a cancelled subscription"})
	case errors.Is(err, storefront.ErrInvalidReceipt):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid receipt"})
	case errors.Is(err, domain.ErrPlanNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "No plan matches this purchase"})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": "Verification service unavailable, please retry"})
	}
}
