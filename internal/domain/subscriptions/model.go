package subscriptions

import (
	"time"

	"videostar-app/internal/domain/plans"
)

// Subscription status values. "cancelled" stops counting toward entitlement
// immediately, even inside the paid window.
const (
	StatusActive       = "active"
	StatusCancelled    = "cancelled"
	StatusExpired      = "expired"
	StatusGracePeriod  = "grace_period"
	StatusBillingRetry = "billing_retry"
)

// entitledStatuses are the statuses that grant the paid tier.
var entitledStatuses = []string{StatusActive, StatusGracePeriod, StatusBillingRetry}

// EntitledStatuses returns a copy of the entitled status set for callers
// outside this package.
func EntitledStatuses() []string {
	return append([]string(nil), entitledStatuses...)
}

// IsEntitled reports whether a status grants the paid tier.
func IsEntitled(status string) bool {
	for _, s := range entitledStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Subscription is one renewal chain at one storefront. The natural key is
// (storefront, platform_subscription_id); re-verification and notifications
// update the row in place, they never insert a second one. Rows are kept
// forever for audit.
type Subscription struct {
	ID     uint        `gorm:"primaryKey" json:"id"`
	UserID uint        `gorm:"index" json:"user_id"`
	PlanID uint        `json:"plan_id"`
	Plan   *plans.Plan `json:"plan,omitempty"`

	Storefront             string `gorm:"type:varchar(20);not null;uniqueIndex:idx_subscriptions_platform_key" json:"storefront"`
	PlatformSubscriptionID string `gorm:"not null;uniqueIndex:idx_subscriptions_platform_key" json:"platform_subscription_id"`

	LatestReceipt string `gorm:"type:text" json:"-"`
	Status        string `gorm:"type:varchar(20);not null;index" json:"status"`

	StartsAt    time.Time  `json:"starts_at"`
	ExpiresAt   time.Time  `gorm:"index" json:"expires_at"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	AutoRenew   bool       `json:"auto_renew"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
