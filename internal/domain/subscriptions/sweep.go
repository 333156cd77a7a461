package subscriptions

import (
	"log"
	"time"
)

// Sweep terminates subscriptions whose paid window lapsed without a renewal.
// It only downgrades a user when no other active, unexpired row remains, so
// someone mid-migration between plans keeps their tier. Returns the number
// of rows expired.
func (e *Engine) Sweep(now time.Time) (int, error) {
	var due []Subscription
	if err := e.DB.
		Where("status IN ? AND expires_at < ? AND auto_renew = ?", entitledStatuses, now, false).
		Find(&due).Error; err != nil {
		return 0, err
	}

	expired := 0
	affected := make(map[uint]struct{})

	for _, sub := range due {
		// Conditional on expiry too: a renewal landing between the select
		// and this write bumps expires_at and must win.
		tx := e.DB.Model(&Subscription{}).
			Where("storefront = ? AND platform_subscription_id = ?", sub.Storefront, sub.PlatformSubscriptionID).
			Where("status IN ? AND expires_at < ?", entitledStatuses, now).
			Update("status", StatusExpired)
		if tx.Error != nil {
			log.Printf("subscriptions: sweep failed to expire %s/%s: %v",
				sub.Storefront, sub.PlatformSubscriptionID, tx.Error)
			continue
		}
		if tx.RowsAffected > 0 {
			expired++
			affected[sub.UserID] = struct{}{}
		}
	}

	for userID := range affected {
		var stillActive int64
		if err := e.DB.Model(&Subscription{}).
			Where("user_id = ? AND status = ? AND expires_at > ?", userID, StatusActive, now).
			Count(&stillActive).Error; err != nil {
			log.Printf("subscriptions: sweep could not recheck user %d: %v", userID, err)
			continue
		}
		if stillActive == 0 {
			e.downgradeTier(userID)
		}
	}

	return expired, nil
}
