package subscriptions

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"gorm.io/gorm"

	"videostar-app/internal/domain/plans"
)

// AppStoreNotification is the server-to-server notification envelope Apple
// POSTs to our webhook. Typed JSON, no extra decode step.
type AppStoreNotification struct {
	NotificationType      string         `json:"notification_type"`
	OriginalTransactionID string         `json:"original_transaction_id"`
	AutoRenewStatus       string         `json:"auto_renew_status"`
	UnifiedReceipt        unifiedReceipt `json:"unified_receipt"`
}

type unifiedReceipt struct {
	LatestReceipt     string              `json:"latest_receipt"`
	LatestReceiptInfo []notificationEntry `json:"latest_receipt_info"`
}

type notificationEntry struct {
	OriginalTransactionID string `json:"original_transaction_id"`
	ExpiresDateMS         string `json:"expires_date_ms"`
}

// playPushEnvelope is the pub/sub push wrapper around a Play developer
// notification. The actual notification is base64 inside message.data.
type playPushEnvelope struct {
	Message struct {
		Data      string `json:"data"`
		MessageID string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

type playDeveloperNotification struct {
	Version                  string `json:"version"`
	PackageName              string `json:"packageName"`
	EventTimeMillis          string `json:"eventTimeMillis"`
	SubscriptionNotification *struct {
		Version          string `json:"version"`
		NotificationType int    `json:"notificationType"`
		PurchaseToken    string `json:"purchaseToken"`
		SubscriptionID   string `json:"subscriptionId"`
	} `json:"subscriptionNotification"`
}

// HandleAppStoreNotification reconciles one App Store server notification.
// Unknown types and unknown subscription ids are no-ops: the notification
// may race ahead of the initial verify, and we never fabricate a row from a
// webhook alone.
func (e *Engine) HandleAppStoreNotification(raw []byte) error {
	var n AppStoreNotification
	if err := json.Unmarshal(raw, &n); err != nil {
		return fmt.Errorf("undecodable app store notification: %w", err)
	}

	event, ok := appStoreEvents[n.NotificationType]
	if !ok {
		log.Printf("subscriptions: ignoring app store notification type %q", n.NotificationType)
		return nil
	}

	platformID := n.OriginalTransactionID
	if platformID == "" && len(n.UnifiedReceipt.LatestReceiptInfo) > 0 {
		platformID = n.UnifiedReceipt.LatestReceiptInfo[0].OriginalTransactionID
	}
	if platformID == "" {
		return errors.New("app store notification carries no original_transaction_id")
	}

	sub, err := e.findByPlatformID(plans.StorefrontAppStore, platformID)
	if err != nil {
		return err
	}
	if sub == nil {
		log.Printf("subscriptions: app store notification %q for unknown subscription %s, skipping",
			n.NotificationType, platformID)
		return nil
	}

	var newExpiry *time.Time
	if t, ok := latestNotificationExpiry(n.UnifiedReceipt.LatestReceiptInfo); ok {
		newExpiry = &t
	}

	return e.applyEvent(sub, event, newExpiry, n.UnifiedReceipt.LatestReceipt)
}

// HandlePlayNotification reconciles one Play real-time developer
// notification. Play notifications carry no purchase detail, so renewal
// events re-run the verify adapter with the row's last-seen receipt.
func (e *Engine) HandlePlayNotification(raw []byte) error {
	var envelope playPushEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("undecodable pub/sub envelope: %w", err)
	}

	decoded, err := base64.StdEncoding.DecodeString(envelope.Message.Data)
	if err != nil {
		return fmt.Errorf("pub/sub message.data is not base64: %w", err)
	}

	var n playDeveloperNotification
	if err := json.Unmarshal(decoded, &n); err != nil {
		return fmt.Errorf("undecodable play developer notification: %w", err)
	}
	if n.SubscriptionNotification == nil {
		// Test notifications and one-time product events have no
		// subscriptionNotification block.
		log.Printf("subscriptions: play notification without subscription payload, skipping")
		return nil
	}

	sn := n.SubscriptionNotification
	event, ok := playEvents[sn.NotificationType]
	if !ok {
		log.Printf("subscriptions: ignoring play notification type %d", sn.NotificationType)
		return nil
	}

	sub, err := e.findByPlatformID(plans.StorefrontPlayStore, sn.PurchaseToken)
	if err != nil {
		return err
	}
	if sub == nil {
		log.Printf("subscriptions: play notification type %d for unknown purchase token, skipping",
			sn.NotificationType)
		return nil
	}

	if event == EventRenewed && sub.LatestReceipt != "" {
		// The notification has no expiry; the verify adapter fetches the
		// authoritative state and reactivates through the normal path.
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_, _, err := e.VerifyReceipt(ctx, sub.UserID, plans.StorefrontPlayStore, sub.LatestReceipt)
		return err
	}

	return e.applyEvent(sub, event, nil, "")
}

func (e *Engine) findByPlatformID(storefrontName, platformID string) (*Subscription, error) {
	var sub Subscription
	err := e.DB.Where("storefront = ? AND platform_subscription_id = ?", storefrontName, platformID).
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

// applyEvent runs one state-machine transition as a single conditional
// write, then applies the entitlement side effect. A transition whose
// from-state no longer matches is silently skipped, since a concurrent writer
// got there first.
func (e *Engine) applyEvent(sub *Subscription, event Event, newExpiry *time.Time, newReceipt string) error {
	key := e.DB.Model(&Subscription{}).
		Where("storefront = ? AND platform_subscription_id = ?", sub.Storefront, sub.PlatformSubscriptionID)

	switch event {
	case EventRenewed:
		updates := map[string]interface{}{"status": StatusActive}
		if newExpiry != nil {
			updates["expires_at"] = *newExpiry
		}
		if newReceipt != "" {
			updates["latest_receipt"] = newReceipt
		}
		tx := key.Where("status IN ?", entitledStatuses).Updates(updates)
		if tx.Error != nil {
			return tx.Error
		}
		if tx.RowsAffected > 0 {
			expiry := sub.ExpiresAt
			if newExpiry != nil {
				expiry = *newExpiry
			}
			e.upgradeTier(sub.UserID, expiry)
		}
		return nil

	case EventStoreCancelled:
		now := time.Now()
		tx := key.Where("status <> ?", StatusCancelled).Updates(map[string]interface{}{
			"status":       StatusCancelled,
			"cancelled_at": &now,
		})
		if tx.Error != nil {
			return tx.Error
		}
		// Refunds and revokes pull the tier immediately, and the downgrade
		// must survive duplicate delivery.
		e.downgradeTier(sub.UserID)
		return nil

	case EventBillingFailure:
		return key.Where("status = ?", StatusActive).
			Update("status", StatusBillingRetry).Error

	case EventGracePeriod:
		return key.Where("status = ?", StatusActive).
			Update("status", StatusGracePeriod).Error

	case EventExpired:
		tx := key.Where("status IN ?", []string{StatusBillingRetry, StatusGracePeriod}).
			Update("status", StatusExpired)
		if tx.Error != nil {
			return tx.Error
		}
		if tx.RowsAffected > 0 {
			e.downgradeTier(sub.UserID)
		}
		return nil
	}

	return fmt.Errorf("unhandled event %q", event)
}

func latestNotificationExpiry(entries []notificationEntry) (time.Time, bool) {
	var bestMS int64 = -1
	for _, entry := range entries {
		ms, err := strconv.ParseInt(entry.ExpiresDateMS, 10, 64)
		if err != nil {
			continue
		}
		if ms > bestMS {
			bestMS = ms
		}
	}
	if bestMS < 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(bestMS), true
}
