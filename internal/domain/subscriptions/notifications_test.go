package subscriptions

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"videostar-app/internal/domain/plans"
	"videostar-app/internal/domain/users"
	"videostar-app/internal/infra/storefront"
)

func appStorePayload(t *testing.T, notificationType, originalTxnID string, expiresAt time.Time) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{
		"notification_type":       notificationType,
		"original_transaction_id": originalTxnID,
		"unified_receipt": map[string]interface{}{
			"latest_receipt": "refreshed-receipt",
			"latest_receipt_info": []map[string]string{
				{
					"original_transaction_id": originalTxnID,
					"expires_date_ms":         strconv.FormatInt(expiresAt.UnixMilli(), 10),
				},
			},
		},
	})
	require.NoError(t, err)
	return raw
}

func playPayload(t *testing.T, notificationType int, purchaseToken string) []byte {
	t.Helper()
	inner, err := json.Marshal(map[string]interface{}{
		"version":         "1.0",
		"packageName":     "com.app.android",
		"eventTimeMillis": strconv.FormatInt(time.Now().UnixMilli(), 10),
		"subscriptionNotification": map[string]interface{}{
			"version":          "1.0",
			"notificationType": notificationType,
			"purchaseToken":    purchaseToken,
			"subscriptionId":   "pro_monthly",
		},
	})
	require.NoError(t, err)

	envelope, err := json.Marshal(map[string]interface{}{
		"message": map[string]string{
			"data":      base64.StdEncoding.EncodeToString(inner),
			"messageId": "msg-1",
		},
		"subscription": "projects/app/subscriptions/rtdn",
	})
	require.NoError(t, err)
	return envelope
}

func activateForUser(t *testing.T, engine *Engine, userID uint, storefrontName string) *Subscription {
	t.Helper()
	sub, _, err := engine.VerifyReceipt(context.Background(), userID, storefrontName, "receipt-blob")
	require.NoError(t, err)
	return sub
}

func TestAppStoreRenewalExtendsWindow(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)
	seedPlan(t, db)

	verifier := &fakeVerifier{result: &storefront.VerificationResult{
		ProductID:              "com.app.pro.monthly",
		PlatformSubscriptionID: "orig_txn_1",
		ExpiresAt:              time.Now().Add(24 * time.Hour),
		IsAutoRenewing:         true,
	}}
	engine, cache := newTestEngine(db, verifier)
	activateForUser(t, engine, user.ID, plans.StorefrontAppStore)

	newExpiry := time.Now().Add(31 * 24 * time.Hour).Truncate(time.Second)
	err := engine.HandleAppStoreNotification(appStorePayload(t, "DID_RENEW", "orig_txn_1", newExpiry))
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&Subscription{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	var sub Subscription
	require.NoError(t, db.Where("platform_subscription_id = ?", "orig_txn_1").First(&sub).Error)
	assert.Equal(t, StatusActive, sub.Status)
	assert.Equal(t, "refreshed-receipt", sub.LatestReceipt)
	assert.WithinDuration(t, newExpiry, sub.ExpiresAt, time.Second)

	assert.Contains(t, cache.invalidated, user.ID)
}

func TestAppStoreRevokeCancelsAndDowngrades(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)
	seedPlan(t, db)

	verifier := &fakeVerifier{result: &storefront.VerificationResult{
		ProductID:              "com.app.pro.monthly",
		PlatformSubscriptionID: "orig_txn_1",
		ExpiresAt:              time.Now().Add(24 * time.Hour),
	}}
	engine, cache := newTestEngine(db, verifier)
	activateForUser(t, engine, user.ID, plans.StorefrontAppStore)
	cache.invalidated = nil

	payload := appStorePayload(t, "REVOKE", "orig_txn_1", time.Now())
	require.NoError(t, engine.HandleAppStoreNotification(payload))

	var sub Subscription
	require.NoError(t, db.Where("platform_subscription_id = ?", "orig_txn_1").First(&sub).Error)
	assert.Equal(t, StatusCancelled, sub.Status)
	require.NotNil(t, sub.CancelledAt)

	fresh, err := users.Lookup(db, user.ID)
	require.NoError(t, err)
	assert.Equal(t, users.TierFree, fresh.Tier)
	assert.Contains(t, cache.invalidated, user.ID)

	// Duplicate delivery stays a no-op for the row and keeps the user free.
	require.NoError(t, engine.HandleAppStoreNotification(payload))
	fresh, err = users.Lookup(db, user.ID)
	require.NoError(t, err)
	assert.Equal(t, users.TierFree, fresh.Tier)
}

func TestAppStoreBillingFailureAndExpiry(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)
	seedPlan(t, db)

	verifier := &fakeVerifier{result: &storefront.VerificationResult{
		ProductID:              "com.app.pro.monthly",
		PlatformSubscriptionID: "orig_txn_1",
		ExpiresAt:              time.Now().Add(24 * time.Hour),
		IsAutoRenewing:         true,
	}}
	engine, _ := newTestEngine(db, verifier)
	activateForUser(t, engine, user.ID, plans.StorefrontAppStore)

	require.NoError(t, engine.HandleAppStoreNotification(
		appStorePayload(t, "DID_FAIL_TO_RENEW", "orig_txn_1", time.Now())))

	var sub Subscription
	require.NoError(t, db.Where("platform_subscription_id = ?", "orig_txn_1").First(&sub).Error)
	assert.Equal(t, StatusBillingRetry, sub.Status)

	// Still entitled while the store retries the charge.
	status, err := engine.Status(user.ID)
	require.NoError(t, err)
	assert.True(t, status.HasActiveSubscription)

	require.NoError(t, engine.HandleAppStoreNotification(
		appStorePayload(t, "EXPIRED", "orig_txn_1", time.Now())))

	require.NoError(t, db.Where("platform_subscription_id = ?", "orig_txn_1").First(&sub).Error)
	assert.Equal(t, StatusExpired, sub.Status)

	fresh, err := users.Lookup(db, user.ID)
	require.NoError(t, err)
	assert.Equal(t, users.TierFree, fresh.Tier)
}

func TestAppStoreUnknownTypeAndUnknownRowAreNoOps(t *testing.T) {
	db := newTestDB(t)
	seedPlan(t, db)
	engine, _ := newTestEngine(db, &fakeVerifier{})

	require.NoError(t, engine.HandleAppStoreNotification(
		appStorePayload(t, "CONSUMPTION_REQUEST", "orig_txn_1", time.Now())))

	// A notification must never create a row on its own.
	require.NoError(t, engine.HandleAppStoreNotification(
		appStorePayload(t, "DID_RENEW", "orig_txn_unseen", time.Now())))

	var count int64
	require.NoError(t, db.Model(&Subscription{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestAppStoreNotificationRejectsGarbage(t *testing.T) {
	db := newTestDB(t)
	engine, _ := newTestEngine(db, &fakeVerifier{})

	require.Error(t, engine.HandleAppStoreNotification([]byte("{not json")))
	require.Error(t, engine.HandleAppStoreNotification([]byte(`{"notification_type":"DID_RENEW"}`)))
}

func TestPlayRenewalReverifiesStoredReceipt(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)
	seedPlan(t, db)

	verifier := &fakeVerifier{result: &storefront.VerificationResult{
		ProductID:              "pro_monthly",
		PlatformSubscriptionID: "token-abc",
		ExpiresAt:              time.Now().Add(24 * time.Hour),
		IsAutoRenewing:         true,
	}}
	engine, _ := newTestEngine(db, verifier)
	activateForUser(t, engine, user.ID, plans.StorefrontPlayStore)
	require.Equal(t, 1, verifier.calls)

	newExpiry := time.Now().Add(31 * 24 * time.Hour).Truncate(time.Second)
	verifier.result.ExpiresAt = newExpiry

	// Type 2 is SUBSCRIPTION_RENEWED.
	require.NoError(t, engine.HandlePlayNotification(playPayload(t, 2, "token-abc")))
	assert.Equal(t, 2, verifier.calls)

	var sub Subscription
	require.NoError(t, db.Where("platform_subscription_id = ?", "token-abc").First(&sub).Error)
	assert.Equal(t, StatusActive, sub.Status)
	assert.WithinDuration(t, newExpiry, sub.ExpiresAt, time.Second)
}

func TestPlayRevokeCancelsRow(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)
	seedPlan(t, db)

	verifier := &fakeVerifier{result: &storefront.VerificationResult{
		ProductID:              "pro_monthly",
		PlatformSubscriptionID: "token-abc",
		ExpiresAt:              time.Now().Add(24 * time.Hour),
	}}
	engine, _ := newTestEngine(db, verifier)
	activateForUser(t, engine, user.ID, plans.StorefrontPlayStore)

	// Type 12 is SUBSCRIPTION_REVOKED.
	require.NoError(t, engine.HandlePlayNotification(playPayload(t, 12, "token-abc")))

	var sub Subscription
	require.NoError(t, db.Where("platform_subscription_id = ?", "token-abc").First(&sub).Error)
	assert.Equal(t, StatusCancelled, sub.Status)

	fresh, err := users.Lookup(db, user.ID)
	require.NoError(t, err)
	assert.Equal(t, users.TierFree, fresh.Tier)
}

func TestPlayNotificationSkipsNonSubscriptionEvents(t *testing.T) {
	db := newTestDB(t)
	engine, _ := newTestEngine(db, &fakeVerifier{})

	inner := []byte(`{"version":"1.0","packageName":"com.app.android","eventTimeMillis":"1700000000000","testNotification":{"version":"1.0"}}`)
	envelope := fmt.Sprintf(`{"message":{"data":%q,"messageId":"msg-2"},"subscription":"projects/app/subscriptions/rtdn"}`,
		base64.StdEncoding.EncodeToString(inner))

	require.NoError(t, engine.HandlePlayNotification([]byte(envelope)))

	// Unknown purchase tokens are skipped, not created.
	require.NoError(t, engine.HandlePlayNotification(playPayload(t, 2, "token-unseen")))

	var count int64
	require.NoError(t, db.Model(&Subscription{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestPlayNotificationRejectsBadEnvelope(t *testing.T) {
	db := newTestDB(t)
	engine, _ := newTestEngine(db, &fakeVerifier{})

	require.Error(t, engine.HandlePlayNotification([]byte("{not json")))
	require.Error(t, engine.HandlePlayNotification(
		[]byte(`{"message":{"data":"%%%not-base64%%%","messageId":"msg-3"}}`)))
}
