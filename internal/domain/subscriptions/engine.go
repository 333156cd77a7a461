package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"videostar-app/internal/domain/plans"
	"videostar-app/internal/domain/users"
	"videostar-app/internal/infra/storefront"
)

// ProfileCache invalidates a user's cached profile after an entitlement
// change. Implemented by the redis cache in production and by fakes in tests.
type ProfileCache interface {
	InvalidateUser(userID uint)
}

// Engine reconciles verification results, storefront notifications and the
// periodic sweep into subscription rows. It holds no mutable state of its
// own; every transition is a single conditional write keyed by
// (storefront, platform_subscription_id), so concurrent writers converge
// instead of duplicating rows.
type Engine struct {
	DB        *gorm.DB
	Verifiers map[string]storefront.Verifier
	Cache     ProfileCache
}

func NewEngine(db *gorm.DB, verifiers map[string]storefront.Verifier, cache ProfileCache) *Engine {
	return &Engine{DB: db, Verifiers: verifiers, Cache: cache}
}

// VerifyReceipt runs the storefront adapter and activates (or reactivates)
// the subscription row. Calling it twice with the same receipt converges on
// the same row. Restore-purchase uses this same path, which is why
// cancelled -> active is allowed here.
func (e *Engine) VerifyReceipt(ctx context.Context, userID uint, storefrontName, receipt string) (*Subscription, bool, error) {
	verifier, ok := e.Verifiers[storefrontName]
	if !ok {
		return nil, false, fmt.Errorf("%w: %q", ErrUnknownStorefront, storefrontName)
	}

	result, err := verifier.Verify(ctx, receipt)
	if err != nil {
		return nil, false, err
	}

	if result.IsCancelled {
		return nil, false, fmt.Errorf("%w (product %s)", ErrReceiptCancelled, result.ProductID)
	}

	plan, err := plans.FindByProductID(e.DB, storefrontName, result.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, fmt.Errorf("%w: %s/%s", ErrPlanNotFound, storefrontName, result.ProductID)
		}
		return nil, false, err
	}

	sub, created, err := e.activate(userID, plan.ID, storefrontName, receipt, result)
	if err != nil {
		return nil, false, err
	}

	// Side effect only after the row write commits.
	e.upgradeTier(userID, result.ExpiresAt)

	return sub, created, nil
}

// activate upserts the row to active in one atomic write. The insert path
// creates the row; the conflict path refreshes owner, plan, receipt, window
// and clears any earlier cancellation.
func (e *Engine) activate(userID, planID uint, storefrontName, receipt string, result *storefront.VerificationResult) (*Subscription, bool, error) {
	var existing int64
	if err := e.DB.Model(&Subscription{}).
		Where("storefront = ? AND platform_subscription_id = ?", storefrontName, result.PlatformSubscriptionID).
		Count(&existing).Error; err != nil {
		return nil, false, err
	}

	sub := &Subscription{
		UserID:                 userID,
		PlanID:                 planID,
		Storefront:             storefrontName,
		PlatformSubscriptionID: result.PlatformSubscriptionID,
		LatestReceipt:          receipt,
		Status:                 StatusActive,
		StartsAt:               time.Now(),
		ExpiresAt:              result.ExpiresAt,
		AutoRenew:              result.IsAutoRenewing,
	}

	if err := e.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "storefront"},
			{Name: "platform_subscription_id"},
		},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"user_id":        userID,
			"plan_id":        planID,
			"latest_receipt": receipt,
			"status":         StatusActive,
			"expires_at":     result.ExpiresAt,
			"auto_renew":     result.IsAutoRenewing,
			"cancelled_at":   nil,
			"updated_at":     time.Now(),
		}),
	}).Create(sub).Error; err != nil {
		return nil, false, err
	}

	// Re-read so ID and the untouched starts_at are populated after the
	// conflict path.
	if err := e.DB.Preload("Plan").
		Where("storefront = ? AND platform_subscription_id = ?", storefrontName, result.PlatformSubscriptionID).
		First(sub).Error; err != nil {
		return nil, false, err
	}

	return sub, existing == 0, nil
}

// Cancel is the user-initiated cancellation: the row keeps its paid window
// but stops counting toward entitlement. The tier is left alone at cancel
// time; the sweep or a storefront notification finishes the job.
func (e *Engine) Cancel(userID, subscriptionID uint) (*Subscription, error) {
	var sub Subscription
	if err := e.DB.Where("id = ? AND user_id = ?", subscriptionID, userID).First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}

	now := time.Now()
	tx := e.DB.Model(&Subscription{}).
		Where("id = ? AND status IN ?", sub.ID, entitledStatuses).
		Updates(map[string]interface{}{
			"status":       StatusCancelled,
			"cancelled_at": &now,
		})
	if tx.Error != nil {
		return nil, tx.Error
	}
	if tx.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: status is %s", ErrNotCancellable, sub.Status)
	}

	sub.Status = StatusCancelled
	sub.CancelledAt = &now
	return &sub, nil
}

// StatusResult is what getStatus reports. Plan and Subscription are nil when
// the user holds no entitled row.
type StatusResult struct {
	HasActiveSubscription bool          `json:"has_active_subscription"`
	Subscription          *Subscription `json:"subscription,omitempty"`
	Plan                  *plans.Plan   `json:"plan,omitempty"`
}

// Status returns the user's best entitled subscription, if any.
func (e *Engine) Status(userID uint) (*StatusResult, error) {
	var sub Subscription
	err := e.DB.Preload("Plan").
		Where("user_id = ? AND status IN ?", userID, entitledStatuses).
		Order("expires_at DESC").
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &StatusResult{}, nil
		}
		return nil, err
	}

	return &StatusResult{
		HasActiveSubscription: true,
		Subscription:          &sub,
		Plan:                  sub.Plan,
	}, nil
}

// upgradeTier grants the paid tier and refreshes the cached profile.
func (e *Engine) upgradeTier(userID uint, expiresAt time.Time) {
	if err := users.SetTier(e.DB, userID, users.TierPro, &expiresAt); err != nil {
		log.Printf("subscriptions: failed to upgrade tier for user %d: %v", userID, err)
		return
	}
	e.invalidateProfile(userID)
}

// downgradeTier revokes the paid tier. Idempotent, since webhook delivery and
// the sweeper may both attempt the same downgrade.
func (e *Engine) downgradeTier(userID uint) {
	if err := users.SetTier(e.DB, userID, users.TierFree, nil); err != nil {
		log.Printf("subscriptions: failed to downgrade tier for user %d: %v", userID, err)
		return
	}
	e.invalidateProfile(userID)
}

func (e *Engine) invalidateProfile(userID uint) {
	if e.Cache != nil {
		e.Cache.InvalidateUser(userID)
	}
}
