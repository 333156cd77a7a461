package subscriptions

import "errors"

var (
	ErrUnknownStorefront    = errors.New("unknown storefront")
	ErrReceiptCancelled     = errors.New("receipt reports a cancelled subscription")
	ErrPlanNotFound         = errors.New("no plan matches the verified product")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrNotCancellable       = errors.New("subscription is not in a cancellable state")
)
