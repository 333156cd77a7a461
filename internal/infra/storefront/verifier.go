package storefront

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidReceipt marks a receipt the storefront actively rejected.
// Transport failures (timeouts, 5xx, unparseable bodies) are NOT wrapped in
// this; the caller may retry those, but never an invalid receipt.
var ErrInvalidReceipt = errors.New("receipt failed verification")

// VerificationResult is the canonical outcome of receipt verification,
// identical for both storefronts.
type VerificationResult struct {
	ProductID              string
	PlatformSubscriptionID string
	ExpiresAt              time.Time
	IsAutoRenewing         bool
	IsCancelled            bool
}

// Verifier is implemented once per storefront. Nothing outside the adapter
// selection point may branch on the storefront name.
type Verifier interface {
	Verify(ctx context.Context, receipt string) (*VerificationResult, error)
}
