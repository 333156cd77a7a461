package appstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"videostar-app/config"
	"videostar-app/internal/infra/storefront"
)

// Apple returns this status when a sandbox receipt is sent to the production
// endpoint; the receipt must be retransmitted to the sandbox URL.
const statusSandboxReceipt = 21007

type Client struct {
	SharedSecret string
	VerifyURL    string
	SandboxURL   string

	HTTPClient *http.Client
}

func NewClientFromEnv() *Client {
	return &Client{
		SharedSecret: config.APPLE_SHARED_SECRET,
		VerifyURL:    config.APPLE_VERIFY_URL,
		SandboxURL:   config.APPLE_SANDBOX_URL,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// StatusError is a non-zero verifyReceipt status. It unwraps to
// ErrInvalidReceipt so callers can treat it as a rejected receipt rather
// than a transport failure.
type StatusError struct {
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("app store rejected receipt with status %d", e.Status)
}

func (e *StatusError) Unwrap() error { return storefront.ErrInvalidReceipt }

type verifyRequest struct {
	ReceiptData            string `json:"receipt-data"`
	Password               string `json:"password"`
	ExcludeOldTransactions bool   `json:"exclude-old-transactions"`
}

type verifyResponse struct {
	Status             int           `json:"status"`
	Environment        string        `json:"environment"`
	LatestReceipt      string        `json:"latest_receipt"`
	LatestReceiptInfo  []receiptInfo `json:"latest_receipt_info"`
	PendingRenewalInfo []renewalInfo `json:"pending_renewal_info"`
}

type receiptInfo struct {
	TransactionID         string `json:"transaction_id"`
	OriginalTransactionID string `json:"original_transaction_id"`
	ProductID             string `json:"product_id"`
	PurchaseDateMS        string `json:"purchase_date_ms"`
	ExpiresDateMS         string `json:"expires_date_ms"`
	CancellationDateMS    string `json:"cancellation_date_ms"`
}

type renewalInfo struct {
	OriginalTransactionID string `json:"original_transaction_id"`
	AutoRenewStatus       string `json:"auto_renew_status"`
}

// Verify submits the opaque receipt blob to Apple's verifyReceipt endpoint
// and normalizes the latest transaction of the renewal chain.
func (c *Client) Verify(ctx context.Context, receipt string) (*storefront.VerificationResult, error) {
	resp, err := c.post(ctx, c.VerifyURL, receipt)
	if err != nil {
		return nil, err
	}

	if resp.Status == statusSandboxReceipt {
		resp, err = c.post(ctx, c.SandboxURL, receipt)
		if err != nil {
			return nil, err
		}
	}

	if resp.Status != 0 {
		return nil, &StatusError{Status: resp.Status}
	}

	latest := latestTransaction(resp.LatestReceiptInfo)
	if latest == nil {
		return nil, fmt.Errorf("receipt has no subscription transactions: %w", storefront.ErrInvalidReceipt)
	}

	expiresAt, err := parseMillis(latest.ExpiresDateMS)
	if err != nil {
		return nil, fmt.Errorf("bad expires_date_ms %q: %w", latest.ExpiresDateMS, storefront.ErrInvalidReceipt)
	}

	result := &storefront.VerificationResult{
		ProductID:              latest.ProductID,
		PlatformSubscriptionID: latest.OriginalTransactionID,
		ExpiresAt:              expiresAt,
		IsCancelled:            latest.CancellationDateMS != "",
	}

	// The transaction block does not carry the live auto-renew flag; it lives
	// in the pending_renewal_info entry for the same renewal chain.
	for _, r := range resp.PendingRenewalInfo {
		if r.OriginalTransactionID == latest.OriginalTransactionID {
			result.IsAutoRenewing = r.AutoRenewStatus == "1"
			break
		}
	}

	return result, nil
}

func (c *Client) post(ctx context.Context, url, receipt string) (*verifyResponse, error) {
	body, err := json.Marshal(verifyRequest{
		ReceiptData:            receipt,
		Password:               c.SharedSecret,
		ExcludeOldTransactions: true,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("app store verify request failed: %w", err)
	}
	defer httpResp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, fmt.Errorf("app store verify returned status=%d body=%s", httpResp.StatusCode, string(raw))
	}

	var out verifyResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("app store verify returned unparseable body: %w", err)
	}
	return &out, nil
}

// latestTransaction picks the entry with the greatest expiry. Apple does not
// guarantee ordering of latest_receipt_info.
func latestTransaction(info []receiptInfo) *receiptInfo {
	var latest *receiptInfo
	var latestMS int64 = -1
	for i := range info {
		ms, err := strconv.ParseInt(info[i].ExpiresDateMS, 10, 64)
		if err != nil {
			continue
		}
		if ms > latestMS {
			latestMS = ms
			latest = &info[i]
		}
	}
	return latest
}

func parseMillis(ms string) (time.Time, error) {
	v, err := strconv.ParseInt(ms, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(v), nil
}
