package playstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	oauthjwt "golang.org/x/oauth2/jwt"

	"videostar-app/config"
	"videostar-app/internal/infra/storefront"
)

const androidPublisherScope = "https://www.googleapis.com/auth/androidpublisher"

// Refresh the access token a minute before Google says it expires, so an
// in-flight API call never rides on a token that dies mid-request.
const tokenExpirySkew = 60 * time.Second

type Client struct {
	ServiceAccountEmail string
	PrivateKey          []byte
	TokenURL            string
	APIBaseURL          string

	HTTPClient *http.Client

	tokens *tokenCache
}

func NewClientFromEnv() *Client {
	return &Client{
		ServiceAccountEmail: config.GOOGLE_SA_EMAIL,
		PrivateKey:          []byte(config.GOOGLE_SA_PRIVATE_KEY),
		TokenURL:            config.GOOGLE_TOKEN_URL,
		APIBaseURL:          strings.TrimRight(config.GOOGLE_PLAY_API_URL, "/"),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		tokens: &tokenCache{},
	}
}

// Receipt is the structured payload Android clients submit. Unlike the App
// Store blob it is not opaque: the purchase token alone identifies the
// renewal chain.
type Receipt struct {
	PackageName   string `json:"packageName"`
	ProductID     string `json:"productId"`
	PurchaseToken string `json:"purchaseToken"`
}

type subscriptionStatus struct {
	Kind             string `json:"kind"`
	StartTimeMillis  string `json:"startTimeMillis"`
	ExpiryTimeMillis string `json:"expiryTimeMillis"`
	AutoRenewing     bool   `json:"autoRenewing"`
	CancelReason     *int   `json:"cancelReason,omitempty"`
	PaymentState     *int   `json:"paymentState,omitempty"`
}

// Verify parses the structured receipt and queries the Play Developer API
// for the live subscription state.
func (c *Client) Verify(ctx context.Context, receipt string) (*storefront.VerificationResult, error) {
	var r Receipt
	if err := json.Unmarshal([]byte(receipt), &r); err != nil {
		return nil, fmt.Errorf("play receipt is not valid JSON: %w", storefront.ErrInvalidReceipt)
	}
	if r.PackageName == "" || r.ProductID == "" || r.PurchaseToken == "" {
		return nil, fmt.Errorf("play receipt missing packageName/productId/purchaseToken: %w", storefront.ErrInvalidReceipt)
	}

	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("play token exchange failed: %w", err)
	}

	url := fmt.Sprintf("%s/androidpublisher/v3/applications/%s/purchases/subscriptions/%s/tokens/%s",
		c.APIBaseURL, r.PackageName, r.ProductID, r.PurchaseToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("play subscription status request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		// Google rejected the token/product combination itself.
		return nil, fmt.Errorf("play rejected purchase (status=%d body=%s): %w",
			resp.StatusCode, string(raw), storefront.ErrInvalidReceipt)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("play subscription status returned status=%d body=%s", resp.StatusCode, string(raw))
	}

	var status subscriptionStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, fmt.Errorf("play subscription status unparseable: %w", err)
	}

	expiryMS, err := strconv.ParseInt(status.ExpiryTimeMillis, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad expiryTimeMillis %q: %w", status.ExpiryTimeMillis, storefront.ErrInvalidReceipt)
	}

	return &storefront.VerificationResult{
		ProductID:              r.ProductID,
		PlatformSubscriptionID: r.PurchaseToken,
		ExpiresAt:              time.UnixMilli(expiryMS),
		IsAutoRenewing:         status.AutoRenewing,
		IsCancelled:            status.CancelReason != nil,
	}, nil
}

// accessToken returns a cached bearer token, exchanging a service-account
// signed assertion when the cache is stale. Concurrent misses may each fetch
// their own token; that is idempotent and cheaper than serializing callers.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	if tok := c.tokens.get(); tok != "" {
		return tok, nil
	}

	conf := &oauthjwt.Config{
		Email:      c.ServiceAccountEmail,
		PrivateKey: c.PrivateKey,
		Scopes:     []string{androidPublisherScope},
		TokenURL:   c.TokenURL,
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.HTTPClient)

	tok, err := conf.TokenSource(ctx).Token()
	if err != nil {
		return "", err
	}

	c.tokens.put(tok.AccessToken, tok.Expiry)
	return tok.AccessToken, nil
}
