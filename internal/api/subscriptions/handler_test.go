package subscriptions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"videostar-app/internal/domain/plans"
	domain "videostar-app/internal/domain/subscriptions"
	"videostar-app/internal/domain/users"
	"videostar-app/internal/infra/storefront"
)

var testDBCounter int64

type stubVerifier struct {
	result *storefront.VerificationResult
	err    error
}

func (s *stubVerifier) Verify(ctx context.Context, receipt string) (*storefront.VerificationResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	r := *s.result
	return &r, nil
}

func setupRouter(t *testing.T, verifier storefront.Verifier) (*gin.Engine, *gorm.DB, *users.User) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:subsapitest%d?mode=memory&cache=shared", atomic.AddInt64(&testDBCounter, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&users.User{}, &plans.Plan{}, &domain.Subscription{}))

	user := &users.User{Name: "Dana", Email: "dana@example.com", Role: "user", Tier: users.TierFree}
	require.NoError(t, db.Create(user).Error)
	require.NoError(t, db.Create(&plans.Plan{
		Name:            "Pro Monthly",
		AppleProductID:  "com.app.pro.monthly",
		GoogleProductID: "pro_monthly",
		PriceUSD:        9.99,
		DurationMonths:  1,
		Active:          true,
	}).Error)

	Init(domain.NewEngine(db, map[string]storefront.Verifier{
		plans.StorefrontAppStore: verifier,
	}, nil))

	r := gin.New()
	authed := r.Group("/")
	authed.Use(func(c *gin.Context) {
		c.Set("user_id", user.ID)
		c.Next()
	})
	authed.POST("/subscriptions/verify", VerifyReceipt)
	authed.POST("/subscriptions/restore", RestorePurchases)
	authed.GET("/subscriptions/status", GetStatus)
	authed.POST("/subscriptions/:id/cancel", CancelSubscription)

	return r, db, user
}

func postJSON(r *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestVerifyEndpointActivates(t *testing.T) {
	verifier := &stubVerifier{result: &storefront.VerificationResult{
		ProductID:              "com.app.pro.monthly",
		PlatformSubscriptionID: "orig_txn_1",
		ExpiresAt:              time.Now().Add(30 * 24 * time.Hour),
		IsAutoRenewing:         true,
	}}
	r, db, user := setupRouter(t, verifier)

	w := postJSON(r, "/subscriptions/verify", gin.H{
		"storefront": plans.StorefrontAppStore,
		"receipt":    "receipt-blob",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Created      bool                 `json:"created"`
		Subscription *domain.Subscription `json:"subscription"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Created)
	assert.Equal(t, domain.StatusActive, resp.Subscription.Status)

	fresh, err := users.Lookup(db, user.ID)
	require.NoError(t, err)
	assert.Equal(t, users.TierPro, fresh.Tier)
}

func TestVerifyEndpointValidation(t *testing.T) {
	r, _, _ := setupRouter(t, &stubVerifier{})

	w := postJSON(r, "/subscriptions/verify", gin.H{"storefront": plans.StorefrontAppStore})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(r, "/subscriptions/verify", gin.H{"receipt": "blob"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVerifyEndpointErrorTaxonomy(t *testing.T) {
	cases := []struct {
		name       string
		storefront string
		err        error
		want       int
	}{
		{"invalid receipt", plans.StorefrontAppStore, fmt.Errorf("status 21003: %w", storefront.ErrInvalidReceipt), http.StatusBadRequest},
		{"unknown storefront", "amazon", nil, http.StatusBadRequest},
		{"transport failure", plans.StorefrontAppStore, fmt.Errorf("verify request failed: connection refused"), http.StatusBadGateway},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			verifier := &stubVerifier{err: tc.err}
			if tc.err == nil {
				verifier.result = &storefront.VerificationResult{
					ProductID:              "com.app.pro.monthly",
					PlatformSubscriptionID: "orig_txn_1",
					ExpiresAt:              time.Now().Add(time.Hour),
				}
			}
			r, _, _ := setupRouter(t, verifier)

			w := postJSON(r, "/subscriptions/verify", gin.H{
				"storefront": tc.storefront,
				"receipt":    "blob",
			})
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestVerifyEndpointPlanNotFound(t *testing.T) {
	verifier := &stubVerifier{result: &storefront.VerificationResult{
		ProductID:              "com.app.unknown",
		PlatformSubscriptionID: "orig_txn_1",
		ExpiresAt:              time.Now().Add(time.Hour),
	}}
	r, _, _ := setupRouter(t, verifier)

	w := postJSON(r, "/subscriptions/verify", gin.H{
		"storefront": plans.StorefrontAppStore,
		"receipt":    "blob",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStatusAndCancelEndpoints(t *testing.T) {
	verifier := &stubVerifier{result: &storefront.VerificationResult{
		ProductID:              "com.app.pro.monthly",
		PlatformSubscriptionID: "orig_txn_1",
		ExpiresAt:              time.Now().Add(30 * 24 * time.Hour),
		IsAutoRenewing:         true,
	}}
	r, _, _ := setupRouter(t, verifier)

	req := httptest.NewRequest(http.MethodGet, "/subscriptions/status", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var status domain.StatusResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.False(t, status.HasActiveSubscription)

	postJSON(r, "/subscriptions/verify", gin.H{
		"storefront": plans.StorefrontAppStore,
		"receipt":    "receipt-blob",
	})

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/subscriptions/status", nil))
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	require.True(t, status.HasActiveSubscription)
	require.NotNil(t, status.Subscription)

	path := fmt.Sprintf("/subscriptions/%d/cancel", status.Subscription.ID)
	w = postJSON(r, path, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Second cancel is rejected.
	w = postJSON(r, path, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(r, "/subscriptions/424242/cancel", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = postJSON(r, "/subscriptions/not-a-number/cancel", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
