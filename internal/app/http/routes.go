package routes

import (
	adminapi "videostar-app/internal/api/admin"
	authapi "videostar-app/internal/api/auth"
	plansapi "videostar-app/internal/api/plans"
	subscriptionsapi "videostar-app/internal/api/subscriptions"
	"videostar-app/internal/api/users"
	"videostar-app/internal/api/webhooks"
	"videostar-app/internal/app/http/middleware"
	"videostar-app/internal/domain/plans"
	"videostar-app/internal/domain/subscriptions"
	"videostar-app/internal/infra/appstore"
	"videostar-app/internal/infra/cache"
	"videostar-app/internal/infra/playstore"
	"videostar-app/internal/infra/storefront"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// BuildEngine wires the two storefront adapters and the profile cache into
// one reconciliation engine. This is the only place an adapter is selected.
func BuildEngine(db *gorm.DB) *subscriptions.Engine {
	verifiers := map[string]storefront.Verifier{
		plans.StorefrontAppStore:  appstore.NewClientFromEnv(),
		plans.StorefrontPlayStore: playstore.NewClientFromEnv(),
	}
	return subscriptions.NewEngine(db, verifiers, cache.UserProfiles{})
}

func RegisterRoutes(r *gin.Engine, engine *subscriptions.Engine) {
	subscriptionsapi.Init(engine)
	webhooks.Init(engine)
	adminapi.Init(engine)

	// Storefront push endpoints take raw payloads; no input sanitation here.
	r.POST("/webhooks/appstore", webhooks.AppStoreWebhook)
	r.POST("/webhooks/playstore", webhooks.PlayStoreWebhook)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	public := r.Group("/")
	public.Use(middleware.SanitizeAndCleanInputMiddleware())

	public.POST("/register", authapi.Register)
	public.POST("/login", authapi.Login)
	public.GET("/plans", plansapi.ListPlans)

	// Authenticated. Receipt fields pass the sanitizer untouched via its
	// skip-list; everything else is cleaned like the public routes.
	auth := r.Group("/")
	auth.Use(middleware.AuthMiddleware(), middleware.SanitizeAndCleanInputMiddleware())
	auth.GET("/me", users.GetCurrentUser)
	auth.GET("/subscriptions/status", subscriptionsapi.GetStatus)
	auth.POST("/subscriptions/verify", subscriptionsapi.VerifyReceipt)
	auth.POST("/subscriptions/restore", subscriptionsapi.RestorePurchases)

	// Cancelling requires something to cancel.
	entitled := auth.Group("/")
	entitled.Use(middleware.RequireEntitledSubscription())
	entitled.POST("/subscriptions/:id/cancel", subscriptionsapi.CancelSubscription)

	// Admin routes
	admin := r.Group("/admin")
	admin.Use(middleware.AuthMiddleware(), middleware.RequireRole("admin"))
	admin.GET("/subscriptions", adminapi.ListSubscriptions)
	admin.POST("/subscriptions/sweep", adminapi.TriggerSweep)
	admin.POST("/plans", plansapi.UpsertPlan)
}
