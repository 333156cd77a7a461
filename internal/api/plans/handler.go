package plans

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"videostar-app/database"
	"videostar-app/internal/domain/plans"
	"videostar-app/internal/infra/cache"
)

const (
	activePlansCacheKey = "plans:active"
	activePlansCacheTTL = 5 * time.Minute
)

// GET /plans
// Serves the catalog from cache when possible. The cache is never the source
// of truth: any miss or cache failure falls through to the database.
func ListPlans(c *gin.Context) {
	if cached, err := cache.Get(activePlansCacheKey); err == nil && cached != "" {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(cached))
		return
	}

	list, err := plans.ListActive(database.DB)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load plans"})
		return
	}

	if body, err := json.Marshal(list); err == nil {
		if err := cache.Set(activePlansCacheKey, body, activePlansCacheTTL); err != nil {
			log.Printf("plans: failed to cache catalog: %v", err)
		}
	}

	c.JSON(http.StatusOK, list)
}

type upsertPlanRequest struct {
	Name            string                 `json:"name" binding:"required"`
	AppleProductID  string                 `json:"apple_product_id" binding:"required"`
	GoogleProductID string                 `json:"google_product_id" binding:"required"`
	PriceUSD        float64                `json:"price_usd"`
	DurationMonths  int                    `json:"duration_months" binding:"required"`
	Active          *bool                  `json:"active"`
	Features        map[string]interface{} `json:"features"`
}

// POST /admin/plans
// Creates or updates a plan keyed by its Apple product id. Plans referenced
// by existing subscriptions keep their identity; only display fields move.
func UpsertPlan(c *gin.Context) {
	var body upsertPlanRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	active := true
	if body.Active != nil {
		active = *body.Active
	}

	var existing plans.Plan
	err := database.DB.Where("apple_product_id = ?", body.AppleProductID).First(&existing).Error

	if err != nil {
		plan := plans.Plan{
			Name:            body.Name,
			AppleProductID:  body.AppleProductID,
			GoogleProductID: body.GoogleProductID,
			PriceUSD:        body.PriceUSD,
			DurationMonths:  body.DurationMonths,
			Active:          active,
			Features:        datatypes.JSONMap(body.Features),
		}
		if err := database.DB.Create(&plan).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create plan", "details": err.Error()})
			return
		}
		invalidateCatalog()
		c.JSON(http.StatusOK, gin.H{"created": true, "plan": plan})
		return
	}

	existing.Name = body.Name
	existing.GoogleProductID = body.GoogleProductID
	existing.PriceUSD = body.PriceUSD
	existing.DurationMonths = body.DurationMonths
	existing.Active = active
	if body.Features != nil {
		existing.Features = datatypes.JSONMap(body.Features)
	}

	if err := database.DB.Save(&existing).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update plan", "details": err.Error()})
		return
	}
	invalidateCatalog()
	c.JSON(http.StatusOK, gin.H{"created": false, "plan": existing})
}

func invalidateCatalog() {
	if err := cache.Delete(activePlansCacheKey); err != nil {
		log.Printf("plans: failed to invalidate catalog cache: %v", err)
	}
}
