package plans

import (
	"time"

	"gorm.io/datatypes"
)

type Plan struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	Name           string `json:"name"`
	AppleProductID string `gorm:"column:apple_product_id;not null;uniqueIndex:idx_plans_apple_product_id" json:"apple_product_id"`
	// Google product ids are scoped per package name, but we only ship one app.
	GoogleProductID string            `gorm:"column:google_product_id;not null;uniqueIndex:idx_plans_google_product_id" json:"google_product_id"`
	PriceUSD        float64           `gorm:"column:price_usd" json:"price_usd"`
	DurationMonths  int               `json:"duration_months"`
	Active          bool              `gorm:"default:true" json:"active"`
	Features        datatypes.JSONMap `json:"features"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
