package plans

import (
	"fmt"

	"gorm.io/gorm"
)

// Storefront names used across the whole app. Adapters, subscription rows and
// webhook routes all key off these two strings.
const (
	StorefrontAppStore  = "appstore"
	StorefrontPlayStore = "playstore"
)

// FindByProductID maps a storefront product identifier back to our plan.
func FindByProductID(db *gorm.DB, storefront, productID string) (*Plan, error) {
	var plan Plan
	q := db.Model(&Plan{})

	switch storefront {
	case StorefrontAppStore:
		q = q.Where("apple_product_id = ?", productID)
	case StorefrontPlayStore:
		q = q.Where("google_product_id = ?", productID)
	default:
		return nil, fmt.Errorf("unknown storefront %q", storefront)
	}

	if err := q.First(&plan).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

// ListActive returns purchasable plans, cheapest first.
func ListActive(db *gorm.DB) ([]Plan, error) {
	var list []Plan
	err := db.Model(&Plan{}).
		Where("active = ?", true).
		Order("price_usd ASC").
		Find(&list).Error
	return list, err
}
