// Package pricing resolves the unit price a user pays for a product.
//
// Business accounts (EMPRESA tier) get the wholesale price when the product
// has one; everyone else pays the base price. The resolved price is stamped
// onto cart items at write time, so later catalog price changes never move
// an existing cart line.
package pricing

import (
	"github.com/distrihogar/storefront-backend/pkg/db/models"
	"github.com/distrihogar/storefront-backend/pkg/enums"
	"github.com/shopspring/decimal"
)

// UnitPriceFor returns the effective unit price for the given tier.
func UnitPriceFor(product *models.Product, tier enums.UserTier) decimal.Decimal {
	if product == nil {
		return decimal.Zero
	}
	if tier == enums.UserTierEmpresa && product.WholesalePrice != nil {
		return *product.WholesalePrice
	}
	return product.BasePrice
}

// HasWholesaleRate reports whether the product carries a distinct
// business-tier price.
func HasWholesaleRate(product *models.Product) bool {
	return product != nil && product.WholesalePrice != nil
}
