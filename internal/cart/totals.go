package cart

import (
	"github.com/distrihogar/storefront-backend/pkg/db/models"
	"github.com/shopspring/decimal"
)

// Totals is the derived summary of a cart. Lines whose product is no longer
// active stay in the cart for visibility but contribute nothing here.
type Totals struct {
	Subtotal      decimal.Decimal `json:"subtotal"`
	ActiveLines   int             `json:"activeLines"`
	TotalQuantity int             `json:"totalQuantity"`
}

// ComputeTotals derives the cart summary from its lines.
func ComputeTotals(cart *models.Cart) Totals {
	totals := Totals{Subtotal: decimal.Zero}
	if cart == nil {
		return totals
	}
	for _, item := range cart.Items {
		if item.Product != nil && !item.Product.IsActive {
			continue
		}
		totals.Subtotal = totals.Subtotal.Add(item.Subtotal())
		totals.ActiveLines++
		totals.TotalQuantity += item.Quantity
	}
	return totals
}
