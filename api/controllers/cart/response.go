package cart

import (
	cartdto "github.com/distrihogar/storefront-backend/api/controllers/cart/dto"
	cartsvc "github.com/distrihogar/storefront-backend/internal/cart"
	"github.com/distrihogar/storefront-backend/pkg/db/models"
)

func newCartView(record *models.Cart) cartdto.CartView {
	totals := cartsvc.ComputeTotals(record)

	items := make([]cartdto.CartItemView, 0, len(record.Items))
	for i := range record.Items {
		items = append(items, newCartItemView(&record.Items[i]))
	}

	return cartdto.CartView{
		ID:            record.ID,
		Items:         items,
		Subtotal:      totals.Subtotal,
		ActiveLines:   totals.ActiveLines,
		TotalQuantity: totals.TotalQuantity,
		CreatedAt:     record.CreatedAt,
		UpdatedAt:     record.UpdatedAt,
	}
}

func newCartItemView(item *models.CartItem) cartdto.CartItemView {
	return cartdto.CartItemView{
		ID:        item.ID,
		ProductID: item.ProductID,
		Quantity:  item.Quantity,
		UnitPrice: item.UnitPrice,
		Discount:  item.Discount,
		CreatedAt: item.CreatedAt,
		UpdatedAt: item.UpdatedAt,
	}
}
