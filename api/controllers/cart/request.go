package cart

import (
	cartdto "github.com/distrihogar/storefront-backend/api/controllers/cart/dto"
	cartsvc "github.com/distrihogar/storefront-backend/internal/cart"
)

func toItemInputs(payload cartdto.ReplaceCartRequest) []cartsvc.ItemInput {
	items := make([]cartsvc.ItemInput, 0, len(payload.Items))
	for _, item := range payload.Items {
		items = append(items, cartsvc.ItemInput{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}
	return items
}
