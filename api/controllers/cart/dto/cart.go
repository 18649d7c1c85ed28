package cartdto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartView is the wire shape of the buyer's cart.
type CartView struct {
	ID            uuid.UUID       `json:"id"`
	Items         []CartItemView  `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	ActiveLines   int             `json:"activeLines"`
	TotalQuantity int             `json:"totalQuantity"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// CartItemView is one line of the cart as exposed on the wire.
type CartItemView struct {
	ID        uuid.UUID       `json:"id"`
	ProductID uuid.UUID       `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Discount  decimal.Decimal `json:"discount"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// AddItemRequest asks for a quantity of one product to be merged into the cart.
type AddItemRequest struct {
	ProductID uuid.UUID `json:"productId" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,gt=0"`
}

// UpdateItemRequest sets the absolute quantity of an existing line.
type UpdateItemRequest struct {
	Quantity int `json:"quantity" validate:"required,gt=0"`
}

// ReplaceCartRequest swaps the whole cart for the given lines.
type ReplaceCartRequest struct {
	Items []ReplaceCartItem `json:"items" validate:"dive"`
}

// ReplaceCartItem is one requested line of a bulk replacement.
type ReplaceCartItem struct {
	ProductID uuid.UUID `json:"productId" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,gt=0"`
}
