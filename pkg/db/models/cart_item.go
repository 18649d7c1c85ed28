package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CartItem is one product line in a cart. A product appears at most once per
// cart; quantity accumulates instead of duplicating rows. UnitPrice is a
// snapshot stamped at add/update time, not a live reference to the product
// price.
type CartItem struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID    uuid.UUID       `gorm:"column:cart_id;type:uuid;not null;uniqueIndex:idx_cart_items_cart_product"`
	ProductID uuid.UUID       `gorm:"column:product_id;type:uuid;not null;uniqueIndex:idx_cart_items_cart_product"`
	Quantity  int             `gorm:"column:quantity;not null"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Discount  decimal.Decimal `gorm:"column:discount;type:numeric(5,2);not null;default:0"`
	Product   *Product        `gorm:"foreignKey:ProductID"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns the ID client-side so inserts also work on backends
// without gen_random_uuid.
func (i *CartItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// Subtotal returns quantity * unitPrice * (1 - discount/100).
func (i CartItem) Subtotal() decimal.Decimal {
	gross := i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
	if i.Discount.IsZero() {
		return gross
	}
	factor := decimal.NewFromInt(1).Sub(i.Discount.Div(decimal.NewFromInt(100)))
	return gross.Mul(factor)
}
