package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is the canonical catalog listing. The cart core only reads
// products; mutation belongs to the catalog subsystem.
type Product struct {
	ID             uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SKU            string           `gorm:"column:sku;not null;uniqueIndex"`
	Name           string           `gorm:"column:name;not null"`
	BasePrice      decimal.Decimal  `gorm:"column:base_price;type:numeric(12,2);not null"`
	WholesalePrice *decimal.Decimal `gorm:"column:wholesale_price;type:numeric(12,2)"`
	Stock          int              `gorm:"column:stock;not null;default:0"`
	Unit           string           `gorm:"column:unit;not null;default:'unidad'"`
	IsActive       bool             `gorm:"column:is_active;not null;default:true"`
	IsFeatured     bool             `gorm:"column:is_featured;not null;default:false"`
	CategoryID     uuid.UUID        `gorm:"column:category_id;type:uuid;not null"`
	Category       *Category        `gorm:"foreignKey:CategoryID"`
	MainImage      *string          `gorm:"column:main_image"`
	CreatedAt      time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns the ID client-side so inserts also work on backends
// without gen_random_uuid.
func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
