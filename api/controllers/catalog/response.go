package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/distrihogar/storefront-backend/pkg/db/models"
)

// ProductView is the wire shape of a catalog product. The wholesale rate is
// exposed so tier-aware clients can render both prices; price selection for
// cart lines still happens server-side.
type ProductView struct {
	ID             uuid.UUID        `json:"id"`
	SKU            string           `json:"sku"`
	Name           string           `json:"name"`
	BasePrice      decimal.Decimal  `json:"basePrice"`
	WholesalePrice *decimal.Decimal `json:"wholesalePrice,omitempty"`
	Stock          int              `json:"stock"`
	Unit           string           `json:"unit"`
	IsActive       bool             `json:"isActive"`
	IsFeatured     bool             `json:"isFeatured"`
	CategoryID     uuid.UUID        `json:"categoryId"`
	Category       *CategoryView    `json:"category,omitempty"`
	MainImage      *string          `json:"mainImage,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

// CategoryView is the wire shape of a category.
type CategoryView struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func newProductView(product *models.Product) ProductView {
	view := ProductView{
		ID:             product.ID,
		SKU:            product.SKU,
		Name:           product.Name,
		BasePrice:      product.BasePrice,
		WholesalePrice: product.WholesalePrice,
		Stock:          product.Stock,
		Unit:           product.Unit,
		IsActive:       product.IsActive,
		IsFeatured:     product.IsFeatured,
		CategoryID:     product.CategoryID,
		MainImage:      product.MainImage,
		CreatedAt:      product.CreatedAt,
		UpdatedAt:      product.UpdatedAt,
	}
	if product.Category != nil {
		category := newCategoryView(product.Category)
		view.Category = &category
	}
	return view
}

func newProductList(products []models.Product) []ProductView {
	views := make([]ProductView, 0, len(products))
	for i := range products {
		views = append(views, newProductView(&products[i]))
	}
	return views
}

func newCategoryView(category *models.Category) CategoryView {
	return CategoryView{
		ID:        category.ID,
		Name:      category.Name,
		Slug:      category.Slug,
		CreatedAt: category.CreatedAt,
		UpdatedAt: category.UpdatedAt,
	}
}

func newCategoryList(categories []models.Category) []CategoryView {
	views := make([]CategoryView, 0, len(categories))
	for i := range categories {
		views = append(views, newCategoryView(&categories[i]))
	}
	return views
}
