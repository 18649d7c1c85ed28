// Package catalog serves product and category reads through the cache
// layer. The database is the server of record; cache entries are dropped on
// writes and repopulated on the next read.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/distrihogar/storefront-backend/pkg/cache"
	"github.com/distrihogar/storefront-backend/pkg/db/models"
	pkgerrors "github.com/distrihogar/storefront-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type productRepo interface {
	FindProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]models.Product, error)
	FindCategoryByID(ctx context.Context, id uuid.UUID) (*models.Category, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
}

// Service is the cached catalog read surface.
type Service interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	GetProducts(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]models.Product, error)
	GetCategory(ctx context.Context, id uuid.UUID) (*models.Category, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	InvalidateProduct(ctx context.Context, id uuid.UUID)
	InvalidateCatalog(ctx context.Context)
}

type service struct {
	repo  productRepo
	cache *cache.Cache
}

// NewService builds the catalog service over the repo and cache.
func NewService(repo productRepo, c *cache.Cache) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if c == nil {
		return nil, fmt.Errorf("cache required")
	}
	return &service{repo: repo, cache: c}, nil
}

// GetProduct returns the product, serving from cache when possible.
func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if product, ok := s.cache.GetProduct(ctx, id); ok {
		return product, nil
	}

	product, err := s.repo.FindProductByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}

	s.cache.SetProduct(ctx, product)
	return product, nil
}

// GetProducts loads several products at once. Bulk reads go straight to the
// database; only the per-ID entries get refreshed.
func (s *service) GetProducts(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	products, err := s.repo.FindProductsByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	for i := range products {
		s.cache.SetProduct(ctx, &products[i])
	}
	return products, nil
}

// ListProducts returns the filtered listing, cached per filter hash.
func (s *service) ListProducts(ctx context.Context, filter ProductFilter) ([]models.Product, error) {
	hash := filter.Hash()
	if products, ok := s.cache.GetProducts(ctx, hash); ok {
		return products, nil
	}

	products, err := s.repo.ListProducts(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}

	s.cache.SetProducts(ctx, hash, products)
	return products, nil
}

// GetCategory returns the category, serving from cache when possible.
func (s *service) GetCategory(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	if category, ok := s.cache.GetCategory(ctx, id); ok {
		return category, nil
	}

	category, err := s.repo.FindCategoryByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
	}

	s.cache.SetCategory(ctx, category)
	return category, nil
}

// ListCategories returns every category, cached as one entry.
func (s *service) ListCategories(ctx context.Context) ([]models.Category, error) {
	if categories, ok := s.cache.GetCategories(ctx); ok {
		return categories, nil
	}

	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}

	s.cache.SetCategories(ctx, categories)
	return categories, nil
}

// InvalidateProduct drops the product entry plus every cached list that may
// embed it. Admin mutation flows call this after commit.
func (s *service) InvalidateProduct(ctx context.Context, id uuid.UUID) {
	s.cache.DeleteProduct(ctx, id)
}

// InvalidateCatalog drops the entire catalog key space.
func (s *service) InvalidateCatalog(ctx context.Context) {
	s.cache.InvalidateCatalog(ctx)
}
