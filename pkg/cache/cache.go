package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/distrihogar/storefront-backend/pkg/config"
	"github.com/distrihogar/storefront-backend/pkg/db/models"
	"github.com/distrihogar/storefront-backend/pkg/logger"
	"github.com/distrihogar/storefront-backend/pkg/metrics"
	storeredis "github.com/distrihogar/storefront-backend/pkg/redis"
)

// Cache domains. Each domain owns its key space and TTL.
const (
	DomainProduct    = "product"
	DomainProducts   = "products"
	DomainCategory   = "category"
	DomainCategories = "categories"
	DomainCart       = "cart"
)

type backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	DelPattern(ctx context.Context, pattern string) error
	CacheKey(domain string, parts ...string) string
}

// Cache is the typed read-through cache in front of the relational store.
// Every accessor fails open: a backend error is logged and answered as a
// miss, never surfaced to the caller. The database stays the source of
// truth; cache entries are deleted (not updated) on writes.
type Cache struct {
	backend backend
	logg    *logger.Logger
	metrics *metrics.CacheMetrics
	ttl     config.CacheConfig
}

// New builds the cache layer over the provided redis client.
func New(backend backend, logg *logger.Logger, m *metrics.CacheMetrics, ttl config.CacheConfig) *Cache {
	return &Cache{
		backend: backend,
		logg:    logg,
		metrics: m,
		ttl:     ttl,
	}
}

// GetProduct returns the cached product snapshot, if any.
func (c *Cache) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, bool) {
	var product models.Product
	if !c.getJSON(ctx, DomainProduct, c.backend.CacheKey(DomainProduct, id.String()), &product) {
		return nil, false
	}
	return &product, true
}

// SetProduct stores a product snapshot under the catalog TTL.
func (c *Cache) SetProduct(ctx context.Context, product *models.Product) {
	if product == nil {
		return
	}
	c.setJSON(ctx, DomainProduct, c.backend.CacheKey(DomainProduct, product.ID.String()), product, c.ttl.ProductTTL)
}

// DeleteProduct drops the product entry and every cached product list, since
// lists may embed the stale snapshot.
func (c *Cache) DeleteProduct(ctx context.Context, id uuid.UUID) {
	c.del(ctx, DomainProduct, c.backend.CacheKey(DomainProduct, id.String()))
	c.delPattern(ctx, DomainProducts, c.backend.CacheKey(DomainProducts, "*"))
}

// GetProducts returns a cached product list for the given filter hash.
func (c *Cache) GetProducts(ctx context.Context, filterHash string) ([]models.Product, bool) {
	var products []models.Product
	if !c.getJSON(ctx, DomainProducts, c.backend.CacheKey(DomainProducts, filterHash), &products) {
		return nil, false
	}
	return products, true
}

// SetProducts stores a product list keyed by the filter hash.
func (c *Cache) SetProducts(ctx context.Context, filterHash string, products []models.Product) {
	c.setJSON(ctx, DomainProducts, c.backend.CacheKey(DomainProducts, filterHash), products, c.ttl.ProductTTL)
}

// GetCategory returns the cached category, if any.
func (c *Cache) GetCategory(ctx context.Context, id uuid.UUID) (*models.Category, bool) {
	var category models.Category
	if !c.getJSON(ctx, DomainCategory, c.backend.CacheKey(DomainCategory, id.String()), &category) {
		return nil, false
	}
	return &category, true
}

// SetCategory stores a category under the category TTL.
func (c *Cache) SetCategory(ctx context.Context, category *models.Category) {
	if category == nil {
		return
	}
	c.setJSON(ctx, DomainCategory, c.backend.CacheKey(DomainCategory, category.ID.String()), category, c.ttl.CategoryTTL)
}

// GetCategories returns the cached category list, if any.
func (c *Cache) GetCategories(ctx context.Context) ([]models.Category, bool) {
	var categories []models.Category
	if !c.getJSON(ctx, DomainCategories, c.backend.CacheKey(DomainCategories), &categories) {
		return nil, false
	}
	return categories, true
}

// SetCategories stores the category list.
func (c *Cache) SetCategories(ctx context.Context, categories []models.Category) {
	c.setJSON(ctx, DomainCategories, c.backend.CacheKey(DomainCategories), categories, c.ttl.CategoryTTL)
}

// InvalidateCatalog drops every product, product-list, and category entry.
// Catalog mutation flows call this after commit.
func (c *Cache) InvalidateCatalog(ctx context.Context) {
	c.delPattern(ctx, DomainProduct, c.backend.CacheKey(DomainProduct, "*"))
	c.delPattern(ctx, DomainProducts, c.backend.CacheKey(DomainProducts, "*"))
	c.delPattern(ctx, DomainCategory, c.backend.CacheKey(DomainCategory, "*"))
	c.del(ctx, DomainCategories, c.backend.CacheKey(DomainCategories))
}

// GetUserCart returns the cached cart for the user, if any.
func (c *Cache) GetUserCart(ctx context.Context, userID uuid.UUID) (*models.Cart, bool) {
	var cart models.Cart
	if !c.getJSON(ctx, DomainCart, c.backend.CacheKey(DomainCart, userID.String()), &cart) {
		return nil, false
	}
	return &cart, true
}

// SetUserCart stores the cart under the short cart TTL. Only the cart
// service's read-through path may call this; mutation code must invalidate
// via DeleteUserCart and let the next read repopulate from the database.
func (c *Cache) SetUserCart(ctx context.Context, userID uuid.UUID, cart *models.Cart) {
	if cart == nil {
		return
	}
	c.setJSON(ctx, DomainCart, c.backend.CacheKey(DomainCart, userID.String()), cart, c.ttl.CartTTL)
}

// DeleteUserCart drops the cart entry for the user.
func (c *Cache) DeleteUserCart(ctx context.Context, userID uuid.UUID) {
	c.del(ctx, DomainCart, c.backend.CacheKey(DomainCart, userID.String()))
}

func (c *Cache) getJSON(ctx context.Context, domain, key string, dest any) bool {
	raw, err := c.backend.Get(ctx, key)
	if err != nil {
		if err == storeredis.Nil {
			c.metrics.IncMiss(domain)
			return false
		}
		c.failOpen(ctx, domain, key, err)
		return false
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		// A corrupt entry is dropped so the next read repopulates it.
		c.failOpen(ctx, domain, key, err)
		_ = c.backend.Del(ctx, key)
		return false
	}
	c.metrics.IncHit(domain)
	return true
}

func (c *Cache) setJSON(ctx context.Context, domain, key string, value any, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		c.failOpen(ctx, domain, key, err)
		return
	}
	if err := c.backend.Set(ctx, key, string(raw), ttl); err != nil {
		c.failOpen(ctx, domain, key, err)
	}
}

func (c *Cache) del(ctx context.Context, domain string, keys ...string) {
	if err := c.backend.Del(ctx, keys...); err != nil {
		c.failOpen(ctx, domain, keys[0], err)
	}
}

func (c *Cache) delPattern(ctx context.Context, domain, pattern string) {
	if err := c.backend.DelPattern(ctx, pattern); err != nil {
		c.failOpen(ctx, domain, pattern, err)
	}
}

func (c *Cache) failOpen(ctx context.Context, domain, key string, err error) {
	c.metrics.IncFailOpen(domain)
	if c.logg != nil {
		ctx = c.logg.WithFields(ctx, map[string]any{
			"cache_domain": domain,
			"cache_key":    key,
		})
		c.logg.Warn(ctx, "cache backend error, failing open: "+err.Error())
	}
}
