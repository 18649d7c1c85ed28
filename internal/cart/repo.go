package cart

import (
	"context"
	"strings"

	"github.com/distrihogar/storefront-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CartRepository is the persistence surface the service depends on.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	Create(ctx context.Context, cart *models.Cart) (*models.Cart, error)
	FindByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	Touch(ctx context.Context, cartID uuid.UUID) error
	FindItemByID(ctx context.Context, itemID uuid.UUID) (*models.CartItem, error)
	FindItemByProduct(ctx context.Context, cartID, productID uuid.UUID) (*models.CartItem, error)
	SaveItem(ctx context.Context, item *models.CartItem) error
	DeleteItem(ctx context.Context, itemID uuid.UUID) error
	ReplaceItems(ctx context.Context, cartID uuid.UUID, items []models.CartItem) error
	DeleteItemsByCart(ctx context.Context, cartID uuid.UUID) error
	LockProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error)
}

// Repository exposes cart persistence operations.
type Repository struct {
	db       *gorm.DB
	rowLocks bool
}

// NewRepository constructs a cart repository bound to the provided DB.
// Row-level locking is only requested on backends that support it.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:       db,
		rowLocks: supportsRowLocks(db),
	}
}

func supportsRowLocks(db *gorm.DB) bool {
	if db == nil || db.Dialector == nil {
		return false
	}
	return !strings.EqualFold(db.Dialector.Name(), "sqlite")
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx, rowLocks: r.rowLocks}
}

// Create inserts a new empty cart for the user.
func (r *Repository) Create(ctx context.Context, cart *models.Cart) (*models.Cart, error) {
	if err := r.db.WithContext(ctx).Create(cart).Error; err != nil {
		return nil, err
	}
	return cart, nil
}

// FindByUser loads the user's cart with items and their product snapshots.
func (r *Repository) FindByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("cart_items.created_at ASC")
		}).
		Preload("Items.Product").
		Where("user_id = ?", userID).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// Touch refreshes the cart's updated_at so an otherwise item-only mutation
// still moves the cart's timestamp.
func (r *Repository) Touch(ctx context.Context, cartID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", cartID).
		UpdateColumn("updated_at", gorm.Expr("CURRENT_TIMESTAMP")).Error
}

// FindItemByID loads a cart item with its product snapshot.
func (r *Repository) FindItemByID(ctx context.Context, itemID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	err := r.db.WithContext(ctx).
		Preload("Product").
		First(&item, "id = ?", itemID).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// FindItemByProduct loads the line for the given product within a cart.
func (r *Repository) FindItemByProduct(ctx context.Context, cartID, productID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	err := r.db.WithContext(ctx).
		Where("cart_id = ? AND product_id = ?", cartID, productID).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// SaveItem inserts or updates the cart item.
func (r *Repository) SaveItem(ctx context.Context, item *models.CartItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}

// DeleteItem removes a single cart item.
func (r *Repository) DeleteItem(ctx context.Context, itemID uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.CartItem{}, "id = ?", itemID).Error
}

// ReplaceItems atomically swaps every line in the cart for the provided set.
func (r *Repository) ReplaceItems(ctx context.Context, cartID uuid.UUID, items []models.CartItem) error {
	tx := r.db.WithContext(ctx)
	if err := tx.Where("cart_id = ?", cartID).Delete(&models.CartItem{}).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].CartID = cartID
	}
	return tx.Create(&items).Error
}

// DeleteItemsByCart removes every line in the cart. The cart row survives.
func (r *Repository) DeleteItemsByCart(ctx context.Context, cartID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Delete(&models.CartItem{}).Error
}

// LockProduct re-reads the product inside the current transaction, taking a
// row lock where the backend supports one, so concurrent writers serialize
// on the stock check.
func (r *Repository) LockProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	query := r.db.WithContext(ctx)
	if r.rowLocks {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var product models.Product
	if err := query.First(&product, "id = ?", productID).Error; err != nil {
		return nil, err
	}
	return &product, nil
}
