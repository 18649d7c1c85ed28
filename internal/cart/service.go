// Package cart implements the server-of-record cart. Every mutation runs in
// one database transaction, re-checks live stock, re-stamps the unit price
// for the acting account's tier, and invalidates the cached cart only after
// the transaction commits.
package cart

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/distrihogar/storefront-backend/internal/audit"
	"github.com/distrihogar/storefront-backend/internal/pricing"
	"github.com/distrihogar/storefront-backend/internal/session"
	"github.com/distrihogar/storefront-backend/pkg/db"
	"github.com/distrihogar/storefront-backend/pkg/db/models"
	pkgerrors "github.com/distrihogar/storefront-backend/pkg/errors"
	"github.com/distrihogar/storefront-backend/pkg/metrics"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type accountResolver interface {
	ResolveAccount(ctx context.Context, userID uuid.UUID) (*session.Account, error)
}

type productLoader interface {
	FindProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type cartCache interface {
	GetUserCart(ctx context.Context, userID uuid.UUID) (*models.Cart, bool)
	SetUserCart(ctx context.Context, userID uuid.UUID, cart *models.Cart)
	DeleteUserCart(ctx context.Context, userID uuid.UUID)
}

// ItemInput is one line of a full-cart replacement.
type ItemInput struct {
	ProductID uuid.UUID
	Quantity  int
}

// AddItemResult reports the line touched by AddItem and whether it was
// created or accumulated onto an existing line.
type AddItemResult struct {
	Item    *models.CartItem
	Created bool
}

// Service exposes the cart operations.
type Service interface {
	GetOrCreateCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*AddItemResult, error)
	UpdateItemQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*models.CartItem, error)
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error
	UpdateCart(ctx context.Context, userID uuid.UUID, items []ItemInput) (*models.Cart, error)
	ClearCart(ctx context.Context, userID uuid.UUID) error
}

type service struct {
	repo     CartRepository
	tx       txRunner
	accounts accountResolver
	products productLoader
	cache    cartCache
	audit    audit.Recorder
	metrics  *metrics.CartMetrics
}

// NewService builds a cart service backed by the provided stack.
func NewService(
	repo CartRepository,
	tx txRunner,
	accounts accountResolver,
	products productLoader,
	cache cartCache,
	recorder audit.Recorder,
	m *metrics.CartMetrics,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if accounts == nil {
		return nil, fmt.Errorf("account resolver required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if cache == nil {
		return nil, fmt.Errorf("cart cache required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		accounts: accounts,
		products: products,
		cache:    cache,
		audit:    recorder,
		metrics:  m,
	}, nil
}

// GetOrCreateCart returns the user's cart, creating an empty one on first
// access. This is the only path that populates the cart cache.
func (s *service) GetOrCreateCart(ctx context.Context, userID uuid.UUID) (cart *models.Cart, err error) {
	defer s.observe("get_or_create", time.Now(), &err)

	account, err := s.accounts.ResolveAccount(ctx, userID)
	if err != nil {
		return nil, err
	}

	if cached, ok := s.cache.GetUserCart(ctx, account.UserID); ok {
		return cached, nil
	}

	cart, err = s.loadOrCreateCart(ctx, account.UserID)
	if err != nil {
		return nil, err
	}

	s.cache.SetUserCart(ctx, account.UserID, cart)
	return cart, nil
}

// AddItem adds quantity of a product to the cart. An existing line for the
// same product accumulates; either way the line's unit price is re-stamped
// for the account's current tier.
func (s *service) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (result *AddItemResult, err error) {
	defer s.observe("add_item", time.Now(), &err)

	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	account, err := s.accounts.ResolveAccount(ctx, userID)
	if err != nil {
		return nil, err
	}

	if _, err := s.loadSellableProduct(ctx, productID); err != nil {
		return nil, err
	}

	var (
		saved   *models.CartItem
		cartID  uuid.UUID
		created bool
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		cart, err := s.findOrCreateInTx(ctx, txRepo, account.UserID)
		if err != nil {
			return err
		}
		cartID = cart.ID

		product, err := txRepo.LockProduct(ctx, productID)
		if err != nil {
			return err
		}
		if !product.IsActive {
			return pkgerrors.New(pkgerrors.CodeBusinessRule, "product is not available")
		}

		item, err := txRepo.FindItemByProduct(ctx, cart.ID, productID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		target := quantity
		if item != nil {
			target += item.Quantity
		}
		if err := checkStock(product, target); err != nil {
			return err
		}

		price := pricing.UnitPriceFor(product, account.Tier)
		if item != nil {
			item.Quantity = target
			item.UnitPrice = price
		} else {
			created = true
			item = &models.CartItem{
				CartID:    cart.ID,
				ProductID: productID,
				Quantity:  target,
				UnitPrice: price,
			}
		}
		if err := txRepo.SaveItem(ctx, item); err != nil {
			return err
		}
		saved = item

		return txRepo.Touch(ctx, cart.ID)
	})
	if err != nil {
		return nil, s.asCartError(err, "add cart item")
	}

	s.cache.DeleteUserCart(ctx, account.UserID)
	s.record(audit.Entry{
		Action:    audit.ActionAdd,
		UserID:    account.UserID,
		CartID:    cartID,
		ProductID: productID,
		QtyDelta:  int64(quantity),
		ResultQty: int64(saved.Quantity),
		UnitPrice: saved.UnitPrice,
	})

	return &AddItemResult{Item: saved, Created: created}, nil
}

// UpdateItemQuantity sets the absolute quantity of an existing line. The
// line's unit price is re-stamped for the account's current tier.
func (s *service) UpdateItemQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (item *models.CartItem, err error) {
	defer s.observe("update_item", time.Now(), &err)

	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	account, err := s.accounts.ResolveAccount(ctx, userID)
	if err != nil {
		return nil, err
	}

	existing, err := s.ownedItem(ctx, account.UserID, itemID)
	if err != nil {
		return nil, err
	}

	var (
		saved    *models.CartItem
		previous = existing.Quantity
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		product, err := txRepo.LockProduct(ctx, existing.ProductID)
		if err != nil {
			return err
		}
		if !product.IsActive {
			return pkgerrors.New(pkgerrors.CodeBusinessRule, "product is not available")
		}
		if err := checkStock(product, quantity); err != nil {
			return err
		}

		existing.Quantity = quantity
		existing.UnitPrice = pricing.UnitPriceFor(product, account.Tier)
		existing.Product = nil
		if err := txRepo.SaveItem(ctx, existing); err != nil {
			return err
		}
		saved = existing

		return txRepo.Touch(ctx, existing.CartID)
	})
	if err != nil {
		return nil, s.asCartError(err, "update cart item")
	}

	s.cache.DeleteUserCart(ctx, account.UserID)
	s.record(audit.Entry{
		Action:    audit.ActionUpdate,
		UserID:    account.UserID,
		CartID:    saved.CartID,
		ProductID: saved.ProductID,
		QtyDelta:  int64(quantity - previous),
		ResultQty: int64(quantity),
		UnitPrice: saved.UnitPrice,
	})

	return saved, nil
}

// RemoveItem deletes a line from the cart. Lines whose product has since
// gone inactive can still be removed.
func (s *service) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (err error) {
	defer s.observe("remove_item", time.Now(), &err)

	account, err := s.accounts.ResolveAccount(ctx, userID)
	if err != nil {
		return err
	}

	existing, err := s.ownedItem(ctx, account.UserID, itemID)
	if err != nil {
		return err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := txRepo.DeleteItem(ctx, itemID); err != nil {
			return err
		}
		return txRepo.Touch(ctx, existing.CartID)
	})
	if err != nil {
		return s.asCartError(err, "remove cart item")
	}

	s.cache.DeleteUserCart(ctx, account.UserID)
	s.record(audit.Entry{
		Action:    audit.ActionRemove,
		UserID:    account.UserID,
		CartID:    existing.CartID,
		ProductID: existing.ProductID,
		QtyDelta:  -int64(existing.Quantity),
		ResultQty: 0,
		UnitPrice: existing.UnitPrice,
	})

	return nil
}

// UpdateCart replaces the entire cart with the provided lines. Every line
// is validated before anything is written; one bad line rejects the whole
// request. Previously applied line discounts do not survive a replacement.
func (s *service) UpdateCart(ctx context.Context, userID uuid.UUID, items []ItemInput) (cart *models.Cart, err error) {
	defer s.observe("update_cart", time.Now(), &err)

	account, err := s.accounts.ResolveAccount(ctx, userID)
	if err != nil {
		return nil, err
	}

	seen := map[uuid.UUID]struct{}{}
	quantities := make(map[uuid.UUID]int, len(items))
	for _, input := range items {
		if input.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
		}
		if input.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
		}
		if _, dup := seen[input.ProductID]; dup {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "duplicate product in cart payload")
		}
		seen[input.ProductID] = struct{}{}
		quantities[input.ProductID] = input.Quantity

		// Fast fail before opening the transaction; the authoritative
		// check runs again under the row lock below.
		product, err := s.loadSellableProduct(ctx, input.ProductID)
		if err != nil {
			return nil, err
		}
		if err := checkStock(product, input.Quantity); err != nil {
			return nil, err
		}
	}

	// Lock in a stable order so two concurrent replacements cannot
	// deadlock on each other's rows.
	ordered := make([]uuid.UUID, 0, len(items))
	for _, input := range items {
		ordered = append(ordered, input.ProductID)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].String() < ordered[j].String()
	})

	var (
		cartID uuid.UUID
		lines  []models.CartItem
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		cart, err := s.findOrCreateInTx(ctx, txRepo, account.UserID)
		if err != nil {
			return err
		}
		cartID = cart.ID

		lines = make([]models.CartItem, 0, len(ordered))
		for _, productID := range ordered {
			product, err := txRepo.LockProduct(ctx, productID)
			if err != nil {
				return err
			}
			if !product.IsActive {
				return pkgerrors.New(pkgerrors.CodeBusinessRule, "product is not available")
			}
			quantity := quantities[productID]
			if err := checkStock(product, quantity); err != nil {
				return err
			}
			lines = append(lines, models.CartItem{
				ProductID: productID,
				Quantity:  quantity,
				UnitPrice: pricing.UnitPriceFor(product, account.Tier),
			})
		}

		if err := txRepo.ReplaceItems(ctx, cart.ID, lines); err != nil {
			return err
		}
		return txRepo.Touch(ctx, cart.ID)
	})
	if err != nil {
		return nil, s.asCartError(err, "replace cart")
	}

	s.cache.DeleteUserCart(ctx, account.UserID)
	s.record(audit.Entry{
		Action:    audit.ActionReplace,
		UserID:    account.UserID,
		CartID:    cartID,
		ItemCount: len(lines),
	})

	cart, err = s.repo.FindByUser(ctx, account.UserID)
	if err != nil {
		return nil, s.asCartError(err, "reload cart")
	}
	return cart, nil
}

// ClearCart removes every line. A user without a cart is a no-op, not an
// error.
func (s *service) ClearCart(ctx context.Context, userID uuid.UUID) (err error) {
	defer s.observe("clear_cart", time.Now(), &err)

	account, err := s.accounts.ResolveAccount(ctx, userID)
	if err != nil {
		return err
	}

	cart, err := s.repo.FindByUser(ctx, account.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return s.asCartError(err, "load cart")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := txRepo.DeleteItemsByCart(ctx, cart.ID); err != nil {
			return err
		}
		return txRepo.Touch(ctx, cart.ID)
	})
	if err != nil {
		return s.asCartError(err, "clear cart")
	}

	s.cache.DeleteUserCart(ctx, account.UserID)
	s.record(audit.Entry{
		Action: audit.ActionClear,
		UserID: account.UserID,
		CartID: cart.ID,
	})

	return nil
}

func (s *service) loadOrCreateCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	cart, err := s.repo.FindByUser(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, s.asCartError(err, "load cart")
	}

	created, err := s.repo.Create(ctx, &models.Cart{UserID: userID})
	if err != nil {
		// A concurrent first access can win the unique user index; fall
		// back to the row it created.
		if db.IsUniqueViolation(err, "") {
			cart, err := s.repo.FindByUser(ctx, userID)
			if err != nil {
				return nil, s.asCartError(err, "load cart")
			}
			return cart, nil
		}
		return nil, s.asCartError(err, "create cart")
	}
	return created, nil
}

func (s *service) findOrCreateInTx(ctx context.Context, txRepo CartRepository, userID uuid.UUID) (*models.Cart, error) {
	cart, err := txRepo.FindByUser(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return txRepo.Create(ctx, &models.Cart{UserID: userID})
}

// loadSellableProduct is the pre-transaction existence and availability
// check. Stock is re-verified under lock inside the transaction.
func (s *service) loadSellableProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	product, err := s.products.FindProductByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeBusinessRule, "product is not available")
	}
	return product, nil
}

// ownedItem loads the line and verifies it belongs to the user's cart. A
// line that exists but belongs to someone else is reported as unauthorized,
// not as missing, so a probing client learns nothing while the owner keeps
// a clear signal.
func (s *service) ownedItem(ctx context.Context, userID, itemID uuid.UUID) (*models.CartItem, error) {
	item, err := s.repo.FindItemByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
	}

	cart, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "cart item does not belong to this account")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if item.CartID != cart.ID {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "cart item does not belong to this account")
	}
	return item, nil
}

func checkStock(product *models.Product, requested int) error {
	if requested > product.Stock {
		return pkgerrors.New(pkgerrors.CodeBusinessRule, "insufficient stock").
			WithDetails(map[string]any{
				"productId": product.ID.String(),
				"available": product.Stock,
				"requested": requested,
			})
	}
	return nil
}

// asCartError passes coded errors through untouched and wraps raw database
// failures as dependency errors.
func (s *service) asCartError(err error, message string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
}

func (s *service) record(entry audit.Entry) {
	if s.audit != nil {
		s.audit.Record(entry)
	}
}

func (s *service) observe(operation string, start time.Time, err *error) {
	s.metrics.ObserveDuration(operation, time.Since(start))
	if err == nil || *err == nil {
		s.metrics.IncSuccess(operation)
		return
	}
	code := string(pkgerrors.CodeInternal)
	if coded := pkgerrors.As(*err); coded != nil {
		code = string(coded.Code())
	}
	s.metrics.IncFailure(operation, code)
}
