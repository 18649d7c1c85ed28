package cart

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/distrihogar/storefront-backend/internal/audit"
	"github.com/distrihogar/storefront-backend/internal/session"
	"github.com/distrihogar/storefront-backend/pkg/config"
	"github.com/distrihogar/storefront-backend/pkg/db"
	"github.com/distrihogar/storefront-backend/pkg/db/models"
	"github.com/distrihogar/storefront-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *db.Client {
	t.Helper()

	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	client, err := db.New(context.Background(), config.DBConfig{
		Driver: "sqlite",
		DSN:    dsn,
	}, nil)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})

	if err := client.DB().AutoMigrate(
		&models.User{},
		&models.Category{},
		&models.Product{},
		&models.Cart{},
		&models.CartItem{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return client
}

func mustCreateUser(t *testing.T, conn *gorm.DB, tier enums.UserTier) *models.User {
	t.Helper()
	user := &models.User{
		Email:  uuid.NewString() + "@example.com",
		Name:   "Test Buyer",
		Tier:   tier,
		Status: enums.UserStatusApproved,
	}
	if err := conn.Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func mustCreateCategory(t *testing.T, conn *gorm.DB) *models.Category {
	t.Helper()
	category := &models.Category{
		Name: "Electrodomésticos",
		Slug: "electrodomesticos-" + uuid.NewString()[:8],
	}
	if err := conn.Create(category).Error; err != nil {
		t.Fatalf("create category: %v", err)
	}
	return category
}

type productOpts struct {
	basePrice      string
	wholesalePrice string
	stock          int
	inactive       bool
}

func mustCreateProduct(t *testing.T, conn *gorm.DB, categoryID uuid.UUID, opts productOpts) *models.Product {
	t.Helper()

	if opts.basePrice == "" {
		opts.basePrice = "100.00"
	}
	if opts.stock == 0 {
		opts.stock = 10
	}
	product := &models.Product{
		SKU:        "SKU-" + uuid.NewString()[:8],
		Name:       "Producto de prueba",
		BasePrice:  decimal.RequireFromString(opts.basePrice),
		Stock:      opts.stock,
		IsActive:   !opts.inactive,
		CategoryID: categoryID,
	}
	if opts.wholesalePrice != "" {
		wholesale := decimal.RequireFromString(opts.wholesalePrice)
		product.WholesalePrice = &wholesale
	}
	if err := conn.Create(product).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	return product
}

type stubCartCache struct {
	mu      sync.Mutex
	carts   map[uuid.UUID]*models.Cart
	sets    int
	deletes int
}

func newStubCartCache() *stubCartCache {
	return &stubCartCache{carts: map[uuid.UUID]*models.Cart{}}
}

func (s *stubCartCache) GetUserCart(ctx context.Context, userID uuid.UUID) (*models.Cart, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cart, ok := s.carts[userID]
	return cart, ok
}

func (s *stubCartCache) SetUserCart(ctx context.Context, userID uuid.UUID, cart *models.Cart) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets++
	s.carts[userID] = cart
}

func (s *stubCartCache) DeleteUserCart(ctx context.Context, userID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes++
	delete(s.carts, userID)
}

type capturingRecorder struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (c *capturingRecorder) Record(entry audit.Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, entry)
}

func (c *capturingRecorder) last(t *testing.T) audit.Entry {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) == 0 {
		t.Fatal("expected at least one audit entry")
	}
	return c.entries[len(c.entries)-1]
}

type testRig struct {
	client   *db.Client
	svc      Service
	cache    *stubCartCache
	recorder *capturingRecorder
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()

	client := openTestDB(t)

	accounts, err := session.NewService(session.NewRepository(client.DB()))
	if err != nil {
		t.Fatalf("session service: %v", err)
	}

	cartCache := newStubCartCache()
	recorder := &capturingRecorder{}

	svc, err := NewService(
		NewRepository(client.DB()),
		client,
		accounts,
		&liveProductLoader{db: client.DB()},
		cartCache,
		recorder,
		nil,
	)
	if err != nil {
		t.Fatalf("cart service: %v", err)
	}

	return &testRig{client: client, svc: svc, cache: cartCache, recorder: recorder}
}

type liveProductLoader struct {
	db *gorm.DB
}

func (l *liveProductLoader) FindProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := l.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}
