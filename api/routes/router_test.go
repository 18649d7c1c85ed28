package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/distrihogar/storefront-backend/api/middleware"
	cartsvc "github.com/distrihogar/storefront-backend/internal/cart"
	catalogsvc "github.com/distrihogar/storefront-backend/internal/catalog"
	pkgauth "github.com/distrihogar/storefront-backend/pkg/auth"
	"github.com/distrihogar/storefront-backend/pkg/config"
	"github.com/distrihogar/storefront-backend/pkg/db/models"
	"github.com/distrihogar/storefront-backend/pkg/enums"
	"github.com/distrihogar/storefront-backend/pkg/logger"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type routerCartService struct {
	cart *models.Cart
	item *models.CartItem
}

func (s *routerCartService) GetOrCreateCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	return s.cart, nil
}

func (s *routerCartService) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*cartsvc.AddItemResult, error) {
	return &cartsvc.AddItemResult{Item: s.item, Created: true}, nil
}

func (s *routerCartService) UpdateItemQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*models.CartItem, error) {
	return s.item, nil
}

func (s *routerCartService) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error {
	return nil
}

func (s *routerCartService) UpdateCart(ctx context.Context, userID uuid.UUID, items []cartsvc.ItemInput) (*models.Cart, error) {
	return s.cart, nil
}

func (s *routerCartService) ClearCart(ctx context.Context, userID uuid.UUID) error {
	return nil
}

type routerCatalogService struct{}

func (routerCatalogService) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return &models.Product{ID: id, IsActive: true}, nil
}

func (routerCatalogService) GetProducts(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	return nil, nil
}

func (routerCatalogService) ListProducts(ctx context.Context, filter catalogsvc.ProductFilter) ([]models.Product, error) {
	return []models.Product{}, nil
}

func (routerCatalogService) GetCategory(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	return &models.Category{ID: id}, nil
}

func (routerCatalogService) ListCategories(ctx context.Context) ([]models.Category, error) {
	return []models.Category{}, nil
}

func (routerCatalogService) InvalidateProduct(ctx context.Context, id uuid.UUID) {}

func (routerCatalogService) InvalidateCatalog(ctx context.Context) {}

func newTestRouter(t *testing.T) (http.Handler, *config.Config) {
	t.Helper()
	cfg := &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret:            "router-test-secret",
			Issuer:            "storefront-test",
			ExpirationMinutes: 15,
		},
		CSRF: config.CSRFConfig{Secret: "router-test-csrf", TTL: 15 * time.Minute},
	}
	logg := logger.New(logger.Options{ServiceName: "router-test", Output: io.Discard})

	userID := uuid.New()
	service := &routerCartService{
		cart: &models.Cart{ID: uuid.New(), UserID: userID},
		item: &models.CartItem{ID: uuid.New(), ProductID: uuid.New(), Quantity: 1},
	}

	handler := NewRouter(cfg, logg, stubPinger{}, nil, routerCatalogService{}, service, prometheus.NewRegistry())
	return handler, cfg
}

func mintBearer(t *testing.T, cfg *config.Config, userID uuid.UUID) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(cfg.JWT, time.Now().UTC(), pkgauth.AccessTokenPayload{
		UserID: userID,
		Tier:   enums.UserTierNatural,
		JTI:    uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}
	return "Bearer " + token
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	handler, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("live: expected 200 got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("ready: expected 200 got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("metrics: expected 200 got %d", resp.Code)
	}
}

func TestCatalogRoutesArePublic(t *testing.T) {
	handler, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("products: expected 200 got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/categories", nil)
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("categories: expected 200 got %d", resp.Code)
	}
}

func TestCartRoutesRequireAuth(t *testing.T) {
	handler, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestCartMutationRequiresAntiForgeryToken(t *testing.T) {
	handler, cfg := newTestRouter(t)
	userID := uuid.New()
	bearer := mintBearer(t, cfg, userID)

	// Reads pass without the anti-forgery token.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("Authorization", bearer)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("read: expected 200 got %d", resp.Code)
	}

	// Mutations without one are rejected.
	body := `{"productId": "` + uuid.NewString() + `", "quantity": 1}`
	req = httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(body))
	req.Header.Set("Authorization", bearer)
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("mutation without token: expected 403 got %d", resp.Code)
	}

	// The mint endpoint hands out a token bound to the caller.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/auth/csrf", nil)
	req.Header.Set("Authorization", bearer)
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("csrf mint: expected 200 got %d", resp.Code)
	}

	var envelope struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode csrf response: %v", err)
	}
	if envelope.Data.Token == "" {
		t.Fatal("expected a non-empty anti-forgery token")
	}

	// With the minted token the mutation goes through.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(body))
	req.Header.Set("Authorization", bearer)
	req.Header.Set(middleware.AntiForgeryHeader, envelope.Data.Token)
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("mutation with token: expected 201 got %d", resp.Code)
	}
}
