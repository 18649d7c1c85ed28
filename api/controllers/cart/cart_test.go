package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	cartdto "github.com/distrihogar/storefront-backend/api/controllers/cart/dto"
	"github.com/distrihogar/storefront-backend/api/middleware"
	cartsvc "github.com/distrihogar/storefront-backend/internal/cart"
	"github.com/distrihogar/storefront-backend/pkg/db/models"
	"github.com/distrihogar/storefront-backend/pkg/enums"
	pkgerrors "github.com/distrihogar/storefront-backend/pkg/errors"
)

type stubCartService struct {
	cart       *models.Cart
	item       *models.CartItem
	created    bool
	err        error
	lastInputs []cartsvc.ItemInput
	cleared    bool
	removedID  uuid.UUID
}

func (s *stubCartService) GetOrCreateCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	return s.cart, s.err
}

func (s *stubCartService) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*cartsvc.AddItemResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &cartsvc.AddItemResult{Item: s.item, Created: s.created}, nil
}

func (s *stubCartService) UpdateItemQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*models.CartItem, error) {
	return s.item, s.err
}

func (s *stubCartService) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error {
	s.removedID = itemID
	return s.err
}

func (s *stubCartService) UpdateCart(ctx context.Context, userID uuid.UUID, items []cartsvc.ItemInput) (*models.Cart, error) {
	s.lastInputs = items
	return s.cart, s.err
}

func (s *stubCartService) ClearCart(ctx context.Context, userID uuid.UUID) error {
	s.cleared = true
	return s.err
}

func withUserContext(req *http.Request, userID uuid.UUID) *http.Request {
	return req.WithContext(middleware.WithUser(req.Context(), userID, enums.UserTierNatural))
}

func TestCartFetchSuccess(t *testing.T) {
	userID := uuid.New()
	record := &models.Cart{
		ID:     uuid.New(),
		UserID: userID,
		Items: []models.CartItem{
			{
				ID:        uuid.New(),
				ProductID: uuid.New(),
				Quantity:  2,
				UnitPrice: decimal.RequireFromString("19.90"),
				Discount:  decimal.Zero,
			},
		},
	}
	handler := CartFetch(&stubCartService{cart: record}, nil)

	req := withUserContext(httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil), userID)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}

	var envelope struct {
		Data cartdto.CartView `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.ID != record.ID {
		t.Fatalf("unexpected cart id: %s", envelope.Data.ID)
	}
	if len(envelope.Data.Items) != 1 {
		t.Fatalf("expected 1 item got %d", len(envelope.Data.Items))
	}
	if envelope.Data.Subtotal.String() != "39.80" {
		t.Fatalf("unexpected subtotal: %s", envelope.Data.Subtotal)
	}
}

func TestCartFetchMissingUserContext(t *testing.T) {
	handler := CartFetch(&stubCartService{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestItemAddCreatedStatus(t *testing.T) {
	userID := uuid.New()
	productID := uuid.New()
	item := &models.CartItem{
		ID:        uuid.New(),
		ProductID: productID,
		Quantity:  3,
		UnitPrice: decimal.RequireFromString("120.00"),
	}
	service := &stubCartService{item: item, created: true}
	handler := ItemAdd(service, nil)

	body := fmt.Sprintf(`{"productId": "%s", "quantity": 3}`, productID)
	req := withUserContext(httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(body)), userID)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.Code)
	}

	var envelope struct {
		Data cartdto.CartItemView `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.ProductID != productID {
		t.Fatalf("unexpected product id: %s", envelope.Data.ProductID)
	}
	if envelope.Data.UnitPrice.String() != "120.00" {
		t.Fatalf("unexpected unit price: %s", envelope.Data.UnitPrice)
	}
}

func TestItemAddAccumulatedStatus(t *testing.T) {
	userID := uuid.New()
	productID := uuid.New()
	item := &models.CartItem{ID: uuid.New(), ProductID: productID, Quantity: 5}
	handler := ItemAdd(&stubCartService{item: item, created: false}, nil)

	body := fmt.Sprintf(`{"productId": "%s", "quantity": 2}`, productID)
	req := withUserContext(httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(body)), userID)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestItemAddRejectsInvalidBody(t *testing.T) {
	userID := uuid.New()
	handler := ItemAdd(&stubCartService{}, nil)

	req := withUserContext(httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(`{"quantity": 0}`)), userID)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestItemAddInsufficientStock(t *testing.T) {
	userID := uuid.New()
	productID := uuid.New()
	svcErr := pkgerrors.New(pkgerrors.CodeBusinessRule, "insufficient stock").WithDetails(map[string]any{
		"productId": productID.String(),
		"available": 5,
		"requested": 6,
	})
	handler := ItemAdd(&stubCartService{err: svcErr}, nil)

	body := fmt.Sprintf(`{"productId": "%s", "quantity": 6}`, productID)
	req := withUserContext(httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(body)), userID)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}

	var envelope struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Error.Code != string(pkgerrors.CodeBusinessRule) {
		t.Fatalf("unexpected error code: %s", envelope.Error.Code)
	}
	if envelope.Error.Details["available"] != float64(5) {
		t.Fatalf("expected available detail, got %v", envelope.Error.Details)
	}
}

func TestItemUpdateViaRouter(t *testing.T) {
	userID := uuid.New()
	itemID := uuid.New()
	item := &models.CartItem{ID: itemID, ProductID: uuid.New(), Quantity: 4}
	service := &stubCartService{item: item}

	r := chi.NewRouter()
	r.Patch("/api/v1/cart/items/{itemId}", ItemUpdate(service, nil))

	req := withUserContext(httptest.NewRequest(http.MethodPatch, "/api/v1/cart/items/"+itemID.String(), strings.NewReader(`{"quantity": 4}`)), userID)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestItemUpdateRejectsMalformedID(t *testing.T) {
	userID := uuid.New()
	r := chi.NewRouter()
	r.Patch("/api/v1/cart/items/{itemId}", ItemUpdate(&stubCartService{}, nil))

	req := withUserContext(httptest.NewRequest(http.MethodPatch, "/api/v1/cart/items/not-a-uuid", strings.NewReader(`{"quantity": 4}`)), userID)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestItemRemoveNoContent(t *testing.T) {
	userID := uuid.New()
	itemID := uuid.New()
	service := &stubCartService{}

	r := chi.NewRouter()
	r.Delete("/api/v1/cart/items/{itemId}", ItemRemove(service, nil))

	req := withUserContext(httptest.NewRequest(http.MethodDelete, "/api/v1/cart/items/"+itemID.String(), nil), userID)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", resp.Code)
	}
	if service.removedID != itemID {
		t.Fatalf("expected remove of %s got %s", itemID, service.removedID)
	}
}

func TestCartReplaceForwardsLines(t *testing.T) {
	userID := uuid.New()
	productID := uuid.New()
	record := &models.Cart{ID: uuid.New(), UserID: userID}
	service := &stubCartService{cart: record}
	handler := CartReplace(service, nil)

	body := fmt.Sprintf(`{"items": [{"productId": "%s", "quantity": 7}]}`, productID)
	req := withUserContext(httptest.NewRequest(http.MethodPut, "/api/v1/cart", strings.NewReader(body)), userID)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if len(service.lastInputs) != 1 || service.lastInputs[0].ProductID != productID || service.lastInputs[0].Quantity != 7 {
		t.Fatalf("unexpected inputs: %+v", service.lastInputs)
	}
}

func TestCartClearNoContent(t *testing.T) {
	userID := uuid.New()
	service := &stubCartService{}
	handler := CartClear(service, nil)

	req := withUserContext(httptest.NewRequest(http.MethodDelete, "/api/v1/cart", nil), userID)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", resp.Code)
	}
	if !service.cleared {
		t.Fatal("expected clear to be forwarded")
	}
}
