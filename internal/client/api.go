// Package client is the Go consumer of the cart API: a typed HTTP transport
// plus an optimistic local cart store that reconciles against server
// responses. UI layers talk to the Store, never to the transport directly.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	pkgerrors "github.com/distrihogar/storefront-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ItemSnapshot is the server-confirmed shape of one cart line.
type ItemSnapshot struct {
	ID        string          `json:"id"`
	ProductID uuid.UUID       `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Discount  decimal.Decimal `json:"discount"`
}

// CartSnapshot is the server-confirmed cart.
type CartSnapshot struct {
	ID    string         `json:"id"`
	Items []ItemSnapshot `json:"items"`
}

// ItemPayload is one line of a bulk replacement.
type ItemPayload struct {
	ProductID uuid.UUID `json:"productId"`
	Quantity  int       `json:"quantity"`
}

// API is the transport surface the Store depends on.
type API interface {
	GetCart(ctx context.Context) (*CartSnapshot, error)
	AddItem(ctx context.Context, productID uuid.UUID, quantity int) (*ItemSnapshot, error)
	UpdateItem(ctx context.Context, itemID string, quantity int) (*ItemSnapshot, error)
	RemoveItem(ctx context.Context, itemID string) error
	ClearCart(ctx context.Context) error
	ReplaceCart(ctx context.Context, items []ItemPayload) (*CartSnapshot, error)
}

// TokenProvider supplies the bearer token and the anti-forgery token for
// mutating calls. Refresh is invoked after a security-token rejection.
type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
	AntiForgeryToken(ctx context.Context) (string, error)
	RefreshAntiForgeryToken(ctx context.Context) (string, error)
}

// HTTPAPI talks to the cart endpoints over HTTP.
type HTTPAPI struct {
	baseURL string
	http    *http.Client
	tokens  TokenProvider
}

// NewHTTPAPI builds the transport.
func NewHTTPAPI(baseURL string, httpClient *http.Client, tokens TokenProvider) (*HTTPAPI, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base url required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token provider required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPAPI{baseURL: baseURL, http: httpClient, tokens: tokens}, nil
}

// GetCart fetches the authoritative cart.
func (a *HTTPAPI) GetCart(ctx context.Context) (*CartSnapshot, error) {
	var cart CartSnapshot
	if err := a.do(ctx, http.MethodGet, "/api/v1/cart", nil, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

// AddItem adds quantity of a product to the server cart.
func (a *HTTPAPI) AddItem(ctx context.Context, productID uuid.UUID, quantity int) (*ItemSnapshot, error) {
	body := map[string]any{"productId": productID, "quantity": quantity}
	var item ItemSnapshot
	if err := a.do(ctx, http.MethodPost, "/api/v1/cart/items", body, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateItem sets the absolute quantity of an existing line.
func (a *HTTPAPI) UpdateItem(ctx context.Context, itemID string, quantity int) (*ItemSnapshot, error) {
	body := map[string]any{"quantity": quantity}
	var item ItemSnapshot
	if err := a.do(ctx, http.MethodPatch, "/api/v1/cart/items/"+itemID, body, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// RemoveItem deletes a line.
func (a *HTTPAPI) RemoveItem(ctx context.Context, itemID string) error {
	return a.do(ctx, http.MethodDelete, "/api/v1/cart/items/"+itemID, nil, nil)
}

// ClearCart removes every line.
func (a *HTTPAPI) ClearCart(ctx context.Context) error {
	return a.do(ctx, http.MethodDelete, "/api/v1/cart", nil, nil)
}

// ReplaceCart swaps the whole cart for the provided lines.
func (a *HTTPAPI) ReplaceCart(ctx context.Context, items []ItemPayload) (*CartSnapshot, error) {
	body := map[string]any{"items": items}
	var cart CartSnapshot
	if err := a.do(ctx, http.MethodPut, "/api/v1/cart", body, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

// do issues the request once, and exactly once more after refreshing the
// anti-forgery token if the first attempt was rejected as a stale token.
func (a *HTTPAPI) do(ctx context.Context, method, path string, body, dest any) error {
	err := a.doOnce(ctx, method, path, body, dest)
	if err == nil || !pkgerrors.IsCode(err, pkgerrors.CodeSecurityToken) {
		return err
	}
	if _, refreshErr := a.tokens.RefreshAntiForgeryToken(ctx); refreshErr != nil {
		return err
	}
	return a.doOnce(ctx, method, path, body, dest)
}

func (a *HTTPAPI) doOnce(ctx context.Context, method, path string, body, dest any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode request body")
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	access, err := a.tokens.AccessToken(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "load access token")
	}
	req.Header.Set("Authorization", "Bearer "+access)

	if method != http.MethodGet {
		csrf, err := a.tokens.AntiForgeryToken(ctx)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeSecurityToken, err, "load anti-forgery token")
		}
		req.Header.Set("X-CSRF-Token", csrf)
	}

	res, err := a.http.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cart api unreachable")
	}
	defer res.Body.Close()

	payload, err := io.ReadAll(res.Body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read cart api response")
	}

	if res.StatusCode >= 400 {
		return decodeAPIError(res.StatusCode, payload)
	}
	if dest == nil {
		return nil
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode cart api response")
	}
	if err := json.Unmarshal(envelope.Data, dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode cart api payload")
	}
	return nil
}

// decodeAPIError turns the server's error envelope into a coded error the
// reducer can branch on. Unrecognized payloads degrade to a dependency
// error instead of being string-sniffed.
func decodeAPIError(status int, payload []byte) error {
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(payload, &envelope); err == nil && envelope.Error.Code != "" {
		return pkgerrors.New(pkgerrors.Code(envelope.Error.Code), envelope.Error.Message)
	}
	if status == http.StatusUnauthorized {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "session invalid, please re-authenticate")
	}
	return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("cart api returned status %d", status))
}
