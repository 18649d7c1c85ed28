package client

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	pkgerrors "github.com/distrihogar/storefront-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	mu sync.Mutex

	cart      CartSnapshot
	addErr    error
	updateErr error
	removeErr error
	getErr    error

	block chan struct{}

	addCalls    int
	updateCalls int
	removeCalls int
	getCalls    int
	updatedQtys []int
	updatedIDs  []string
}

func (f *fakeAPI) waitIfBlocked() {
	f.mu.Lock()
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
}

func (f *fakeAPI) GetCart(ctx context.Context) (*CartSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	cart := f.cart
	return &cart, nil
}

func (f *fakeAPI) AddItem(ctx context.Context, productID uuid.UUID, quantity int) (*ItemSnapshot, error) {
	f.waitIfBlocked()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addCalls++
	if f.addErr != nil {
		return nil, f.addErr
	}
	existing := 0
	for _, item := range f.cart.Items {
		if item.ProductID == productID {
			existing = item.Quantity
		}
	}
	return &ItemSnapshot{
		ID:        "srv-" + productID.String()[:8],
		ProductID: productID,
		Quantity:  existing + quantity,
		UnitPrice: decimal.RequireFromString("10.00"),
		Discount:  decimal.Zero,
	}, nil
}

func (f *fakeAPI) UpdateItem(ctx context.Context, itemID string, quantity int) (*ItemSnapshot, error) {
	f.waitIfBlocked()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	f.updatedQtys = append(f.updatedQtys, quantity)
	f.updatedIDs = append(f.updatedIDs, itemID)
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	var productID uuid.UUID
	for _, item := range f.cart.Items {
		if item.ID == itemID {
			productID = item.ProductID
		}
	}
	return &ItemSnapshot{
		ID:        itemID,
		ProductID: productID,
		Quantity:  quantity,
		UnitPrice: decimal.RequireFromString("10.00"),
		Discount:  decimal.Zero,
	}, nil
}

func (f *fakeAPI) RemoveItem(ctx context.Context, itemID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeCalls++
	return f.removeErr
}

func (f *fakeAPI) ClearCart(ctx context.Context) error {
	return nil
}

func (f *fakeAPI) ReplaceCart(ctx context.Context, items []ItemPayload) (*CartSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cart := f.cart
	return &cart, nil
}

func newTestStore(t *testing.T, api API, opts ...func(*StoreOptions)) (*Store, *[]error) {
	t.Helper()
	var errs []error
	var mu sync.Mutex
	options := StoreOptions{
		API: api,
		OnError: func(err error) {
			mu.Lock()
			defer mu.Unlock()
			errs = append(errs, err)
		},
		Sleep: func(time.Duration) {},
	}
	for _, opt := range opts {
		opt(&options)
	}
	store, err := NewStore(options)
	require.NoError(t, err)
	return store, &errs
}

func serverItem(productID uuid.UUID, quantity int, price string) ItemSnapshot {
	return ItemSnapshot{
		ID:        "srv-" + productID.String()[:8],
		ProductID: productID,
		Quantity:  quantity,
		UnitPrice: decimal.RequireFromString(price),
		Discount:  decimal.Zero,
	}
}

func TestAddAppliesOptimisticallyThenConfirms(t *testing.T) {
	api := &fakeAPI{block: make(chan struct{})}
	store, _ := newTestStore(t, api)
	productID := uuid.New()

	require.NoError(t, store.Add(context.Background(), productID, 2))

	// Optimistic state is visible immediately, before the write settles.
	require.Equal(t, 2, store.Quantity(productID))
	items := store.Items()
	require.Len(t, items, 1)
	require.True(t, strings.HasPrefix(items[0].ID, "tmp_"))
	require.Equal(t, StateOptimistic, items[0].State)

	close(api.block)
	store.Wait()

	items = store.Items()
	require.Len(t, items, 1)
	require.False(t, strings.HasPrefix(items[0].ID, "tmp_"))
	require.Equal(t, StateConfirmed, items[0].State)
	require.True(t, items[0].UnitPrice.Equal(decimal.RequireFromString("10.00")))
}

func TestAddRollbackLeavesNoOrphanedItem(t *testing.T) {
	api := &fakeAPI{addErr: pkgerrors.New(pkgerrors.CodeBusinessRule, "insufficient stock")}
	store, errs := newTestStore(t, api)
	productID := uuid.New()

	require.NoError(t, store.Add(context.Background(), productID, 2))
	require.Equal(t, 2, store.Quantity(productID))

	store.Wait()

	require.Equal(t, 0, store.Quantity(productID))
	require.Empty(t, store.Items())
	require.Len(t, *errs, 1)
	require.True(t, pkgerrors.IsCode((*errs)[0], pkgerrors.CodeBusinessRule))
}

func TestAddRollbackPreservesConfirmedQuantity(t *testing.T) {
	productID := uuid.New()
	api := &fakeAPI{
		cart: CartSnapshot{Items: []ItemSnapshot{serverItem(productID, 1, "10.00")}},
	}
	store, _ := newTestStore(t, api)
	require.NoError(t, store.Refresh(context.Background()))
	require.Equal(t, 1, store.Quantity(productID))

	api.mu.Lock()
	api.addErr = pkgerrors.New(pkgerrors.CodeBusinessRule, "insufficient stock")
	api.mu.Unlock()

	require.NoError(t, store.Add(context.Background(), productID, 4))
	require.Equal(t, 5, store.Quantity(productID))
	store.Wait()

	// Only the failed delta is rolled back.
	require.Equal(t, 1, store.Quantity(productID))
}

func TestRefreshAmbiguousUnauthorizedKeepsLocalState(t *testing.T) {
	first := uuid.New()
	second := uuid.New()
	third := uuid.New()
	api := &fakeAPI{
		cart: CartSnapshot{Items: []ItemSnapshot{
			serverItem(first, 1, "10.00"),
			serverItem(second, 2, "20.00"),
			serverItem(third, 3, "30.00"),
		}},
	}
	store, _ := newTestStore(t, api)
	require.NoError(t, store.Refresh(context.Background()))
	require.Len(t, store.Items(), 3)

	api.mu.Lock()
	api.getErr = pkgerrors.New(pkgerrors.CodeUnauthorized, "session invalid, please re-authenticate")
	api.mu.Unlock()

	// The session still looks valid locally, so the 401 is ambiguous and
	// must not clear the visible cart.
	require.NoError(t, store.Refresh(context.Background()))
	require.Len(t, store.Items(), 3)
}

func TestRefreshEmptyServerCartOverridesConfirmedState(t *testing.T) {
	productID := uuid.New()
	api := &fakeAPI{
		cart: CartSnapshot{Items: []ItemSnapshot{serverItem(productID, 2, "10.00")}},
	}
	store, _ := newTestStore(t, api)
	require.NoError(t, store.Refresh(context.Background()))
	require.Len(t, store.Items(), 1)

	api.mu.Lock()
	api.cart = CartSnapshot{}
	api.mu.Unlock()

	require.NoError(t, store.Refresh(context.Background()))
	require.Empty(t, store.Items())
}

func TestRefreshPreservesOptimisticOnlyItems(t *testing.T) {
	confirmed := uuid.New()
	optimistic := uuid.New()
	api := &fakeAPI{
		cart:  CartSnapshot{Items: []ItemSnapshot{serverItem(confirmed, 1, "10.00")}},
		block: make(chan struct{}),
	}
	store, _ := newTestStore(t, api)
	require.NoError(t, store.Refresh(context.Background()))

	// An add is still in flight for a product the server has never seen.
	require.NoError(t, store.Add(context.Background(), optimistic, 1))

	require.NoError(t, store.Refresh(context.Background()))
	require.Len(t, store.Items(), 2)

	close(api.block)
	store.Wait()
}

func TestSetQuantityCoalescesRapidUpdates(t *testing.T) {
	productID := uuid.New()
	api := &fakeAPI{
		cart:  CartSnapshot{Items: []ItemSnapshot{serverItem(productID, 1, "10.00")}},
		block: make(chan struct{}),
	}
	store, _ := newTestStore(t, api)
	require.NoError(t, store.Refresh(context.Background()))

	ctx := context.Background()
	require.NoError(t, store.SetQuantity(ctx, productID, 2))
	require.NoError(t, store.SetQuantity(ctx, productID, 3))
	require.NoError(t, store.SetQuantity(ctx, productID, 4))

	// Intermediate values never reach the server; the in-flight write is
	// followed by exactly one trailing write with the final quantity.
	close(api.block)
	store.Wait()

	api.mu.Lock()
	defer api.mu.Unlock()
	require.Equal(t, 2, api.updateCalls)
	require.Equal(t, []int{2, 4}, api.updatedQtys)
	require.Equal(t, 4, store.Quantity(productID))
}

func TestSetQuantityDuringInFlightAddWaitsForServerID(t *testing.T) {
	api := &fakeAPI{block: make(chan struct{})}
	store, errs := newTestStore(t, api)
	productID := uuid.New()

	require.NoError(t, store.Add(context.Background(), productID, 1))
	// The add has not settled, so the line still carries a placeholder id.
	require.NoError(t, store.SetQuantity(context.Background(), productID, 5))
	require.Equal(t, 5, store.Quantity(productID))

	close(api.block)
	store.Wait()

	api.mu.Lock()
	defer api.mu.Unlock()
	require.Equal(t, 1, api.addCalls)
	// The quantity write waits for the server-assigned id; a placeholder id
	// must never go over the wire.
	require.Equal(t, []string{"srv-" + productID.String()[:8]}, api.updatedIDs)
	require.Equal(t, []int{5}, api.updatedQtys)

	items := store.Items()
	require.Len(t, items, 1)
	require.False(t, strings.HasPrefix(items[0].ID, "tmp_"))
	require.Equal(t, 5, items[0].Quantity)
	require.Equal(t, StateConfirmed, items[0].State)
	require.Empty(t, *errs)
}

func TestSetQuantityFailureReloadsAuthoritativeCart(t *testing.T) {
	productID := uuid.New()
	api := &fakeAPI{
		cart:      CartSnapshot{Items: []ItemSnapshot{serverItem(productID, 1, "10.00")}},
		updateErr: pkgerrors.New(pkgerrors.CodeBusinessRule, "insufficient stock"),
	}
	store, errs := newTestStore(t, api)
	require.NoError(t, store.Refresh(context.Background()))

	require.NoError(t, store.SetQuantity(context.Background(), productID, 9))
	require.Equal(t, 9, store.Quantity(productID))
	store.Wait()

	// The authoritative quantity replaces the failed optimistic one.
	require.Equal(t, 1, store.Quantity(productID))
	require.Len(t, *errs, 1)
}

func TestRemoveLocalOnlyItemSkipsNetwork(t *testing.T) {
	api := &fakeAPI{block: make(chan struct{})}
	store, _ := newTestStore(t, api)
	productID := uuid.New()

	require.NoError(t, store.Add(context.Background(), productID, 1))
	require.NoError(t, store.Remove(context.Background(), productID))
	require.Empty(t, store.Items())

	close(api.block)
	store.Wait()

	api.mu.Lock()
	defer api.mu.Unlock()
	require.Equal(t, 0, api.removeCalls)
	// The settled add must not resurrect the removed line.
	require.Empty(t, store.Items())
}

func TestRemoveConfirmedItemCallsServer(t *testing.T) {
	productID := uuid.New()
	api := &fakeAPI{
		cart: CartSnapshot{Items: []ItemSnapshot{serverItem(productID, 2, "10.00")}},
	}
	store, _ := newTestStore(t, api)
	require.NoError(t, store.Refresh(context.Background()))

	require.NoError(t, store.Remove(context.Background(), productID))
	require.Empty(t, store.Items())

	api.mu.Lock()
	defer api.mu.Unlock()
	require.Equal(t, 1, api.removeCalls)
}

func TestDestructiveOperationsHoldLatencyFloor(t *testing.T) {
	productID := uuid.New()
	api := &fakeAPI{
		cart: CartSnapshot{Items: []ItemSnapshot{serverItem(productID, 2, "10.00")}},
	}

	var slept time.Duration
	store, _ := newTestStore(t, api, func(opts *StoreOptions) {
		opts.MinDestructiveLatency = 120 * time.Millisecond
		opts.Sleep = func(d time.Duration) { slept += d }
	})
	require.NoError(t, store.Refresh(context.Background()))

	require.NoError(t, store.Remove(context.Background(), productID))
	require.Greater(t, slept, time.Duration(0))
}
