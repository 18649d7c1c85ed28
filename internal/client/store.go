package client

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	pkgerrors "github.com/distrihogar/storefront-backend/pkg/errors"
	"github.com/distrihogar/storefront-backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ItemState tracks where a local line sits relative to the server.
type ItemState int

const (
	// StateOptimistic marks a line with an unacknowledged local change.
	StateOptimistic ItemState = iota
	// StateConfirmed marks a line matching the last known server state.
	StateConfirmed
)

const tempIDPrefix = "tmp_"

// Item is one line of the local cart.
type Item struct {
	ID        string
	ProductID uuid.UUID
	Quantity  int
	UnitPrice decimal.Decimal
	Discount  decimal.Decimal
	State     ItemState

	// confirmedQuantity is the last quantity the server acknowledged. A
	// failed add rolls back only the delta beyond this.
	confirmedQuantity int
}

func (i *Item) localOnly() bool {
	return strings.HasPrefix(i.ID, tempIDPrefix) && i.confirmedQuantity == 0
}

type pendingWrite struct {
	next *int

	// deferred marks a write queued while the line still carries a temp
	// id; the add completion launches it once the server id arrives.
	deferred bool
}

// StoreOptions configures the local cart store.
type StoreOptions struct {
	API    API
	Logger *logger.Logger

	// SessionValid reports whether the client still believes it holds a
	// live session. Used to classify a 401 during refresh as ambiguous.
	SessionValid func() bool

	// MinDestructiveLatency is the artificial floor applied to remove and
	// clear so destructive actions feel deliberate in the UI.
	MinDestructiveLatency time.Duration

	// OnError receives errors surfaced by background writes.
	OnError func(error)

	// Sleep is injectable for tests.
	Sleep func(time.Duration)
}

// Store is the optimistic cart state machine. Mutations apply locally first
// and reconcile against the server response; the server is authoritative for
// prices and quantities, while unconfirmed local work survives ambiguous
// server answers.
type Store struct {
	api          API
	logg         *logger.Logger
	sessionValid func() bool
	onError      func(error)
	sleep        func(time.Duration)
	minLatency   time.Duration

	mu      sync.Mutex
	items   map[uuid.UUID]*Item
	gen     map[uuid.UUID]uint64
	pending map[uuid.UUID]*pendingWrite
	wg      sync.WaitGroup
}

// NewStore builds an empty local cart store.
func NewStore(opts StoreOptions) (*Store, error) {
	if opts.API == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart api required")
	}
	if opts.SessionValid == nil {
		opts.SessionValid = func() bool { return true }
	}
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}
	if opts.OnError == nil {
		opts.OnError = func(error) {}
	}
	return &Store{
		api:          opts.API,
		logg:         opts.Logger,
		sessionValid: opts.SessionValid,
		onError:      opts.OnError,
		sleep:        opts.Sleep,
		minLatency:   opts.MinDestructiveLatency,
		items:        map[uuid.UUID]*Item{},
		gen:          map[uuid.UUID]uint64{},
		pending:      map[uuid.UUID]*pendingWrite{},
	}, nil
}

// Items returns a stable-ordered copy of the local cart.
func (s *Store) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Item, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, *item)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ProductID.String() < out[j].ProductID.String()
	})
	return out
}

// Quantity returns the local quantity for a product, zero when absent.
func (s *Store) Quantity(productID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item, ok := s.items[productID]; ok {
		return item.Quantity
	}
	return 0
}

// Wait blocks until every in-flight background write has settled.
func (s *Store) Wait() {
	s.wg.Wait()
}

// Add applies the quantity delta optimistically and issues the write in the
// background. An existing line for the product accumulates.
func (s *Store) Add(ctx context.Context, productID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	s.mu.Lock()
	item, ok := s.items[productID]
	if !ok {
		item = &Item{
			ID:        tempIDPrefix + uuid.NewString(),
			ProductID: productID,
			UnitPrice: decimal.Zero,
			Discount:  decimal.Zero,
		}
		s.items[productID] = item
	}
	item.Quantity += quantity
	item.State = StateOptimistic
	gen := s.bumpGen(productID)
	s.mu.Unlock()

	s.wg.Add(1)
	go s.completeAdd(ctx, productID, quantity, gen)
	return nil
}

func (s *Store) completeAdd(ctx context.Context, productID uuid.UUID, delta int, gen uint64) {
	defer s.wg.Done()

	snapshot, err := s.api.AddItem(ctx, productID, delta)

	s.mu.Lock()
	defer s.mu.Unlock()

	// A newer operation on this product owns the outcome now. Its error,
	// if any, is dropped with it: the superseding operation has already
	// reconciled or will, and reporting a stale failure would only
	// contradict the state the user sees.
	if s.gen[productID] != gen {
		return
	}
	item, ok := s.items[productID]
	if !ok {
		return
	}

	if err != nil {
		// A write queued behind the temp id has no server line to target.
		if p := s.pending[productID]; p != nil && p.deferred {
			delete(s.pending, productID)
		}
		// Roll back only the delta this write carried; a previously
		// confirmed quantity stays visible.
		item.Quantity -= delta
		if item.Quantity <= 0 && item.localOnly() {
			delete(s.items, productID)
		} else {
			if item.Quantity < item.confirmedQuantity {
				item.Quantity = item.confirmedQuantity
			}
			item.State = StateConfirmed
		}
		s.surface(err)
		return
	}

	// A quantity write queued while the line was temp-id'd launches now
	// that the server has named the line; identity and price are adopted
	// but the queued local quantity stays on display.
	if p := s.pending[productID]; p != nil && p.deferred && p.next != nil {
		item.ID = snapshot.ID
		item.UnitPrice = snapshot.UnitPrice
		item.Discount = snapshot.Discount
		item.confirmedQuantity = snapshot.Quantity
		p.deferred = false
		quantity := *p.next
		p.next = nil
		s.wg.Add(1)
		go s.runQuantityWrites(ctx, productID, snapshot.ID, quantity)
		return
	}

	s.adoptSnapshot(item, snapshot)
}

// SetQuantity applies the absolute quantity optimistically. Rapid calls for
// the same product coalesce so only the last desired quantity reaches the
// server.
func (s *Store) SetQuantity(ctx context.Context, productID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	s.mu.Lock()
	item, ok := s.items[productID]
	if !ok {
		s.mu.Unlock()
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not in cart")
	}
	item.Quantity = quantity
	item.State = StateOptimistic

	if strings.HasPrefix(item.ID, tempIDPrefix) {
		// The server has not named this line yet, so there is nothing to
		// PATCH. Queue the value; the in-flight add sends it once the
		// server id arrives. The add's generation stays live on purpose.
		q := quantity
		if p, ok := s.pending[productID]; ok {
			p.next = &q
		} else {
			s.pending[productID] = &pendingWrite{next: &q, deferred: true}
		}
		s.mu.Unlock()
		return nil
	}
	s.bumpGen(productID)

	if p, inFlight := s.pending[productID]; inFlight {
		// Supersede the queued value; the in-flight writer sends it as one
		// trailing write when the current request settles.
		q := quantity
		p.next = &q
		s.mu.Unlock()
		return nil
	}
	s.pending[productID] = &pendingWrite{}
	itemID := item.ID
	s.mu.Unlock()

	s.wg.Add(1)
	go s.runQuantityWrites(ctx, productID, itemID, quantity)
	return nil
}

func (s *Store) runQuantityWrites(ctx context.Context, productID uuid.UUID, itemID string, quantity int) {
	defer s.wg.Done()

	for {
		snapshot, err := s.api.UpdateItem(ctx, itemID, quantity)

		s.mu.Lock()
		if err != nil {
			delete(s.pending, productID)
			if item, ok := s.items[productID]; ok {
				// Revert to the last acknowledged quantity so the reload
				// below adopts the server's answer instead of keeping the
				// failed optimistic value.
				item.Quantity = item.confirmedQuantity
				item.State = StateConfirmed
			}
			s.mu.Unlock()
			s.surface(err)
			s.reloadAuthoritative(ctx)
			return
		}

		item, ok := s.items[productID]
		p := s.pending[productID]
		if !ok || p == nil {
			delete(s.pending, productID)
			s.mu.Unlock()
			return
		}

		if p.next == nil {
			s.adoptSnapshot(item, snapshot)
			delete(s.pending, productID)
			s.mu.Unlock()
			return
		}

		// Server is authoritative for price even while quantities are
		// still catching up.
		item.UnitPrice = snapshot.UnitPrice
		item.Discount = snapshot.Discount
		item.confirmedQuantity = snapshot.Quantity
		quantity = *p.next
		p.next = nil
		s.mu.Unlock()
	}
}

// Remove deletes the line. A line the server never acknowledged is dropped
// locally with no network call.
func (s *Store) Remove(ctx context.Context, productID uuid.UUID) error {
	s.mu.Lock()
	item, ok := s.items[productID]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	if p := s.pending[productID]; p != nil && p.deferred {
		delete(s.pending, productID)
	}
	if item.localOnly() {
		delete(s.items, productID)
		s.bumpGen(productID)
		s.mu.Unlock()
		return nil
	}

	removed := *item
	delete(s.items, productID)
	s.bumpGen(productID)
	s.mu.Unlock()

	start := time.Now()
	err := s.api.RemoveItem(ctx, removed.ID)
	s.holdFloor(start)

	if err != nil {
		s.reloadAuthoritative(ctx)
		return err
	}
	return nil
}

// Clear empties the cart locally and on the server.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	previous := s.items
	s.items = map[uuid.UUID]*Item{}
	for productID := range previous {
		s.bumpGen(productID)
		if p := s.pending[productID]; p != nil && p.deferred {
			delete(s.pending, productID)
		}
	}
	s.mu.Unlock()

	start := time.Now()
	err := s.api.ClearCart(ctx)
	s.holdFloor(start)

	if err != nil {
		s.reloadAuthoritative(ctx)
		return err
	}
	return nil
}

// Refresh fetches the authoritative cart and reconciles it into local
// state. Unconfirmed local lines survive; a 401 while the session still
// looks valid is ambiguous and never clears visible state.
func (s *Store) Refresh(ctx context.Context) error {
	snapshot, err := s.api.GetCart(ctx)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) && s.sessionValid() {
			s.warn(ctx, "cart refresh returned unauthorized while session looks valid, keeping local state")
			return nil
		}
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	hadConfirmed := false
	for _, item := range s.items {
		if item.State == StateConfirmed || item.confirmedQuantity > 0 {
			hadConfirmed = true
			break
		}
	}

	// An explicitly empty server cart contradicting previously confirmed
	// state means the server won (cleared elsewhere); everything goes.
	if len(snapshot.Items) == 0 && hadConfirmed {
		s.items = map[uuid.UUID]*Item{}
		return nil
	}

	seen := map[uuid.UUID]struct{}{}
	for _, remote := range snapshot.Items {
		seen[remote.ProductID] = struct{}{}
		item, ok := s.items[remote.ProductID]
		if !ok {
			s.items[remote.ProductID] = &Item{
				ID:                remote.ID,
				ProductID:         remote.ProductID,
				Quantity:          remote.Quantity,
				UnitPrice:         remote.UnitPrice,
				Discount:          remote.Discount,
				State:             StateConfirmed,
				confirmedQuantity: remote.Quantity,
			}
			continue
		}
		if item.State == StateOptimistic {
			// A write is in flight for this line; adopt the server's
			// authoritative price but keep the local quantity.
			item.ID = remote.ID
			item.UnitPrice = remote.UnitPrice
			item.Discount = remote.Discount
			item.confirmedQuantity = remote.Quantity
			continue
		}
		snap := remote
		s.adoptSnapshot(item, &snap)
	}

	for productID, item := range s.items {
		if _, ok := seen[productID]; ok {
			continue
		}
		// Confirmed lines the server no longer has are gone; purely
		// optimistic work stays until its own write settles.
		if item.State == StateConfirmed {
			delete(s.items, productID)
		}
	}
	return nil
}

// ReplaceAll swaps the whole cart on the server and adopts the result.
func (s *Store) ReplaceAll(ctx context.Context, items []ItemPayload) error {
	snapshot, err := s.api.ReplaceCart(ctx, items)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = map[uuid.UUID]*Item{}
	for _, remote := range snapshot.Items {
		s.items[remote.ProductID] = &Item{
			ID:                remote.ID,
			ProductID:         remote.ProductID,
			Quantity:          remote.Quantity,
			UnitPrice:         remote.UnitPrice,
			Discount:          remote.Discount,
			State:             StateConfirmed,
			confirmedQuantity: remote.Quantity,
		}
	}
	return nil
}

func (s *Store) adoptSnapshot(item *Item, snapshot *ItemSnapshot) {
	item.ID = snapshot.ID
	item.Quantity = snapshot.Quantity
	item.UnitPrice = snapshot.UnitPrice
	item.Discount = snapshot.Discount
	item.confirmedQuantity = snapshot.Quantity
	item.State = StateConfirmed
}

func (s *Store) reloadAuthoritative(ctx context.Context) {
	if err := s.Refresh(ctx); err != nil {
		s.warn(ctx, "authoritative cart reload failed: "+err.Error())
	}
}

func (s *Store) bumpGen(productID uuid.UUID) uint64 {
	s.gen[productID]++
	return s.gen[productID]
}

func (s *Store) holdFloor(start time.Time) {
	if s.minLatency <= 0 {
		return
	}
	if elapsed := time.Since(start); elapsed < s.minLatency {
		s.sleep(s.minLatency - elapsed)
	}
}

func (s *Store) surface(err error) {
	s.onError(err)
}

func (s *Store) warn(ctx context.Context, msg string) {
	if s.logg != nil {
		s.logg.Warn(ctx, msg)
	}
}
