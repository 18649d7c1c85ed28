// Package audit emits structured records of cart mutations. Recording is
// fire-and-forget: a full buffer drops the entry and bumps a counter instead
// of blocking the request path.
package audit

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/distrihogar/storefront-backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Cart mutation actions.
const (
	ActionAdd     = "cart.add"
	ActionUpdate  = "cart.update"
	ActionRemove  = "cart.remove"
	ActionClear   = "cart.clear"
	ActionReplace = "cart.replace"
)

// Entry is a single cart mutation record.
type Entry struct {
	Action      string
	UserID      uuid.UUID
	CartID      uuid.UUID
	ProductID   uuid.UUID
	QtyDelta    int64
	ResultQty   int64
	UnitPrice   decimal.Decimal
	ItemCount   int
	Description string
}

// Recorder accepts cart mutation records.
type Recorder interface {
	Record(entry Entry)
}

// LogRecorder drains a buffered channel into the structured logger on a
// single background goroutine.
type LogRecorder struct {
	logg    *logger.Logger
	entries chan Entry
	dropped atomic.Int64

	closeOnce sync.Once
	done      chan struct{}
}

// NewLogRecorder starts the drain goroutine. Call Close on shutdown.
func NewLogRecorder(logg *logger.Logger, bufferSize int) *LogRecorder {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	r := &LogRecorder{
		logg:    logg,
		entries: make(chan Entry, bufferSize),
		done:    make(chan struct{}),
	}
	go r.drain()
	return r
}

// Record queues the entry. Never blocks: when the buffer is full the entry
// is dropped and counted.
func (r *LogRecorder) Record(entry Entry) {
	select {
	case r.entries <- entry:
	default:
		r.dropped.Add(1)
	}
}

// Dropped returns how many entries were discarded due to a full buffer.
func (r *LogRecorder) Dropped() int64 {
	return r.dropped.Load()
}

// Close stops accepting entries and waits for the buffer to flush.
func (r *LogRecorder) Close() {
	r.closeOnce.Do(func() {
		close(r.entries)
	})
	<-r.done
}

func (r *LogRecorder) drain() {
	defer close(r.done)
	for entry := range r.entries {
		r.write(entry)
	}
}

func (r *LogRecorder) write(entry Entry) {
	if r.logg == nil {
		return
	}
	ctx := r.logg.WithFields(context.Background(), map[string]any{
		"audit":      true,
		"action":     entry.Action,
		"user_id":    entry.UserID.String(),
		"cart_id":    entry.CartID.String(),
		"product_id": entry.ProductID.String(),
		"qty_delta":  entry.QtyDelta,
		"result_qty": entry.ResultQty,
		"unit_price": entry.UnitPrice.String(),
		"item_count": entry.ItemCount,
	})
	msg := entry.Description
	if msg == "" {
		msg = entry.Action
	}
	r.logg.Info(ctx, msg)
}
