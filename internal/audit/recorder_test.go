package audit

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/distrihogar/storefront-backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestRecorderWritesStructuredEntry(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{
		ServiceName: "audit-test",
		Level:       zerolog.InfoLevel,
		Output:      &buf,
	})

	recorder := NewLogRecorder(logg, 8)

	userID := uuid.New()
	recorder.Record(Entry{
		Action:    ActionAdd,
		UserID:    userID,
		CartID:    uuid.New(),
		ProductID: uuid.New(),
		QtyDelta:  2,
		ResultQty: 5,
		UnitPrice: decimal.RequireFromString("19.90"),
		ItemCount: 3,
	})
	recorder.Close()

	line := strings.TrimSpace(buf.String())
	require.NotEmpty(t, line)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &payload))
	require.Equal(t, ActionAdd, payload["action"])
	require.Equal(t, userID.String(), payload["user_id"])
	require.Equal(t, float64(2), payload["qty_delta"])
	require.Equal(t, float64(5), payload["result_qty"])
	require.Equal(t, "19.90", payload["unit_price"])
}

func TestRecorderDropsWhenBufferFull(t *testing.T) {
	// No drain goroutine can keep up with a buffer of one if we flood it
	// before yielding, so at least some entries must be counted as dropped.
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "audit-test", Output: &buf})

	recorder := &LogRecorder{
		logg:    logg,
		entries: make(chan Entry, 1),
		done:    make(chan struct{}),
	}

	for i := 0; i < 10; i++ {
		recorder.Record(Entry{Action: ActionClear})
	}
	require.Greater(t, recorder.Dropped(), int64(0))

	go recorder.drain()
	recorder.Close()
}
