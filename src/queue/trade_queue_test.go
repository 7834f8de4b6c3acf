package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeanalyst/src/model"
)

func newPending(tradeID, symbol string) *model.PendingTrade {
	return &model.PendingTrade{
		TradeID:        tradeID,
		Symbol:         symbol,
		Bias:           model.BiasLong,
		EntryPrice:     195.10,
		StopLoss:       194.50,
		TP1:            195.70,
		TP2:            196.50,
		SizeSuggestion: 0.50,
		TP1ClosePct:    50,
	}
}

func newTestQueue(ttl time.Duration) (*Queue, *time.Time) {
	q := New(ttl)
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	clock := &now
	q.now = func() time.Time { return *clock }
	return q, clock
}

func TestQueueSingleSlotPerSymbol(t *testing.T) {
	q, _ := newTestQueue(time.Minute)

	require.NoError(t, q.Publish(newPending("aaaa1111", "GBPJPY")))

	err := q.Publish(newPending("bbbb2222", "GBPJPY"))
	assert.ErrorIs(t, err, model.ErrSlotOccupied)

	// A different symbol has its own slot.
	require.NoError(t, q.Publish(newPending("cccc3333", "EURUSD")))
}

func TestQueueClaimDoesNotConsume(t *testing.T) {
	q, _ := newTestQueue(time.Minute)
	require.NoError(t, q.Publish(newPending("aaaa1111", "GBPJPY")))

	first := q.Claim("GBPJPY")
	require.NotNil(t, first)
	assert.Equal(t, "aaaa1111", first.TradeID)
	assert.False(t, first.ClaimedAt.IsZero())

	// The response may have been lost; the retry sees the same trade.
	second := q.Claim("GBPJPY")
	require.NotNil(t, second)
	assert.Equal(t, "aaaa1111", second.TradeID)
}

func TestQueueConsumptionEndsHandoff(t *testing.T) {
	q, _ := newTestQueue(time.Minute)
	require.NoError(t, q.Publish(newPending("aaaa1111", "GBPJPY")))

	q.MarkConsumed("GBPJPY", "aaaa1111")

	assert.Nil(t, q.Claim("GBPJPY"))
	assert.True(t, q.Consumed("aaaa1111"))

	// Republishing the consumed identifier is refused; a new trade fits.
	assert.ErrorIs(t, q.Publish(newPending("aaaa1111", "GBPJPY")), model.ErrConflict)
	require.NoError(t, q.Publish(newPending("bbbb2222", "GBPJPY")))
}

func TestQueueTTLExpiry(t *testing.T) {
	q, clock := newTestQueue(time.Minute)
	require.NoError(t, q.Publish(newPending("aaaa1111", "GBPJPY")))

	*clock = clock.Add(61 * time.Second)

	assert.Nil(t, q.Claim("GBPJPY"))

	expired := q.ExpireStale(*clock)
	require.Len(t, expired, 1)
	assert.Equal(t, "aaaa1111", expired[0].TradeID)

	// The expired identifier is dead even if something tries again.
	assert.ErrorIs(t, q.Publish(newPending("aaaa1111", "GBPJPY")), model.ErrConflict)
}

func TestQueueSnapshot(t *testing.T) {
	q, _ := newTestQueue(time.Minute)
	require.NoError(t, q.Publish(newPending("aaaa1111", "GBPJPY")))
	require.NoError(t, q.Publish(newPending("bbbb2222", "EURUSD")))

	assert.Len(t, q.Snapshot(), 2)
}
