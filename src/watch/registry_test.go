package watch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeanalyst/src/model"
)

func newWatch(tradeID, symbol string, expiresAt time.Time) *model.Watch {
	return &model.Watch{
		TradeID: tradeID,
		Symbol:  symbol,
		Status:  model.WatchStatusWatching,
		Setup: model.TradeSetup{
			Symbol:      symbol,
			Bias:        model.BiasLong,
			EntryMin:    195.00,
			EntryMax:    195.20,
			StopLoss:    194.50,
			TP1:         195.70,
			TP2:         196.50,
			MaxAttempts: 3,
		},
		CreatedAt: time.Now(),
		ExpiresAt: expiresAt,
	}
}

func TestRegistryOneWatchPerSymbol(t *testing.T) {
	r := NewRegistry()
	expiry := time.Now().Add(time.Hour)

	require.NoError(t, r.Open(newWatch("aaaa1111", "GBPJPY", expiry)))

	err := r.Open(newWatch("bbbb2222", "GBPJPY", expiry))
	assert.ErrorIs(t, err, model.ErrConflict)

	// The earliest registration survives the conflict.
	w := r.Get("GBPJPY")
	require.NotNil(t, w)
	assert.Equal(t, "aaaa1111", w.TradeID)

	// A second instrument is independent.
	require.NoError(t, r.Open(newWatch("cccc3333", "EURUSD", expiry)))
}

func TestRegistryTerminalWatchFreesSlot(t *testing.T) {
	r := NewRegistry()
	expiry := time.Now().Add(time.Hour)

	first := newWatch("aaaa1111", "GBPJPY", expiry)
	require.NoError(t, r.Open(first))

	first.Status = model.WatchStatusExpired
	assert.Nil(t, r.Get("GBPJPY"))

	require.NoError(t, r.Open(newWatch("bbbb2222", "GBPJPY", expiry)))
}

func TestRegistryClearChecksTradeID(t *testing.T) {
	r := NewRegistry()
	expiry := time.Now().Add(time.Hour)

	require.NoError(t, r.Open(newWatch("aaaa1111", "GBPJPY", expiry)))

	r.Clear("GBPJPY", "wrong-id")
	assert.NotNil(t, r.Get("GBPJPY"))

	r.Clear("GBPJPY", "aaaa1111")
	assert.Nil(t, r.Get("GBPJPY"))
}

func TestRegistryExpireSweep(t *testing.T) {
	r := NewRegistry()
	now := time.Now()

	require.NoError(t, r.Open(newWatch("aaaa1111", "GBPJPY", now.Add(-time.Minute))))
	require.NoError(t, r.Open(newWatch("bbbb2222", "EURUSD", now.Add(time.Hour))))

	expired := r.ExpireSweep(now)
	require.Len(t, expired, 1)
	assert.Equal(t, "aaaa1111", expired[0].TradeID)
	assert.Equal(t, model.WatchStatusExpired, expired[0].Status)

	assert.Nil(t, r.Get("GBPJPY"))
	assert.NotNil(t, r.Get("EURUSD"))

	// Running again changes nothing.
	assert.Empty(t, r.ExpireSweep(now))
}
