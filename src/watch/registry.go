package watch

import (
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"

	"tradeanalyst/src/model"
)

// Registry holds the active watches, at most one non-terminal watch per
// symbol. It is an in-memory cache of the durable store and must stay
// rebuildable from it at any time.
type Registry struct {
	mu      sync.RWMutex
	watches map[string]*model.Watch // keyed by symbol
}

func NewRegistry() *Registry {
	return &Registry{watches: make(map[string]*model.Watch)}
}

// Open registers a watch. Fails with ErrConflict when a non-terminal watch
// already exists for the symbol; the earliest-created state wins.
func (r *Registry) Open(w *model.Watch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.watches[w.Symbol]; ok && !existing.Terminal() {
		logger.WithFields(map[string]interface{}{
			"symbol":      w.Symbol,
			"trade_id":    w.TradeID,
			"existing_id": existing.TradeID,
		}).Warn("Watch rejected, instrument already watched")

		return model.ErrConflict
	}

	r.watches[w.Symbol] = w

	logger.WithFields(map[string]interface{}{
		"symbol":   w.Symbol,
		"trade_id": w.TradeID,
		"bias":     w.Setup.Bias,
		"expires":  w.ExpiresAt,
	}).Info("Watch opened")

	return nil
}

// Get returns the active (non-terminal) watch for a symbol, or nil.
func (r *Registry) Get(symbol string) *model.Watch {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w, ok := r.watches[symbol]
	if !ok || w.Terminal() {
		return nil
	}
	return w
}

// Clear removes the watch for a symbol if it carries the given trade ID.
func (r *Registry) Clear(symbol, tradeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if w, ok := r.watches[symbol]; ok && w.TradeID == tradeID {
		delete(r.watches, symbol)
	}
}

// ExpireSweep transitions every watch past its expiry to expired and
// returns the watches it expired. Idempotent and safe to run concurrently
// with confirmation attempts: expiry always wins the race.
func (r *Registry) ExpireSweep(now time.Time) []*model.Watch {
	r.mu.Lock()
	defer r.mu.Unlock()

	var expired []*model.Watch

	for symbol, w := range r.watches {
		if w.Terminal() {
			delete(r.watches, symbol)
			continue
		}
		if !w.ExpiresAt.IsZero() && !now.Before(w.ExpiresAt) {
			w.Status = model.WatchStatusExpired
			expired = append(expired, w)
			delete(r.watches, symbol)

			logger.WithFields(map[string]interface{}{
				"symbol":   symbol,
				"trade_id": w.TradeID,
				"attempts": w.AttemptsUsed,
			}).Info("Watch expired, trading window closed")
		}
	}

	return expired
}

// Snapshot returns a copy of every live watch, for health reporting.
func (r *Registry) Snapshot() []model.Watch {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Watch, 0, len(r.watches))
	for _, w := range r.watches {
		out = append(out, *w)
	}
	return out
}
