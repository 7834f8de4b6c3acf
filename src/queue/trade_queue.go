package queue

import (
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"

	"tradeanalyst/src/model"
)

// Queue is the single-slot handoff between "confirmed" and "executed":
// one pending trade per symbol, deduplicated by trade identifier. A trade
// stays claimable until its execution report is recorded (so a lost poll
// response is retryable) or its TTL lapses.
type Queue struct {
	mu       sync.Mutex
	slots    map[string]*model.PendingTrade // keyed by symbol
	consumed map[string]struct{}            // trade IDs that finished the handoff
	ttl      time.Duration
	now      func() time.Time
}

func New(ttl time.Duration) *Queue {
	return &Queue{
		slots:    make(map[string]*model.PendingTrade),
		consumed: make(map[string]struct{}),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Publish places a confirmed trade into its symbol's slot. Fails with
// ErrSlotOccupied when a live pending trade exists for the symbol, and
// with ErrConflict when the trade identifier has already been consumed.
func (q *Queue) Publish(p *model.PendingTrade) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, done := q.consumed[p.TradeID]; done {
		logger.WithFields(map[string]interface{}{
			"symbol":   p.Symbol,
			"trade_id": p.TradeID,
		}).Warn("Publish rejected, trade already consumed")

		return model.ErrConflict
	}

	if existing, ok := q.slots[p.Symbol]; ok && !q.stale(existing) {
		logger.WithFields(map[string]interface{}{
			"symbol":      p.Symbol,
			"trade_id":    p.TradeID,
			"existing_id": existing.TradeID,
		}).Warn("Publish rejected, slot occupied")

		return model.ErrSlotOccupied
	}

	if p.QueuedAt.IsZero() {
		p.QueuedAt = q.now()
	}
	q.slots[p.Symbol] = p

	logger.WithFields(map[string]interface{}{
		"symbol":   p.Symbol,
		"trade_id": p.TradeID,
		"ttl":      q.ttl,
	}).Info("Pending trade queued for execution")

	return nil
}

// Claim returns the live pending trade for a symbol, or nil. Claiming does
// not consume: the agent's poll may be lost and retried, so the slot stays
// until MarkConsumed records the execution report or the TTL lapses.
func (q *Queue) Claim(symbol string) *model.PendingTrade {
	q.mu.Lock()
	defer q.mu.Unlock()

	p, ok := q.slots[symbol]
	if !ok || q.stale(p) {
		return nil
	}

	if p.ClaimedAt.IsZero() {
		p.ClaimedAt = q.now()
	}

	copied := *p
	return &copied
}

// MarkConsumed closes the handoff for a trade identifier: the slot is
// destroyed and every later claim or republish for the same ID is refused.
func (q *Queue) MarkConsumed(symbol, tradeID string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.consumed[tradeID] = struct{}{}
	if p, ok := q.slots[symbol]; ok && p.TradeID == tradeID {
		delete(q.slots, symbol)
	}
}

// Consumed reports whether a trade identifier already finished the handoff.
func (q *Queue) Consumed(tradeID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	_, ok := q.consumed[tradeID]
	return ok
}

// ExpireStale removes pending trades past the TTL and returns them so the
// caller can settle their durable records. Safe to run repeatedly.
func (q *Queue) ExpireStale(now time.Time) []model.PendingTrade {
	q.mu.Lock()
	defer q.mu.Unlock()

	var expired []model.PendingTrade

	for symbol, p := range q.slots {
		if q.ttl > 0 && now.Sub(p.QueuedAt) > q.ttl {
			expired = append(expired, *p)
			q.consumed[p.TradeID] = struct{}{}
			delete(q.slots, symbol)

			logger.WithFields(map[string]interface{}{
				"symbol":   symbol,
				"trade_id": p.TradeID,
			}).Info("Pending trade expired unclaimed")
		}
	}

	return expired
}

// Snapshot returns a copy of every queued pending trade, for health output.
func (q *Queue) Snapshot() []model.PendingTrade {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]model.PendingTrade, 0, len(q.slots))
	for _, p := range q.slots {
		out = append(out, *p)
	}
	return out
}

func (q *Queue) stale(p *model.PendingTrade) bool {
	return q.ttl > 0 && q.now().Sub(p.QueuedAt) > q.ttl
}
