package watch

import (
	"context"
	"time"

	logger "github.com/sirupsen/logrus"

	"tradeanalyst/src/model"
)

// Verdict is the external confirmation check's answer for one attempt.
type Verdict struct {
	Confirmed bool
	Reasoning string
}

// Checker is the external confirmation collaborator consulted once per
// counted attempt. Implementations must respect the context deadline.
type Checker interface {
	ConfirmEntry(ctx context.Context, w *model.Watch, currentPrice float64) (Verdict, error)
}

// Outcome classifies what a zone-touch report did to the watch.
type Outcome int

const (
	// OutcomeAccepted: verdict positive, watch confirmed.
	OutcomeAccepted Outcome = iota
	// OutcomeRejected: verdict negative, attempts remain.
	OutcomeRejected
	// OutcomeExhausted: verdict negative and that was the last attempt.
	OutcomeExhausted
	// OutcomeCooldown: attempt arrived before the cooldown elapsed; not counted.
	OutcomeCooldown
	// OutcomeOutOfZone: price left the zone; not counted.
	OutcomeOutOfZone
	// OutcomeExpired: the watch expired before or during the attempt.
	OutcomeExpired
	// OutcomeNotFound: no active watch matches the symbol and trade ID.
	OutcomeNotFound
	// OutcomeCheckFailed: the external check was unreachable; not counted.
	OutcomeCheckFailed
)

// AttemptResult is the coordinator's structured answer to one report.
type AttemptResult struct {
	Outcome   Outcome
	Reasoning string
	Remaining int
	Watch     *model.Watch
}

// Coordinator drives the bounded-retry confirmation state machine:
// WATCHING -> (attempt) -> WATCHING | CONFIRMED | EXPIRED.
type Coordinator struct {
	registry *Registry
	checker  Checker
	cooldown time.Duration
	now      func() time.Time
}

func NewCoordinator(registry *Registry, checker Checker, cooldown time.Duration) *Coordinator {
	return &Coordinator{
		registry: registry,
		checker:  checker,
		cooldown: cooldown,
		now:      time.Now,
	}
}

// Attempt processes one zone-touch report. An attempt is counted only when
// the watch is active, the price is inside the zone, the cooldown has
// elapsed and attempts remain; everything else is a no-op for the counter.
func (c *Coordinator) Attempt(
	ctx context.Context,
	symbol, tradeID string,
	currentPrice float64,
) AttemptResult {

	w := c.registry.Get(symbol)
	if w == nil || w.TradeID != tradeID {
		return AttemptResult{
			Outcome:   OutcomeNotFound,
			Reasoning: "watch not found or trade id mismatch",
		}
	}

	now := c.now()

	if !w.ExpiresAt.IsZero() && !now.Before(w.ExpiresAt) {
		w.Status = model.WatchStatusExpired
		c.registry.Clear(symbol, tradeID)
		return AttemptResult{
			Outcome:   OutcomeExpired,
			Reasoning: "watch expired",
			Watch:     w,
		}
	}

	if !w.Setup.InZone(currentPrice) {
		return AttemptResult{
			Outcome:   OutcomeOutOfZone,
			Reasoning: "price outside entry zone",
			Remaining: w.RemainingAttempts(),
			Watch:     w,
		}
	}

	if !w.LastAttemptAt.IsZero() && now.Sub(w.LastAttemptAt) < c.cooldown {
		return AttemptResult{
			Outcome:   OutcomeCooldown,
			Reasoning: "cooldown active",
			Remaining: w.RemainingAttempts(),
			Watch:     w,
		}
	}

	if w.AttemptsUsed >= w.Setup.MaxAttempts {
		w.Status = model.WatchStatusExpired
		c.registry.Clear(symbol, tradeID)
		return AttemptResult{
			Outcome:   OutcomeExhausted,
			Reasoning: "max confirmation attempts exhausted",
			Watch:     w,
		}
	}

	logger.WithFields(map[string]interface{}{
		"symbol":   symbol,
		"trade_id": tradeID,
		"price":    currentPrice,
		"attempt":  w.AttemptsUsed + 1,
		"max":      w.Setup.MaxAttempts,
	}).Info("Running confirmation attempt")

	verdict, err := c.checker.ConfirmEntry(ctx, w, currentPrice)
	if err != nil {
		// Unreachable checker: absorbed, not counted, agent retries next tick.
		logger.WithError(err).WithField("trade_id", tradeID).
			Warn("Confirmation check unreachable")
		return AttemptResult{
			Outcome:   OutcomeCheckFailed,
			Reasoning: "confirmation check unreachable",
			Remaining: w.RemainingAttempts(),
			Watch:     w,
		}
	}

	// The check is slow; the expiry sweep may have won the race meanwhile.
	// A verdict arriving after expiry is discarded.
	if live := c.registry.Get(symbol); live == nil || live.TradeID != tradeID {
		return AttemptResult{
			Outcome:   OutcomeExpired,
			Reasoning: "watch expired during confirmation",
			Watch:     w,
		}
	}

	w.AttemptsUsed++
	w.LastAttemptAt = now
	remaining := w.RemainingAttempts()

	if verdict.Confirmed {
		w.Status = model.WatchStatusConfirmed
		c.registry.Clear(symbol, tradeID)

		logger.WithFields(map[string]interface{}{
			"symbol":   symbol,
			"trade_id": tradeID,
			"price":    currentPrice,
		}).Info("Entry confirmed, handing off to execution queue")

		return AttemptResult{
			Outcome:   OutcomeAccepted,
			Reasoning: verdict.Reasoning,
			Remaining: remaining,
			Watch:     w,
		}
	}

	if remaining <= 0 {
		w.Status = model.WatchStatusExpired
		c.registry.Clear(symbol, tradeID)

		logger.WithFields(map[string]interface{}{
			"symbol":   symbol,
			"trade_id": tradeID,
		}).Info("Entry rejected, attempts exhausted, watch cancelled")

		return AttemptResult{
			Outcome:   OutcomeExhausted,
			Reasoning: verdict.Reasoning,
			Watch:     w,
		}
	}

	logger.WithFields(map[string]interface{}{
		"symbol":    symbol,
		"trade_id":  tradeID,
		"remaining": remaining,
	}).Info("Entry rejected, attempts remaining")

	return AttemptResult{
		Outcome:   OutcomeRejected,
		Reasoning: verdict.Reasoning,
		Remaining: remaining,
		Watch:     w,
	}
}
