package orchestrator

import (
	"context"
	"time"

	logger "github.com/sirupsen/logrus"

	"tradeanalyst/src/model"
)

// Recover rebuilds the in-memory registries from the durable store after a
// restart: active watches are re-opened and confirmed-but-unexecuted trades
// are republished for the agent to claim. Executed positions need nothing
// here, the open-trades view reads straight from the store.
func (o *Orchestrator) Recover(ctx context.Context) error {
	now := o.now().UTC()

	watching, err := o.store.FindByStatus(ctx, model.TradeStatusWatching)
	if err != nil {
		return err
	}

	recovered := 0
	for i := range watching {
		record := &watching[i]

		if record.ExpiresAt != nil && !now.Before(*record.ExpiresAt) {
			continue // the first sweep settles it
		}

		w := &model.Watch{
			TradeID:      record.TradeID,
			Symbol:       record.Symbol,
			Setup:        record.Setup(),
			Status:       model.WatchStatusWatching,
			AttemptsUsed: record.AttemptsUsed,
			CreatedAt:    record.CreatedAt,
		}
		if record.ExpiresAt != nil {
			w.ExpiresAt = *record.ExpiresAt
		}
		if record.LastAttemptAt != nil {
			w.LastAttemptAt = *record.LastAttemptAt
		}

		if err := o.registry.Open(w); err != nil {
			logger.WithError(err).WithFields(map[string]interface{}{
				"symbol":   record.Symbol,
				"trade_id": record.TradeID,
			}).Warn("Watch not recovered, symbol already taken")
			continue
		}
		recovered++
	}

	confirmed, err := o.store.FindByStatus(ctx, model.TradeStatusConfirmed)
	if err != nil {
		return err
	}

	republished := 0
	for i := range confirmed {
		record := &confirmed[i]

		// The original queue time did not survive the crash; the TTL
		// restarts from recovery.
		pending := &model.PendingTrade{
			TradeID:        record.TradeID,
			Symbol:         record.Symbol,
			Bias:           record.Bias,
			EntryPrice:     record.ActualEntry,
			StopLoss:       record.CurrentStop,
			TP1:            record.TP1,
			TP2:            record.TP2,
			SLPips:         record.SLPips,
			SizeSuggestion: record.SizeSuggestion,
			TP1ClosePct:    record.TP1ClosePct,
			QueuedAt:       now,
		}

		if err := o.queue.Publish(pending); err != nil {
			logger.WithError(err).WithFields(map[string]interface{}{
				"symbol":   record.Symbol,
				"trade_id": record.TradeID,
			}).Warn("Pending trade not recovered")
			continue
		}
		republished++
	}

	settled, err := o.settleStaleOpenTrades(ctx, now)
	if err != nil {
		return err
	}

	logger.WithFields(map[string]interface{}{
		"watches_recovered":    recovered,
		"pendings_republished": republished,
		"stale_settled":        settled,
		"took":                 time.Since(now).String(),
	}).Info("Lifecycle state recovered from store")

	return nil
}

// settleStaleOpenTrades closes executed records that sat open far beyond
// any plausible trade duration. Their close reports are long lost; waiting
// for agent reconciliation would leave them skewing the open-trade ceiling
// forever if no agent comes back.
func (o *Orchestrator) settleStaleOpenTrades(ctx context.Context, now time.Time) (int, error) {
	if o.config.StaleOpenAfter <= 0 {
		return 0, nil
	}

	open, err := o.store.FindOpen(ctx, "")
	if err != nil {
		return 0, err
	}

	cutoff := now.Add(-o.config.StaleOpenAfter)
	settled := 0

	for i := range open {
		record := &open[i]
		if record.ExecutedAt == nil || record.ExecutedAt.After(cutoff) {
			continue
		}

		applied, err := o.store.ApplyClose(ctx, &model.CloseReport{
			TradeID:     record.TradeID,
			Symbol:      record.Symbol,
			CloseReason: model.CloseReasonUnknown,
		})
		if err != nil {
			return settled, err
		}
		if applied {
			logger.WithFields(map[string]interface{}{
				"trade_id":    record.TradeID,
				"symbol":      record.Symbol,
				"executed_at": record.ExecutedAt,
			}).Warn("Stale open trade settled as unknown-closed")
			settled++
		}
	}

	return settled, nil
}
