package orchestrator

import (
	"context"
	"time"

	logger "github.com/sirupsen/logrus"

	"tradeanalyst/src/model"
)

// Sweep runs one expiry pass: in-memory watches past their deadline, stale
// unclaimed pending trades, and any durable rows the in-memory sweeps
// missed (for example after a restart). Idempotent.
func (o *Orchestrator) Sweep(ctx context.Context) {
	now := o.now().UTC()

	for _, w := range o.registry.ExpireSweep(now) {
		if err := o.store.UpdateStatus(ctx, w.TradeID, model.TradeStatusExpired); err != nil {
			logger.WithError(err).WithField("trade_id", w.TradeID).
				Error("Failed to persist watch expiry")
		}
	}

	for _, p := range o.queue.ExpireStale(now) {
		if err := o.store.UpdateStatus(ctx, p.TradeID, model.TradeStatusExpired); err != nil {
			logger.WithError(err).WithField("trade_id", p.TradeID).
				Error("Failed to persist pending-trade expiry")
		}
	}

	if _, err := o.store.ExpireStaleWatches(ctx, now); err != nil {
		logger.WithError(err).Error("Durable expiry sweep failed")
	}
}

// RunSweeper drives Sweep on a fixed interval until the context ends.
func (o *Orchestrator) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(o.config.SweepInterval)
	defer ticker.Stop()

	logger.WithField("interval", o.config.SweepInterval).Info("Expiry sweeper started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("Expiry sweeper stopped")
			return
		case <-ticker.C:
			o.Sweep(ctx)
		}
	}
}
