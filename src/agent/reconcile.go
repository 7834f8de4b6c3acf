package agent

import (
	"context"

	logger "github.com/sirupsen/logrus"

	"tradeanalyst/src/model"
)

// reconcile compares the authority's open-trade view against the broker.
// A trade the authority believes is live but the broker no longer holds is
// reported closed with reason unknown, so the durable record settles even
// when the original close report was lost (or the agent restarted).
func (a *Agent) reconcile(ctx context.Context) {
	resp, err := a.authority.OpenTrades(ctx, "")
	if err != nil {
		logger.WithError(err).Warn("Open-trades poll failed, skipping reconciliation")
		return
	}
	if len(resp.Trades) == 0 {
		return
	}

	positions, err := a.broker.OpenPositions(ctx, "")
	if err != nil {
		logger.WithError(err).Warn("Broker position query failed, skipping reconciliation")
		return
	}

	liveTickets := make(map[int64]bool, len(positions))
	for _, p := range positions {
		liveTickets[p.Ticket] = true
	}

	for i := range resp.Trades {
		record := &resp.Trades[i]

		a.mu.Lock()
		_, tracked := a.trades[record.TradeID]
		a.mu.Unlock()
		if tracked {
			continue // the tick loop is managing it
		}

		anyLive := (record.TicketTP1 != 0 && liveTickets[record.TicketTP1]) ||
			(record.TicketTP2 != 0 && liveTickets[record.TicketTP2])
		if anyLive {
			logger.WithFields(map[string]interface{}{
				"trade_id": record.TradeID,
				"symbol":   record.Symbol,
			}).Warn("Untracked live position found, leaving to broker stops")
			continue
		}

		logger.WithFields(map[string]interface{}{
			"trade_id": record.TradeID,
			"symbol":   record.Symbol,
		}).Warn("Authority-open trade has no broker position, reporting unknown close")

		a.reportCloseWithRetry(ctx, &model.CloseReport{
			TradeID:     record.TradeID,
			Symbol:      record.Symbol,
			Ticket:      record.TicketTP2,
			CloseReason: model.CloseReasonUnknown,
		})
	}
}
