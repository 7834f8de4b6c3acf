package agent

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"tradeanalyst/src/feed"
	"tradeanalyst/src/model"
	"tradeanalyst/src/position"
)

// priceSink lets the paper broker consume the quote stream; live brokers
// quote themselves.
type priceSink interface {
	SetPrice(symbol string, price float64)
}

// pollWatches refreshes the active-watch view for every monitored symbol.
func (a *Agent) pollWatches(ctx context.Context) {
	for _, symbol := range a.config.Symbols {
		resp, err := a.authority.PollWatch(ctx, symbol)
		if err != nil {
			logger.WithError(err).WithField("symbol", symbol).
				Warn("Watch poll failed, retrying next tick")
			continue
		}

		a.mu.Lock()
		if resp.Status == model.PollStatusWatch {
			if previous := a.watches[symbol]; previous == nil || previous.TradeID != resp.TradeID {
				logger.WithFields(map[string]interface{}{
					"symbol":   symbol,
					"trade_id": resp.TradeID,
					"zone":     []float64{resp.ZoneLow, resp.ZoneHigh},
				}).Info("Zone watch active")
			}
			a.watches[symbol] = resp
		} else {
			delete(a.watches, symbol)
		}
		a.mu.Unlock()
	}
}

// onTick handles one price update: feed the paper broker, report zone
// touches, and manage open positions.
func (a *Agent) onTick(ctx context.Context, tick feed.Tick) {
	price := tick.Mid()
	if price <= 0 {
		return
	}

	if sink, ok := a.broker.(priceSink); ok {
		sink.SetPrice(tick.Symbol, price)
	}

	a.mu.Lock()
	a.lastPrice[tick.Symbol] = price
	w := a.watches[tick.Symbol]
	a.mu.Unlock()

	if w != nil && price >= w.ZoneLow && price <= w.ZoneHigh {
		a.reportZoneTouch(ctx, tick.Symbol, w, price)
	}

	a.managePositions(ctx, tick.Symbol, price)
}

// reportZoneTouch sends a confirmation attempt, locally throttled so one
// zone dwell does not flood the authority between cooldowns.
func (a *Agent) reportZoneTouch(ctx context.Context, symbol string, w *model.WatchPollResponse, price float64) {
	a.mu.Lock()
	last := a.lastConfirmAt[w.TradeID]
	if time.Since(last) < a.config.ConfirmMinSpacing {
		a.mu.Unlock()
		return
	}
	a.lastConfirmAt[w.TradeID] = time.Now()
	a.mu.Unlock()

	resp, err := a.authority.ConfirmEntry(ctx, &model.ConfirmEntryRequest{
		TradeID:      w.TradeID,
		Symbol:       symbol,
		Bias:         w.Bias,
		CurrentPrice: price,
	})
	if err != nil {
		logger.WithError(err).WithField("trade_id", w.TradeID).
			Warn("Confirm entry failed, retrying next touch")
		return
	}

	logger.WithFields(map[string]interface{}{
		"symbol":    symbol,
		"trade_id":  w.TradeID,
		"confirmed": resp.Confirmed,
		"remaining": resp.RemainingAttempts,
		"reasoning": resp.Reasoning,
	}).Info("Zone touch reported")

	if resp.Confirmed {
		// The pending trade is claimable immediately; don't wait for
		// the next scheduled poll.
		a.pollPending(ctx)
	}
}

// managePositions runs the adaptive exit algorithm for every tracked trade
// on the symbol and detects stop or final-target exits the broker filled.
func (a *Agent) managePositions(ctx context.Context, symbol string, price float64) {
	a.mu.Lock()
	var active []*trackedTrade
	for _, t := range a.trades {
		if t.pos.Symbol == symbol {
			active = append(active, t)
		}
	}
	a.mu.Unlock()

	decPrice := decimal.NewFromFloat(price)

	for _, t := range active {
		for _, action := range t.manager.OnTick(t.pos, decPrice) {
			a.applyAction(ctx, t, action, price)
		}

		a.checkExit(ctx, t, price)
	}
}

func (a *Agent) applyAction(ctx context.Context, t *trackedTrade, action position.Action, price float64) {
	switch action.Type {
	case position.ActionCloseFirstLeg:
		lots, _ := action.Lots.Float64()
		result, err := a.broker.Close(ctx, t.ticketTP1, lots)
		if err != nil {
			logger.WithError(err).WithField("trade_id", t.pos.TradeID).
				Error("Failed to close first leg")
			t.pos.TP1LegOpen = true // retry on the next tick
			return
		}

		a.reportCloseWithRetry(ctx, &model.CloseReport{
			TradeID:     t.pos.TradeID,
			Symbol:      t.pos.Symbol,
			Ticket:      result.Ticket,
			ClosePrice:  result.ClosePrice,
			CloseReason: model.CloseReasonTP1,
			Profit:      result.Profit,
		})

	case position.ActionMoveStop:
		newStop, _ := action.NewStop.Float64()
		if err := a.broker.ModifyStop(ctx, t.ticketTP2, newStop); err != nil {
			logger.WithError(err).WithField("trade_id", t.pos.TradeID).
				Error("Failed to move stop")
			return
		}

		if _, err := a.authority.ReportStopMove(ctx, &model.StopMoveReport{
			TradeID:        t.pos.TradeID,
			Symbol:         t.pos.Symbol,
			NewStopLoss:    newStop,
			FirstTargetHit: t.pos.FirstTargetHit,
		}); err != nil {
			logger.WithError(err).WithField("trade_id", t.pos.TradeID).
				Warn("Stop move not mirrored to authority")
		}
	}
}

// checkExit flattens the remaining legs when price crossed the stop or the
// final target and reports the close.
func (a *Agent) checkExit(ctx context.Context, t *trackedTrade, price float64) {
	if !t.pos.RunnerLegOpen && !t.pos.TP1LegOpen {
		a.untrack(t.pos.TradeID)
		return
	}

	stop, _ := t.pos.StopLoss.Float64()
	tp2, _ := t.pos.TP2.Float64()

	stopHit := (t.pos.Side == position.SideLong && price <= stop) ||
		(t.pos.Side == position.SideShort && price >= stop)
	finalHit := position.CrossedTarget(t.pos.Side, decimal.NewFromFloat(price), t.pos.TP2)

	if !stopHit && !finalHit {
		return
	}

	reason := model.CloseReasonSL
	if finalHit {
		reason = model.CloseReasonTP2
	}

	tickets := []int64{}
	if t.pos.TP1LegOpen {
		tickets = append(tickets, t.ticketTP1)
	}
	if t.pos.RunnerLegOpen {
		tickets = append(tickets, t.ticketTP2)
	}

	for _, ticket := range tickets {
		result, err := a.broker.Close(ctx, ticket, 0)
		if err != nil {
			logger.WithError(err).WithFields(map[string]interface{}{
				"trade_id": t.pos.TradeID,
				"ticket":   ticket,
			}).Error("Failed to flatten position")
			continue
		}

		a.reportCloseWithRetry(ctx, &model.CloseReport{
			TradeID:     t.pos.TradeID,
			Symbol:      t.pos.Symbol,
			Ticket:      result.Ticket,
			ClosePrice:  result.ClosePrice,
			CloseReason: reason,
			Profit:      result.Profit,
		})
	}

	logger.WithFields(map[string]interface{}{
		"trade_id": t.pos.TradeID,
		"symbol":   t.pos.Symbol,
		"reason":   reason,
		"price":    price,
		"tp2":      tp2,
	}).Info("Position flattened")

	t.pos.TP1LegOpen = false
	t.pos.RunnerLegOpen = false
	a.untrack(t.pos.TradeID)
}

// reportCloseWithRetry delivers a close report; close reports are the one
// message that must not be dropped silently, so a failure is retried once
// before reconciliation picks it up.
func (a *Agent) reportCloseWithRetry(ctx context.Context, report *model.CloseReport) {
	if _, err := a.authority.ReportClose(ctx, report); err != nil {
		logger.WithError(err).WithField("trade_id", report.TradeID).
			Warn("Close report failed, retrying once")
		if _, err := a.authority.ReportClose(ctx, report); err != nil {
			logger.WithError(err).WithField("trade_id", report.TradeID).
				Error("Close report failed again, reconciliation will settle it")
		}
	}
}

func (a *Agent) untrack(tradeID string) {
	a.mu.Lock()
	delete(a.trades, tradeID)
	delete(a.lastConfirmAt, tradeID)
	a.mu.Unlock()
}
