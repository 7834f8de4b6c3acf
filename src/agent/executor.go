package agent

import (
	"context"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"tradeanalyst/src/broker"
	"tradeanalyst/src/model"
	"tradeanalyst/src/position"
	"tradeanalyst/src/risk"
)

// pollPending claims confirmed trades and executes them. Execution is the
// only consuming step: a claim whose response got lost is simply claimed
// again on the next poll.
func (a *Agent) pollPending(ctx context.Context) {
	a.flushUnacked(ctx)

	for _, symbol := range a.config.Symbols {
		resp, err := a.authority.PollPending(ctx, symbol)
		if err != nil {
			logger.WithError(err).WithField("symbol", symbol).
				Warn("Pending poll failed, retrying next tick")
			continue
		}
		if resp.Status != model.PollStatusPending {
			continue
		}

		a.mu.Lock()
		_, executing := a.trades[resp.TradeID]
		a.mu.Unlock()
		if executing {
			continue // already placed, report must have been lost
		}

		a.execute(ctx, symbol, resp)
	}
}

// execute places the two legs and reports the result. The first leg takes
// profit at the first target; the runner at the second.
func (a *Agent) execute(ctx context.Context, symbol string, pending *model.PendingPollResponse) {
	profile := risk.GetProfile(symbol)

	tp1Lots, runnerLots := position.SplitLots(
		decimal.NewFromFloat(pending.SizeSuggestion),
		pending.TP1ClosePct,
		decimal.NewFromFloat(profile.LotStep),
		decimal.NewFromFloat(profile.MinLot),
	)
	tp1LotsF, _ := tp1Lots.Float64()
	runnerLotsF, _ := runnerLots.Float64()

	side := brokerSideForBias(pending.Bias)

	report := &model.ExecutionReport{
		TradeID: pending.TradeID,
		Symbol:  symbol,
	}

	first, err := a.broker.OpenMarket(ctx, broker.OrderRequest{
		Symbol:     symbol,
		Side:       side,
		Lots:       tp1LotsF,
		StopLoss:   pending.StopLoss,
		TakeProfit: pending.TP1,
		Comment:    pending.TradeID + "/tp1",
	})
	if err != nil {
		logger.WithError(err).WithField("trade_id", pending.TradeID).
			Error("Failed to open first leg")

		report.Status = model.TradeStatusFailed
		report.ErrorMessage = err.Error()
		a.reportExecution(ctx, report)
		return
	}

	report.TicketTP1 = first.Ticket
	report.LotsTP1 = first.Lots
	report.ActualEntry = first.EntryPrice
	report.ActualSL = pending.StopLoss
	report.ActualTP1 = pending.TP1
	report.ActualTP2 = pending.TP2

	var runner *broker.Order
	if runnerLotsF > 0 {
		runner, err = a.broker.OpenMarket(ctx, broker.OrderRequest{
			Symbol:     symbol,
			Side:       side,
			Lots:       runnerLotsF,
			StopLoss:   pending.StopLoss,
			TakeProfit: pending.TP2,
			Comment:    pending.TradeID + "/tp2",
		})
		if err != nil {
			// Partial execution: the first leg is live, keep it and say so.
			logger.WithError(err).WithField("trade_id", pending.TradeID).
				Error("Failed to open runner leg, continuing with first leg only")
			report.ErrorMessage = "runner leg failed: " + err.Error()
		} else {
			report.TicketTP2 = runner.Ticket
			report.LotsTP2 = runner.Lots
		}
	}

	report.Status = model.TradeStatusExecuted
	a.reportExecution(ctx, report)

	pos := &position.Position{
		TradeID:       pending.TradeID,
		Symbol:        symbol,
		Side:          sideForBias(pending.Bias),
		EntryPrice:    decimal.NewFromFloat(first.EntryPrice),
		StopLoss:      decimal.NewFromFloat(pending.StopLoss),
		TP1:           decimal.NewFromFloat(pending.TP1),
		TP2:           decimal.NewFromFloat(pending.TP2),
		TP1Lots:       tp1Lots,
		RunnerLots:    runnerLots,
		TP1LegOpen:    true,
		RunnerLegOpen: runner != nil,
	}

	t := &trackedTrade{
		pos:       pos,
		manager:   position.NewManager(decimal.NewFromFloat(a.breakevenBuffer(symbol))),
		ticketTP1: first.Ticket,
	}
	if runner != nil {
		t.ticketTP2 = runner.Ticket
	}

	a.mu.Lock()
	a.trades[pending.TradeID] = t
	a.mu.Unlock()

	logger.WithFields(map[string]interface{}{
		"trade_id":    pending.TradeID,
		"symbol":      symbol,
		"entry":       first.EntryPrice,
		"lots_tp1":    tp1LotsF,
		"lots_runner": runnerLotsF,
	}).Info("Trade executed")
}

// reportExecution delivers the report, parking it for redelivery when the
// authority is unreachable. The report must land eventually or the record
// stays at confirmed and the sweep expires it under a live position.
func (a *Agent) reportExecution(ctx context.Context, report *model.ExecutionReport) {
	if _, err := a.authority.ReportExecution(ctx, report); err != nil {
		logger.WithError(err).WithField("trade_id", report.TradeID).
			Warn("Execution report failed, redelivering on the next poll")

		a.mu.Lock()
		a.unacked[report.TradeID] = report
		a.mu.Unlock()
		return
	}

	a.mu.Lock()
	delete(a.unacked, report.TradeID)
	a.mu.Unlock()
}

// flushUnacked redelivers execution reports the authority never
// acknowledged. Safe to repeat: the authority applies each trade ID once.
func (a *Agent) flushUnacked(ctx context.Context) {
	a.mu.Lock()
	reports := make([]*model.ExecutionReport, 0, len(a.unacked))
	for _, report := range a.unacked {
		reports = append(reports, report)
	}
	a.mu.Unlock()

	for _, report := range reports {
		a.reportExecution(ctx, report)
	}
}
