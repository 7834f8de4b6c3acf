package orchestrator

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"tradeanalyst/src/model"
	"tradeanalyst/src/queue"
	"tradeanalyst/src/risk"
	"tradeanalyst/src/watch"
)

// Store is the slice of the durable trade store the orchestrator drives.
// Every acknowledged transition is persisted before the response goes out.
type Store interface {
	CreateWatch(ctx context.Context, record *model.TradeRecord) error
	FindByTradeID(ctx context.Context, tradeID string) (*model.TradeRecord, error)
	RecordAttempt(ctx context.Context, tradeID string, attemptsUsed int, at time.Time) error
	UpdateStatus(ctx context.Context, tradeID, status string) error
	MarkConfirmed(ctx context.Context, tradeID string, entryPrice, stopLoss, sizeSuggestion float64) error
	MarkExecuted(ctx context.Context, report *model.ExecutionReport) (bool, error)
	ApplyClose(ctx context.Context, report *model.CloseReport) (bool, error)
	UpdateStopLoss(ctx context.Context, tradeID string, stopLoss float64, firstTargetHit bool) error
	FindByStatus(ctx context.Context, status string) ([]model.TradeRecord, error)
	FindOpen(ctx context.Context, symbol string) ([]model.TradeRecord, error)
	ExpireStaleWatches(ctx context.Context, now time.Time) (int64, error)
	Stats(ctx context.Context, symbol string, days int) (*model.StatsSummary, error)
}

// Admitter decides whether a proposed setup may become a watch.
type Admitter interface {
	Evaluate(ctx context.Context, setup *model.TradeSetup) (risk.Decision, error)
}

// Orchestrator owns the trade lifecycle on the authority side: admission,
// watching, confirmation, the execution handoff and close bookkeeping.
// All state transitions for one instrument run under that symbol's lock,
// so racing reports serialize instead of corrupting the lifecycle.
type Orchestrator struct {
	config   *Config
	registry *watch.Registry
	queue    *queue.Queue
	coord    *watch.Coordinator
	store    Store
	gate     Admitter
	sizing   risk.SessionSizeConfig
	now      func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(cfg *Config, store Store, gate Admitter, checker watch.Checker) *Orchestrator {
	registry := watch.NewRegistry()
	return &Orchestrator{
		config:   cfg,
		registry: registry,
		queue:    queue.New(cfg.PendingTTL),
		coord:    watch.NewCoordinator(registry, checker, cfg.ConfirmCooldown),
		store:    store,
		gate:     gate,
		sizing:   risk.DefaultSessionSizeConfig(),
		now:      time.Now,
	}
}

func (o *Orchestrator) symbolLock(symbol string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.locks == nil {
		o.locks = make(map[string]*sync.Mutex)
	}
	l, ok := o.locks[symbol]
	if !ok {
		l = &sync.Mutex{}
		o.locks[symbol] = l
	}
	return l
}

func newTradeID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// watchDeadline picks the earlier of the TTL deadline and the pair's
// kill-zone cutoff (MEZ) for today, when one applies.
func watchDeadline(now time.Time, profile risk.PairProfile, ttl time.Duration) time.Time {
	deadline := now.Add(ttl)

	if profile.KillZoneEndHour > 0 {
		mez := time.FixedZone("MEZ", 3600)
		local := now.In(mez)
		cutoff := time.Date(local.Year(), local.Month(), local.Day(),
			profile.KillZoneEndHour, 0, 0, 0, mez)
		if cutoff.After(now) && cutoff.Before(deadline) {
			deadline = cutoff
		}
	}

	return deadline
}

// SubmitSetup runs a proposed setup through validation and the risk gate
// and, when admitted, creates the durable record and the active watch.
// Rejections create no state at all.
func (o *Orchestrator) SubmitSetup(
	ctx context.Context,
	req *model.SubmitSetupRequest,
) (*model.SubmitSetupResponse, error) {

	if req.MaxAttempts == 0 {
		req.MaxAttempts = o.config.DefaultMaxAttempts
	}
	if req.TP1ClosePct == 0 {
		req.TP1ClosePct = o.config.DefaultTP1ClosePct
	}
	if err := req.Validate(); err != nil {
		return &model.SubmitSetupResponse{Admitted: false, Reason: err.Error()}, err
	}

	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))

	lock := o.symbolLock(req.Symbol)
	lock.Lock()
	defer lock.Unlock()

	if existing := o.registry.Get(req.Symbol); existing != nil {
		return &model.SubmitSetupResponse{
			Admitted: false,
			Reason:   "instrument already watched (trade " + existing.TradeID + ")",
		}, model.ErrConflict
	}

	decision, err := o.gate.Evaluate(ctx, &req.TradeSetup)
	if err != nil {
		return nil, err
	}
	if !decision.Admitted {
		logger.WithFields(map[string]interface{}{
			"symbol": req.Symbol,
			"bias":   req.Bias,
			"reason": decision.Reason,
		}).Info("Setup rejected by risk gate")

		return &model.SubmitSetupResponse{Admitted: false, Reason: decision.Reason}, nil
	}

	now := o.now().UTC()
	profile := risk.GetProfile(req.Symbol)
	deadline := watchDeadline(now, profile, o.config.WatchTTL)
	tradeID := newTradeID()

	entryMid := (req.EntryMin + req.EntryMax) / 2
	record := &model.TradeRecord{
		TradeID:        tradeID,
		Symbol:         req.Symbol,
		Bias:           req.Bias,
		Confidence:     req.Confidence,
		EntryMin:       req.EntryMin,
		EntryMax:       req.EntryMax,
		StopLoss:       req.StopLoss,
		TP1:            req.TP1,
		TP2:            req.TP2,
		SLPips:         req.SLPips,
		TP1Pips:        profile.PipsBetween(entryMid, req.TP1),
		TP2Pips:        profile.PipsBetween(entryMid, req.TP2),
		ChecklistScore: req.ChecklistScore,
		TP1ClosePct:    req.TP1ClosePct,
		MaxAttempts:    req.MaxAttempts,
		Status:         model.TradeStatusWatching,
		Outcome:        model.OutcomeOpen,
		ExpiresAt:      &deadline,
	}
	if record.SLPips == 0 {
		record.SLPips = profile.PipsBetween(entryMid, req.StopLoss)
	}

	if err := o.store.CreateWatch(ctx, record); err != nil {
		return nil, err
	}

	w := &model.Watch{
		TradeID:   tradeID,
		Symbol:    req.Symbol,
		Setup:     req.TradeSetup,
		Status:    model.WatchStatusWatching,
		CreatedAt: now,
		ExpiresAt: deadline,
	}
	if err := o.registry.Open(w); err != nil {
		return nil, err
	}

	return &model.SubmitSetupResponse{
		Admitted: true,
		TradeID:  tradeID,
		Reason:   decision.Reason,
	}, nil
}

// PollWatch answers the agent's zone-watch poll for one instrument.
func (o *Orchestrator) PollWatch(symbol string) *model.WatchPollResponse {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	w := o.registry.Get(symbol)
	if w == nil {
		return &model.WatchPollResponse{Status: model.PollStatusNone}
	}

	now := o.now()
	if !w.ExpiresAt.IsZero() && !now.Before(w.ExpiresAt) {
		// The sweep persists the expiry; the poll just stops advertising.
		return &model.WatchPollResponse{Status: model.PollStatusNone}
	}

	return &model.WatchPollResponse{
		Status:      model.PollStatusWatch,
		TradeID:     w.TradeID,
		Bias:        w.Setup.Bias,
		ZoneLow:     w.Setup.EntryMin,
		ZoneHigh:    w.Setup.EntryMax,
		StopLoss:    w.Setup.StopLoss,
		TP1:         w.Setup.TP1,
		TP2:         w.Setup.TP2,
		SLPips:      w.Setup.SLPips,
		MaxAttempts: w.Setup.MaxAttempts,
		TP1ClosePct: w.Setup.TP1ClosePct,
		AgeSeconds:  int(now.Sub(w.CreatedAt).Seconds()),
	}
}

// ConfirmEntry processes a zone-touch report: it runs the bounded-retry
// confirmation attempt and persists whatever the attempt did. A confirmed
// watch is handed to the execution queue before the response goes out.
func (o *Orchestrator) ConfirmEntry(
	ctx context.Context,
	req *model.ConfirmEntryRequest,
) *model.ConfirmEntryResponse {

	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))

	lock := o.symbolLock(req.Symbol)
	lock.Lock()
	defer lock.Unlock()

	result := o.coord.Attempt(ctx, req.Symbol, req.TradeID, req.CurrentPrice)

	response := &model.ConfirmEntryResponse{
		Confirmed:         result.Outcome == watch.OutcomeAccepted,
		Reasoning:         result.Reasoning,
		RemainingAttempts: result.Remaining,
	}

	switch result.Outcome {
	case watch.OutcomeAccepted:
		o.handOffConfirmed(ctx, result.Watch, req.CurrentPrice, response)

	case watch.OutcomeRejected:
		if err := o.store.RecordAttempt(ctx, req.TradeID,
			result.Watch.AttemptsUsed, result.Watch.LastAttemptAt); err != nil {
			logger.WithError(err).WithField("trade_id", req.TradeID).
				Error("Failed to persist confirmation attempt")
		}

	case watch.OutcomeExhausted:
		if result.Watch != nil && !result.Watch.LastAttemptAt.IsZero() {
			if err := o.store.RecordAttempt(ctx, req.TradeID,
				result.Watch.AttemptsUsed, result.Watch.LastAttemptAt); err != nil {
				logger.WithError(err).WithField("trade_id", req.TradeID).
					Error("Failed to persist confirmation attempt")
			}
		}
		if err := o.store.UpdateStatus(ctx, req.TradeID, model.TradeStatusExpired); err != nil {
			logger.WithError(err).WithField("trade_id", req.TradeID).
				Error("Failed to persist watch expiry")
		}

	case watch.OutcomeExpired:
		if err := o.store.UpdateStatus(ctx, req.TradeID, model.TradeStatusExpired); err != nil {
			logger.WithError(err).WithField("trade_id", req.TradeID).
				Error("Failed to persist watch expiry")
		}
	}

	return response
}

// handOffConfirmed persists the confirmation and publishes the pending
// trade for the agent to claim.
func (o *Orchestrator) handOffConfirmed(
	ctx context.Context,
	w *model.Watch,
	entryPrice float64,
	response *model.ConfirmEntryResponse,
) {
	now := o.now().UTC()
	profile := risk.GetProfile(w.Symbol)

	size, session := risk.SuggestSize(
		decimal.NewFromFloat(o.config.BaseLot), profile, now, o.sizing)
	sizeSuggestion, _ := size.Float64()

	if err := o.store.RecordAttempt(ctx, w.TradeID, w.AttemptsUsed, w.LastAttemptAt); err != nil {
		logger.WithError(err).WithField("trade_id", w.TradeID).
			Error("Failed to persist confirmation attempt")
	}
	if err := o.store.MarkConfirmed(ctx, w.TradeID, entryPrice,
		w.Setup.StopLoss, sizeSuggestion); err != nil {
		logger.WithError(err).WithField("trade_id", w.TradeID).
			Error("Failed to persist confirmation")
	}

	pending := &model.PendingTrade{
		TradeID:        w.TradeID,
		Symbol:         w.Symbol,
		Bias:           w.Setup.Bias,
		EntryPrice:     entryPrice,
		StopLoss:       w.Setup.StopLoss,
		TP1:            w.Setup.TP1,
		TP2:            w.Setup.TP2,
		SLPips:         w.Setup.SLPips,
		SizeSuggestion: sizeSuggestion,
		TP1ClosePct:    w.Setup.TP1ClosePct,
		QueuedAt:       now,
	}

	if err := o.queue.Publish(pending); err != nil {
		logger.WithError(err).WithFields(map[string]interface{}{
			"symbol":   w.Symbol,
			"trade_id": w.TradeID,
		}).Error("Failed to queue confirmed trade")
		return
	}

	response.EntryPrice = entryPrice
	response.AdjustedStopLoss = w.Setup.StopLoss

	logger.WithFields(map[string]interface{}{
		"symbol":   w.Symbol,
		"trade_id": w.TradeID,
		"size":     sizeSuggestion,
		"session":  session,
	}).Info("Confirmed trade queued for execution")
}

// PollPending answers the agent's execution poll. Claiming does not consume
// the slot; the execution report does.
func (o *Orchestrator) PollPending(symbol string) *model.PendingPollResponse {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	p := o.queue.Claim(symbol)
	if p == nil {
		return &model.PendingPollResponse{Status: model.PollStatusNone}
	}

	return &model.PendingPollResponse{
		Status:         model.PollStatusPending,
		TradeID:        p.TradeID,
		Bias:           p.Bias,
		EntryPrice:     p.EntryPrice,
		StopLoss:       p.StopLoss,
		TP1:            p.TP1,
		TP2:            p.TP2,
		SLPips:         p.SLPips,
		SizeSuggestion: p.SizeSuggestion,
		TP1ClosePct:    p.TP1ClosePct,
	}
}

// ReportExecution records the agent's execution report. Idempotent: a
// repeated report for the same trade identifier acknowledges without
// changing anything.
func (o *Orchestrator) ReportExecution(
	ctx context.Context,
	report *model.ExecutionReport,
) (*model.Ack, error) {

	report.Symbol = strings.ToUpper(strings.TrimSpace(report.Symbol))

	lock := o.symbolLock(report.Symbol)
	lock.Lock()
	defer lock.Unlock()

	applied, err := o.store.MarkExecuted(ctx, report)
	if err != nil {
		return nil, err
	}

	// The handoff is complete either way; the slot must not be claimable
	// again.
	o.queue.MarkConsumed(report.Symbol, report.TradeID)

	if !applied {
		return &model.Ack{Status: "ok", Message: "already recorded"}, nil
	}
	return &model.Ack{Status: "ok", Message: "execution recorded"}, nil
}

// ReportClose records one leg's close. Idempotent per trade and reason.
// Runs under the symbol lock: ApplyClose reads then writes the record, so
// a redelivered report racing the original must serialize behind it.
func (o *Orchestrator) ReportClose(
	ctx context.Context,
	report *model.CloseReport,
) (*model.Ack, error) {

	report.Symbol = strings.ToUpper(strings.TrimSpace(report.Symbol))

	lock := o.symbolLock(report.Symbol)
	lock.Lock()
	defer lock.Unlock()

	applied, err := o.store.ApplyClose(ctx, report)
	if err != nil {
		return nil, err
	}

	if !applied {
		return &model.Ack{Status: "ok", Message: "already recorded"}, nil
	}
	return &model.Ack{Status: "ok", Message: "close recorded"}, nil
}

// ReportStopMove mirrors an agent-side stop modification. Runs under the
// symbol lock so it cannot interleave with a close on the same record.
func (o *Orchestrator) ReportStopMove(
	ctx context.Context,
	report *model.StopMoveReport,
) (*model.Ack, error) {

	report.Symbol = strings.ToUpper(strings.TrimSpace(report.Symbol))

	lock := o.symbolLock(report.Symbol)
	lock.Lock()
	defer lock.Unlock()

	err := o.store.UpdateStopLoss(ctx, report.TradeID, report.NewStopLoss, report.FirstTargetHit)
	if err != nil {
		return nil, err
	}
	return &model.Ack{Status: "ok", Message: "stop updated"}, nil
}

// OpenTrades lists records that still track a live position.
func (o *Orchestrator) OpenTrades(ctx context.Context, symbol string) (*model.OpenTradesResponse, error) {
	records, err := o.store.FindOpen(ctx, strings.ToUpper(strings.TrimSpace(symbol)))
	if err != nil {
		return nil, err
	}
	return &model.OpenTradesResponse{Trades: records}, nil
}

// Stats aggregates closed-trade performance.
func (o *Orchestrator) Stats(ctx context.Context, symbol string, days int) (*model.StatsSummary, error) {
	return o.store.Stats(ctx, strings.ToUpper(strings.TrimSpace(symbol)), days)
}

// Health summarises the in-memory state for the health endpoint.
type Health struct {
	Status        string `json:"status"`
	ActiveWatches int    `json:"active_watches"`
	PendingTrades int    `json:"pending_trades"`
	OpenTrades    int    `json:"open_trades"`
}

func (o *Orchestrator) Health(ctx context.Context) *Health {
	h := &Health{
		Status:        "ok",
		ActiveWatches: len(o.registry.Snapshot()),
		PendingTrades: len(o.queue.Snapshot()),
	}

	if open, err := o.store.FindOpen(ctx, ""); err == nil {
		h.OpenTrades = len(open)
	}
	return h
}
