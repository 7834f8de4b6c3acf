package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"tradeanalyst/src/broker"
	"tradeanalyst/src/feed"
	"tradeanalyst/src/model"
)

// fakeAuthority scripts the polling contract and records every report the
// agent delivers.
type fakeAuthority struct {
	watch   *model.WatchPollResponse
	pending *model.PendingPollResponse
	open    *model.OpenTradesResponse

	confirmResp *model.ConfirmEntryResponse

	// execFailures fails that many ReportExecution deliveries before
	// accepting them.
	execFailures int

	confirmCalls   []*model.ConfirmEntryRequest
	executionCalls []*model.ExecutionReport
	closeCalls     []*model.CloseReport
	stopMoveCalls  []*model.StopMoveReport
	pendingPolls   int
}

func (f *fakeAuthority) PollWatch(ctx context.Context, symbol string) (*model.WatchPollResponse, error) {
	if f.watch != nil {
		return f.watch, nil
	}
	return &model.WatchPollResponse{Status: model.PollStatusNone}, nil
}

func (f *fakeAuthority) ConfirmEntry(ctx context.Context, req *model.ConfirmEntryRequest) (*model.ConfirmEntryResponse, error) {
	f.confirmCalls = append(f.confirmCalls, req)
	if f.confirmResp != nil {
		return f.confirmResp, nil
	}
	return &model.ConfirmEntryResponse{Confirmed: false}, nil
}

func (f *fakeAuthority) PollPending(ctx context.Context, symbol string) (*model.PendingPollResponse, error) {
	f.pendingPolls++
	if f.pending != nil {
		return f.pending, nil
	}
	return &model.PendingPollResponse{Status: model.PollStatusNone}, nil
}

func (f *fakeAuthority) ReportExecution(ctx context.Context, report *model.ExecutionReport) (*model.Ack, error) {
	f.executionCalls = append(f.executionCalls, report)
	if f.execFailures > 0 {
		f.execFailures--
		return nil, errors.New("authority unreachable")
	}
	return &model.Ack{Status: "ok"}, nil
}

func (f *fakeAuthority) ReportClose(ctx context.Context, report *model.CloseReport) (*model.Ack, error) {
	f.closeCalls = append(f.closeCalls, report)
	return &model.Ack{Status: "ok"}, nil
}

func (f *fakeAuthority) ReportStopMove(ctx context.Context, report *model.StopMoveReport) (*model.Ack, error) {
	f.stopMoveCalls = append(f.stopMoveCalls, report)
	return &model.Ack{Status: "ok"}, nil
}

func (f *fakeAuthority) OpenTrades(ctx context.Context, symbol string) (*model.OpenTradesResponse, error) {
	if f.open != nil {
		return f.open, nil
	}
	return &model.OpenTradesResponse{}, nil
}

func testAgentConfig() Config {
	return Config{
		Symbols:             []string{"GBPJPY"},
		WatchPollPeriod:     time.Minute,
		PendingPollPeriod:   time.Minute,
		ReconcilePeriod:     time.Minute,
		ConfirmMinSpacing:   time.Second,
		BreakevenBufferPips: 1.0,
	}
}

func pendingGBPJPY() *model.PendingPollResponse {
	return &model.PendingPollResponse{
		Status:         model.PollStatusPending,
		TradeID:        "ab12cd34",
		Bias:           model.BiasLong,
		EntryPrice:     195.00,
		StopLoss:       194.50,
		TP1:            195.50,
		TP2:            196.50,
		SizeSuggestion: 0.50,
		TP1ClosePct:    40,
	}
}

func TestAgentExecutesPendingTrade(t *testing.T) {
	authority := &fakeAuthority{pending: pendingGBPJPY()}
	paper := broker.NewPaperBroker()
	paper.SetPrice("GBPJPY", 195.00)

	a := New(testAgentConfig(), authority, paper, nil)
	a.pollPending(context.Background())

	if len(authority.executionCalls) != 1 {
		t.Fatalf("expected one execution report, got %d", len(authority.executionCalls))
	}

	report := authority.executionCalls[0]
	if report.Status != model.TradeStatusExecuted {
		t.Fatalf("expected executed status, got %s", report.Status)
	}
	if report.TicketTP1 == 0 || report.TicketTP2 == 0 {
		t.Fatalf("expected both leg tickets, got %d and %d", report.TicketTP1, report.TicketTP2)
	}
	assert.InDelta(t, 0.20, report.LotsTP1, 1e-9)
	assert.InDelta(t, 0.30, report.LotsTP2, 1e-9)

	positions, err := paper.OpenPositions(context.Background(), "GBPJPY")
	if err != nil {
		t.Fatalf("unexpected error listing positions: %v", err)
	}
	if len(positions) != 2 {
		t.Fatalf("expected two open legs, got %d", len(positions))
	}

	a.mu.Lock()
	_, tracked := a.trades["ab12cd34"]
	a.mu.Unlock()
	if !tracked {
		t.Fatal("expected the trade to be tracked after execution")
	}
}

func TestAgentExecutionSkipsAlreadyTrackedTrade(t *testing.T) {
	authority := &fakeAuthority{pending: pendingGBPJPY()}
	paper := broker.NewPaperBroker()
	paper.SetPrice("GBPJPY", 195.00)

	a := New(testAgentConfig(), authority, paper, nil)
	a.pollPending(context.Background())
	a.pollPending(context.Background())

	// The claim is repeatable but placement must not double up.
	if len(authority.executionCalls) != 1 {
		t.Fatalf("expected one execution report, got %d", len(authority.executionCalls))
	}

	positions, _ := paper.OpenPositions(context.Background(), "GBPJPY")
	if len(positions) != 2 {
		t.Fatalf("expected two open legs after repeated poll, got %d", len(positions))
	}
}

func TestAgentRedeliversUnackedExecutionReport(t *testing.T) {
	authority := &fakeAuthority{pending: pendingGBPJPY(), execFailures: 1}
	paper := broker.NewPaperBroker()
	paper.SetPrice("GBPJPY", 195.00)

	a := New(testAgentConfig(), authority, paper, nil)
	a.pollPending(context.Background())

	// The delivery failed; the report is parked, the position is live.
	if len(authority.executionCalls) != 1 {
		t.Fatalf("expected one delivery attempt, got %d", len(authority.executionCalls))
	}
	a.mu.Lock()
	_, parked := a.unacked["ab12cd34"]
	a.mu.Unlock()
	if !parked {
		t.Fatal("expected the unacknowledged report to be parked")
	}

	// The next poll redelivers before claiming; the authority now accepts.
	authority.pending = nil
	a.pollPending(context.Background())

	if len(authority.executionCalls) != 2 {
		t.Fatalf("expected a redelivery, got %d calls", len(authority.executionCalls))
	}
	if authority.executionCalls[1].TicketTP1 != authority.executionCalls[0].TicketTP1 {
		t.Fatal("redelivery must carry the original report")
	}

	a.mu.Lock()
	parkedCount := len(a.unacked)
	a.mu.Unlock()
	if parkedCount != 0 {
		t.Fatalf("acknowledged report must leave the parking map, got %d", parkedCount)
	}

	// No double placement happened along the way.
	positions, _ := paper.OpenPositions(context.Background(), "GBPJPY")
	if len(positions) != 2 {
		t.Fatalf("expected the original two legs only, got %d", len(positions))
	}
}

func TestAgentReportsFailedExecution(t *testing.T) {
	authority := &fakeAuthority{pending: pendingGBPJPY()}
	// No quote fed: the paper broker rejects the market order.
	a := New(testAgentConfig(), authority, broker.NewPaperBroker(), nil)

	a.pollPending(context.Background())

	if len(authority.executionCalls) != 1 {
		t.Fatalf("expected one execution report, got %d", len(authority.executionCalls))
	}
	report := authority.executionCalls[0]
	if report.Status != model.TradeStatusFailed {
		t.Fatalf("expected failed status, got %s", report.Status)
	}
	if report.ErrorMessage == "" {
		t.Fatal("expected the broker error to be carried in the report")
	}

	a.mu.Lock()
	tracked := len(a.trades)
	a.mu.Unlock()
	if tracked != 0 {
		t.Fatalf("failed execution must not be tracked, got %d trades", tracked)
	}
}

func TestAgentZoneTouchReportsConfirmation(t *testing.T) {
	authority := &fakeAuthority{
		watch: &model.WatchPollResponse{
			Status: model.PollStatusWatch, TradeID: "ab12cd34", Bias: model.BiasLong,
			ZoneLow: 195.00, ZoneHigh: 195.20,
		},
		confirmResp: &model.ConfirmEntryResponse{Confirmed: true, EntryPrice: 195.10},
	}
	paper := broker.NewPaperBroker()

	a := New(testAgentConfig(), authority, paper, nil)
	a.pollWatches(context.Background())

	// Below the zone: no report.
	a.onTick(context.Background(), feed.Tick{Symbol: "GBPJPY", Bid: 194.80, Ask: 194.82})
	if len(authority.confirmCalls) != 0 {
		t.Fatalf("expected no confirmation outside the zone, got %d", len(authority.confirmCalls))
	}

	// Inside the zone: one report, and a confirmation triggers an
	// immediate pending poll.
	a.onTick(context.Background(), feed.Tick{Symbol: "GBPJPY", Bid: 195.09, Ask: 195.11})
	if len(authority.confirmCalls) != 1 {
		t.Fatalf("expected one confirmation, got %d", len(authority.confirmCalls))
	}
	assert.InDelta(t, 195.10, authority.confirmCalls[0].CurrentPrice, 1e-9)
	if authority.pendingPolls == 0 {
		t.Fatal("expected an immediate pending poll after confirmation")
	}

	// A second touch inside the local spacing window is swallowed.
	a.onTick(context.Background(), feed.Tick{Symbol: "GBPJPY", Bid: 195.09, Ask: 195.11})
	if len(authority.confirmCalls) != 1 {
		t.Fatalf("expected throttled second touch, got %d confirmations", len(authority.confirmCalls))
	}
}

func TestAgentManagesPositionThroughTargets(t *testing.T) {
	authority := &fakeAuthority{pending: pendingGBPJPY()}
	paper := broker.NewPaperBroker()
	paper.SetPrice("GBPJPY", 195.00)

	a := New(testAgentConfig(), authority, paper, nil)
	a.pollPending(context.Background())
	authority.pending = nil

	// First target crossed: the first leg closes and the stop moves to
	// breakeven plus the buffer.
	a.onTick(context.Background(), feed.Tick{Symbol: "GBPJPY", Bid: 195.50, Ask: 195.50})

	if len(authority.closeCalls) != 1 {
		t.Fatalf("expected one close report, got %d", len(authority.closeCalls))
	}
	if authority.closeCalls[0].CloseReason != model.CloseReasonTP1 {
		t.Fatalf("expected tp1 close, got %s", authority.closeCalls[0].CloseReason)
	}
	assert.InDelta(t, 100.0, authority.closeCalls[0].Profit, 1e-6) // 50 pips x 0.20 lots

	if len(authority.stopMoveCalls) != 1 {
		t.Fatalf("expected one stop move report, got %d", len(authority.stopMoveCalls))
	}
	assert.InDelta(t, 195.01, authority.stopMoveCalls[0].NewStopLoss, 1e-9) // entry + 1 pip
	if !authority.stopMoveCalls[0].FirstTargetHit {
		t.Fatal("expected first_target_hit on the stop move report")
	}

	positions, _ := paper.OpenPositions(context.Background(), "GBPJPY")
	if len(positions) != 1 {
		t.Fatalf("expected only the runner leg open, got %d", len(positions))
	}

	// Final target crossed: the runner flattens and the trade untracks.
	a.onTick(context.Background(), feed.Tick{Symbol: "GBPJPY", Bid: 196.50, Ask: 196.50})

	if len(authority.closeCalls) != 2 {
		t.Fatalf("expected two close reports, got %d", len(authority.closeCalls))
	}
	if authority.closeCalls[1].CloseReason != model.CloseReasonTP2 {
		t.Fatalf("expected tp2 close, got %s", authority.closeCalls[1].CloseReason)
	}

	positions, _ = paper.OpenPositions(context.Background(), "GBPJPY")
	if len(positions) != 0 {
		t.Fatalf("expected a flat book, got %d positions", len(positions))
	}

	a.mu.Lock()
	tracked := len(a.trades)
	a.mu.Unlock()
	if tracked != 0 {
		t.Fatalf("expected the trade to be untracked after tp2, got %d", tracked)
	}
}

func TestAgentStopsOutRunner(t *testing.T) {
	authority := &fakeAuthority{pending: pendingGBPJPY()}
	paper := broker.NewPaperBroker()
	paper.SetPrice("GBPJPY", 195.00)

	a := New(testAgentConfig(), authority, paper, nil)
	a.pollPending(context.Background())
	authority.pending = nil

	// Price drops through the stop before any target.
	a.onTick(context.Background(), feed.Tick{Symbol: "GBPJPY", Bid: 194.50, Ask: 194.50})

	// Both legs flatten under the same stop reason.
	if len(authority.closeCalls) != 2 {
		t.Fatalf("expected two close reports, got %d", len(authority.closeCalls))
	}
	for _, report := range authority.closeCalls {
		if report.CloseReason != model.CloseReasonSL {
			t.Fatalf("expected sl close, got %s", report.CloseReason)
		}
	}

	positions, _ := paper.OpenPositions(context.Background(), "GBPJPY")
	if len(positions) != 0 {
		t.Fatalf("expected a flat book after stop, got %d positions", len(positions))
	}
}

func TestAgentReconcileReportsUnknownClose(t *testing.T) {
	authority := &fakeAuthority{open: &model.OpenTradesResponse{Trades: []model.TradeRecord{
		{TradeID: "gone1234", Symbol: "GBPJPY", TicketTP1: 5001, TicketTP2: 5002},
	}}}
	paper := broker.NewPaperBroker()

	a := New(testAgentConfig(), authority, paper, nil)
	a.reconcile(context.Background())

	if len(authority.closeCalls) != 1 {
		t.Fatalf("expected one unknown-close report, got %d", len(authority.closeCalls))
	}
	if authority.closeCalls[0].CloseReason != model.CloseReasonUnknown {
		t.Fatalf("expected unknown close reason, got %s", authority.closeCalls[0].CloseReason)
	}
	if authority.closeCalls[0].TradeID != "gone1234" {
		t.Fatalf("unexpected trade reported: %s", authority.closeCalls[0].TradeID)
	}
}

func TestAgentReconcileLeavesLivePositionsAlone(t *testing.T) {
	paper := broker.NewPaperBroker()
	paper.SetPrice("GBPJPY", 195.00)

	order, err := paper.OpenMarket(context.Background(), broker.OrderRequest{
		Symbol: "GBPJPY", Side: broker.SideBuy, Lots: 0.30, StopLoss: 194.50,
	})
	if err != nil {
		t.Fatalf("unexpected error opening paper order: %v", err)
	}

	authority := &fakeAuthority{open: &model.OpenTradesResponse{Trades: []model.TradeRecord{
		{TradeID: "live1234", Symbol: "GBPJPY", TicketTP2: order.Ticket},
	}}}

	a := New(testAgentConfig(), authority, paper, nil)
	a.reconcile(context.Background())

	if len(authority.closeCalls) != 0 {
		t.Fatalf("live broker position must not be reported closed, got %d reports", len(authority.closeCalls))
	}
}
