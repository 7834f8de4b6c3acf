package agent

import (
	"context"
	"strings"
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"

	"tradeanalyst/src/broker"
	"tradeanalyst/src/feed"
	"tradeanalyst/src/model"
	"tradeanalyst/src/position"
	"tradeanalyst/src/risk"
)

// Authority is the agent's view of the lifecycle authority, one method per
// endpoint of the polling contract.
type Authority interface {
	PollWatch(ctx context.Context, symbol string) (*model.WatchPollResponse, error)
	ConfirmEntry(ctx context.Context, req *model.ConfirmEntryRequest) (*model.ConfirmEntryResponse, error)
	PollPending(ctx context.Context, symbol string) (*model.PendingPollResponse, error)
	ReportExecution(ctx context.Context, report *model.ExecutionReport) (*model.Ack, error)
	ReportClose(ctx context.Context, report *model.CloseReport) (*model.Ack, error)
	ReportStopMove(ctx context.Context, report *model.StopMoveReport) (*model.Ack, error)
	OpenTrades(ctx context.Context, symbol string) (*model.OpenTradesResponse, error)
}

// trackedTrade is the agent-local execution state for one trade: the
// position manager's view plus the broker tickets of both legs. Each
// trade carries its own manager because the breakeven buffer is a pip
// distance and pip size varies per symbol.
type trackedTrade struct {
	pos       *position.Position
	manager   *position.Manager
	ticketTP1 int64
	ticketTP2 int64
}

// Agent executes what the authority decides: it watches quotes, reports
// zone touches, claims pending trades, places the two legs and manages the
// position until both are flat. The agent keeps no durable state; after a
// restart it rebuilds from the broker and the authority.
type Agent struct {
	config    Config
	authority Authority
	broker    broker.Broker
	ticks     <-chan feed.Tick

	mu            sync.Mutex
	watches       map[string]*model.WatchPollResponse // by symbol
	trades        map[string]*trackedTrade            // by trade ID
	lastPrice     map[string]float64
	lastConfirmAt map[string]time.Time // by trade ID

	// unacked holds execution reports the authority has not acknowledged
	// yet, keyed by trade ID. Redelivered on every pending poll; without
	// this the record would sit at confirmed until the sweep expires it
	// while a real position runs at the broker.
	unacked map[string]*model.ExecutionReport
}

func New(config Config, authority Authority, b broker.Broker, ticks <-chan feed.Tick) *Agent {
	return &Agent{
		config:        config,
		authority:     authority,
		broker:        b,
		ticks:         ticks,
		watches:       make(map[string]*model.WatchPollResponse),
		trades:        make(map[string]*trackedTrade),
		lastPrice:     make(map[string]float64),
		lastConfirmAt: make(map[string]time.Time),
		unacked:       make(map[string]*model.ExecutionReport),
	}
}

// Run drives the agent until the context ends.
func (a *Agent) Run(ctx context.Context) error {
	watchTicker := time.NewTicker(a.config.WatchPollPeriod)
	defer watchTicker.Stop()
	pendingTicker := time.NewTicker(a.config.PendingPollPeriod)
	defer pendingTicker.Stop()
	reconcileTicker := time.NewTicker(a.config.ReconcilePeriod)
	defer reconcileTicker.Stop()

	logger.WithField("symbols", strings.Join(a.config.Symbols, ",")).
		Info("Execution agent started")

	a.reconcile(ctx)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Execution agent stopped")
			return nil

		case tick, ok := <-a.ticks:
			if !ok {
				logger.Warn("Quote stream closed, agent exiting")
				return nil
			}
			a.onTick(ctx, tick)

		case <-watchTicker.C:
			a.pollWatches(ctx)

		case <-pendingTicker.C:
			a.pollPending(ctx)

		case <-reconcileTicker.C:
			a.reconcile(ctx)
		}
	}
}

// breakevenBuffer converts the configured pip buffer into price units for
// the symbol.
func (a *Agent) breakevenBuffer(symbol string) float64 {
	profile := risk.GetProfile(symbol)
	return a.config.BreakevenBufferPips * profile.PipSize
}

func sideForBias(bias string) position.Side {
	if bias == model.BiasLong {
		return position.SideLong
	}
	return position.SideShort
}

func brokerSideForBias(bias string) broker.OrderSide {
	if bias == model.BiasLong {
		return broker.SideBuy
	}
	return broker.SideSell
}
