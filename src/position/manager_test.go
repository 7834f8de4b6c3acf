package position

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func TestSplitLots(t *testing.T) {
	tests := []struct {
		name       string
		total      float64
		closePct   int
		step       float64
		minLot     float64
		wantTP1    string
		wantRunner string
	}{
		{"forty percent of one lot", 1.00, 40, 0.01, 0.01, "0.4", "0.6"},
		{"fifty percent default", 0.50, 50, 0.01, 0.01, "0.25", "0.25"},
		{"floors to lot step", 0.10, 33, 0.01, 0.01, "0.03", "0.07"},
		{"clamped up to min lot", 0.02, 10, 0.01, 0.01, "0.01", "0.01"},
		{"never exceeds total", 0.01, 90, 0.01, 0.01, "0.01", "0"},
		{"zero total", 0, 40, 0.01, 0.01, "0", "0"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tp1, runner := SplitLots(d(tc.total), tc.closePct, d(tc.step), d(tc.minLot))
			assert.Equal(t, tc.wantTP1, tp1.String())
			assert.Equal(t, tc.wantRunner, runner.String())
		})
	}
}

func TestImproves(t *testing.T) {
	assert.True(t, Improves(SideLong, d(1.2500), d(1.2510)))
	assert.False(t, Improves(SideLong, d(1.2500), d(1.2490)))
	assert.False(t, Improves(SideLong, d(1.2500), d(1.2500)))

	assert.True(t, Improves(SideShort, d(195.00), d(194.50)))
	assert.False(t, Improves(SideShort, d(195.00), d(195.50)))
}

func TestProgress(t *testing.T) {
	// Long from 1.2500 toward 1.2600.
	assert.True(t, Progress(SideLong, d(1.2500), d(1.2600), d(1.2575)).Equal(d(0.75)))
	assert.True(t, Progress(SideLong, d(1.2500), d(1.2600), d(1.2500)).IsZero())

	// Short from 195.00 toward 193.00: falling price means positive progress.
	assert.True(t, Progress(SideShort, d(195.00), d(193.00), d(193.50)).Equal(d(0.75)))
	assert.True(t, Progress(SideShort, d(195.00), d(193.00), d(196.00)).IsNegative())

	// Degenerate target equal to entry.
	assert.True(t, Progress(SideLong, d(1.25), d(1.25), d(1.30)).IsZero())
}

func newLongPosition() *Position {
	return &Position{
		TradeID:       "ab12cd34",
		Symbol:        "GBPJPY",
		Side:          SideLong,
		EntryPrice:    d(195.00),
		StopLoss:      d(194.50),
		TP1:           d(195.50),
		TP2:           d(196.50),
		TP1Lots:       d(0.20),
		RunnerLots:    d(0.30),
		TP1LegOpen:    true,
		RunnerLegOpen: true,
	}
}

func TestOnTickFirstTargetClosesLegAndMovesBreakeven(t *testing.T) {
	m := NewManager(d(0.01))
	pos := newLongPosition()

	actions := m.OnTick(pos, d(195.50))

	assert.Len(t, actions, 2)
	assert.Equal(t, ActionCloseFirstLeg, actions[0].Type)
	assert.True(t, actions[0].Lots.Equal(d(0.20)))
	assert.Equal(t, ActionMoveStop, actions[1].Type)
	assert.True(t, actions[1].NewStop.Equal(d(195.01)))

	assert.True(t, pos.FirstTargetHit)
	assert.False(t, pos.TP1LegOpen)
	assert.True(t, pos.StopLoss.Equal(d(195.01)))
}

func TestOnTickBeforeFirstTargetDoesNothing(t *testing.T) {
	m := NewManager(d(0.01))
	pos := newLongPosition()

	assert.Empty(t, m.OnTick(pos, d(195.20)))
	assert.False(t, pos.FirstTargetHit)
	assert.True(t, pos.StopLoss.Equal(d(194.50)))
}

func TestOnTickTrailsToFirstTargetAtThreeQuarters(t *testing.T) {
	m := NewManager(d(0.01))
	pos := newLongPosition()
	pos.FirstTargetHit = true
	pos.TP1LegOpen = false
	pos.StopLoss = d(195.01)

	// 74% progress: no move yet.
	assert.Empty(t, m.OnTick(pos, d(196.10)))

	// 75% progress (196.125 on a 1.50 span): stop moves to the first target.
	actions := m.OnTick(pos, d(196.125))
	assert.Len(t, actions, 1)
	assert.Equal(t, ActionMoveStop, actions[0].Type)
	assert.True(t, actions[0].NewStop.Equal(d(195.50)))
	assert.True(t, pos.TrailArmed)

	// Price keeps running: no further moves, the trail fires once.
	assert.Empty(t, m.OnTick(pos, d(196.40)))
}

func TestOnTickReemitsCloseAfterFailedFill(t *testing.T) {
	m := NewManager(d(0.01))
	pos := newLongPosition()

	actions := m.OnTick(pos, d(195.50))
	assert.Len(t, actions, 2)
	assert.True(t, pos.FirstTargetHit)

	// The broker rejected the close; the caller re-opens the leg flag.
	pos.TP1LegOpen = true

	actions = m.OnTick(pos, d(195.50))
	assert.Len(t, actions, 1)
	assert.Equal(t, ActionCloseFirstLeg, actions[0].Type)
	assert.True(t, actions[0].Lots.Equal(d(0.20)))
	assert.False(t, pos.TP1LegOpen)

	// Once the close sticks, later ticks stay quiet below the trail trigger.
	assert.Empty(t, m.OnTick(pos, d(195.60)))
}

func TestOnTickStopNeverLoosens(t *testing.T) {
	m := NewManager(d(0.01))
	pos := newLongPosition()
	pos.StopLoss = d(195.40) // already tighter than breakeven plus buffer

	actions := m.OnTick(pos, d(195.50))

	// First leg closes but the stop stays where it is.
	assert.Len(t, actions, 1)
	assert.Equal(t, ActionCloseFirstLeg, actions[0].Type)
	assert.True(t, pos.StopLoss.Equal(d(195.40)))
}

func TestOnTickShortSide(t *testing.T) {
	m := NewManager(d(0.01))
	pos := &Position{
		TradeID:       "ef56ab78",
		Symbol:        "EURUSD",
		Side:          SideShort,
		EntryPrice:    d(1.0900),
		StopLoss:      d(1.0950),
		TP1:           d(1.0860),
		TP2:           d(1.0800),
		TP1Lots:       d(0.10),
		RunnerLots:    d(0.10),
		TP1LegOpen:    true,
		RunnerLegOpen: true,
	}

	actions := m.OnTick(pos, d(1.0860))
	assert.Len(t, actions, 2)
	assert.True(t, actions[1].NewStop.Equal(d(1.0890)))

	// 0.0075 of the 0.0100 span travelled.
	actions = m.OnTick(pos, d(1.0825))
	assert.Len(t, actions, 1)
	assert.True(t, actions[0].NewStop.Equal(d(1.0860)))
}

func TestOnTickMissingRunnerLeg(t *testing.T) {
	m := NewManager(d(0.01))
	pos := newLongPosition()
	pos.RunnerLegOpen = false

	actions := m.OnTick(pos, d(195.50))

	// Only the close; nothing to move a stop on.
	assert.Len(t, actions, 1)
	assert.Equal(t, ActionCloseFirstLeg, actions[0].Type)
}

func TestOnTickNoOpenLegs(t *testing.T) {
	m := NewManager(d(0.01))
	pos := newLongPosition()
	pos.TP1LegOpen = false
	pos.RunnerLegOpen = false

	assert.Nil(t, m.OnTick(pos, d(196.00)))
	assert.Nil(t, m.OnTick(nil, d(196.00)))
}
