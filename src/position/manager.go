package position

import (
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Position is the agent-local view of an executed two-leg trade. The first
// leg closes at the first target; the runner trails toward the second.
type Position struct {
	TradeID    string
	Symbol     string
	Side       Side
	EntryPrice decimal.Decimal
	StopLoss   decimal.Decimal
	TP1        decimal.Decimal
	TP2        decimal.Decimal

	TP1Lots    decimal.Decimal
	RunnerLots decimal.Decimal

	// A leg can be missing after a partial execution; the manager only
	// operates on whichever legs exist.
	TP1LegOpen    bool
	RunnerLegOpen bool

	FirstTargetHit bool
	TrailArmed     bool
}

type ActionType int

const (
	// ActionCloseFirstLeg closes the configured percentage at the first target.
	ActionCloseFirstLeg ActionType = iota
	// ActionMoveStop tightens the stop of the remaining legs.
	ActionMoveStop
)

type Action struct {
	Type    ActionType
	Lots    decimal.Decimal
	NewStop decimal.Decimal
}

// SplitLots divides the total size into the first-target leg and the
// runner. The first leg is closePct of the total, rounded down to the lot
// step and clamped to the minimum tradeable size; the runner takes the
// remainder.
func SplitLots(total decimal.Decimal, closePct int, step, minLot decimal.Decimal) (tp1Lots, runnerLots decimal.Decimal) {
	if total.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, decimal.Zero
	}
	if closePct < 1 {
		closePct = 1
	}
	if closePct > 100 {
		closePct = 100
	}

	tp1Lots = total.Mul(decimal.NewFromInt(int64(closePct))).Div(decimal.NewFromInt(100))
	if step.IsPositive() {
		tp1Lots = tp1Lots.Div(step).Floor().Mul(step)
	}
	if tp1Lots.LessThan(minLot) {
		tp1Lots = minLot
	}
	if tp1Lots.GreaterThan(total) {
		tp1Lots = total
	}

	runnerLots = total.Sub(tp1Lots)
	return tp1Lots, runnerLots
}

// Improves reports whether candidate tightens the stop: for a long the
// stop may only move up, for a short only down. Anything else is refused.
func Improves(side Side, current, candidate decimal.Decimal) bool {
	switch side {
	case SideLong:
		return candidate.GreaterThan(current)
	case SideShort:
		return candidate.LessThan(current)
	default:
		return false
	}
}

// CrossedTarget reports whether price reached the target in the trade's
// direction.
func CrossedTarget(side Side, price, target decimal.Decimal) bool {
	switch side {
	case SideLong:
		return price.GreaterThanOrEqual(target)
	case SideShort:
		return price.LessThanOrEqual(target)
	default:
		return false
	}
}

// Progress measures how far price has travelled from entry toward the
// second target, sign-adjusted for direction. 0 at entry, 1 at the target.
func Progress(side Side, entry, tp2, price decimal.Decimal) decimal.Decimal {
	span := tp2.Sub(entry)
	if span.IsZero() {
		return decimal.Zero
	}
	// span is negative for shorts, so Div sign-adjusts on its own.
	return price.Sub(entry).Div(span)
}

// Manager applies the adaptive exit algorithm on every price update.
type Manager struct {
	// BreakevenBuffer is the price distance added in the trade's favour
	// when relocating the stop to entry after the first target.
	BreakevenBuffer decimal.Decimal
	// TrailTrigger is the progress threshold (default 0.75) at which the
	// runner's stop moves to the first-target price.
	TrailTrigger decimal.Decimal
}

func NewManager(breakevenBuffer decimal.Decimal) *Manager {
	return &Manager{
		BreakevenBuffer: breakevenBuffer,
		TrailTrigger:    decimal.NewFromFloat(0.75),
	}
}

// OnTick evaluates one price update and returns the actions to apply, in
// order. Every stop produced is a monotonic improvement; the caller applies
// them to the broker and mirrors them to the authority.
func (m *Manager) OnTick(pos *Position, price decimal.Decimal) []Action {
	var actions []Action

	if pos == nil || (!pos.TP1LegOpen && !pos.RunnerLegOpen) {
		return nil
	}

	// First-target close: bank the first leg, then move the remainder
	// to breakeven plus buffer, but never loosen the stop. The close is
	// keyed on the leg flag, not FirstTargetHit, so a caller that fails
	// to fill the close and re-opens the flag gets the action again on
	// the next tick.
	if CrossedTarget(pos.Side, price, pos.TP1) {
		if pos.TP1LegOpen {
			actions = append(actions, Action{Type: ActionCloseFirstLeg, Lots: pos.TP1Lots})
			pos.TP1LegOpen = false
		}

		if !pos.FirstTargetHit {
			pos.FirstTargetHit = true

			if pos.RunnerLegOpen {
				candidate := m.breakevenStop(pos)
				if Improves(pos.Side, pos.StopLoss, candidate) {
					pos.StopLoss = candidate
					actions = append(actions, Action{Type: ActionMoveStop, NewStop: candidate})
				}
			}

			logger.WithFields(map[string]interface{}{
				"trade_id": pos.TradeID,
				"symbol":   pos.Symbol,
				"price":    price.String(),
			}).Info("First target hit")
		}
	}

	// Trailing stop: armed only after the first target is secured.
	if pos.FirstTargetHit && pos.RunnerLegOpen && !pos.TrailArmed {
		progress := Progress(pos.Side, pos.EntryPrice, pos.TP2, price)
		if progress.GreaterThanOrEqual(m.TrailTrigger) && Improves(pos.Side, pos.StopLoss, pos.TP1) {
			pos.StopLoss = pos.TP1
			pos.TrailArmed = true
			actions = append(actions, Action{Type: ActionMoveStop, NewStop: pos.TP1})

			logger.WithFields(map[string]interface{}{
				"trade_id": pos.TradeID,
				"symbol":   pos.Symbol,
				"progress": progress.String(),
				"stop":     pos.TP1.String(),
			}).Info("Trailing stop moved to first target")
		}
	}

	return actions
}

func (m *Manager) breakevenStop(pos *Position) decimal.Decimal {
	if pos.Side == SideLong {
		return pos.EntryPrice.Add(m.BreakevenBuffer)
	}
	return pos.EntryPrice.Sub(m.BreakevenBuffer)
}
