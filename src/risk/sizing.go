package risk

import (
	"time"

	"github.com/shopspring/decimal"
)

// ----- session labels -----

type Session string

const (
	SessionWeekend  Session = "weekend"
	SessionDeadZone Session = "dead_zone"
	SessionAsia     Session = "asia_session"
	SessionLondon   Session = "london_session"
	SessionUS       Session = "us_session"
	SessionDefault  Session = "default"
)

// SessionSizeConfig holds the per-session size multipliers applied to the
// base lot when suggesting a position size.
type SessionSizeConfig struct {
	WeekendMultiplier  decimal.Decimal
	DeadZoneMultiplier decimal.Decimal
	AsiaMultiplier     decimal.Decimal
	LondonMultiplier   decimal.Decimal
	USMultiplier       decimal.Decimal
	DefaultMultiplier  decimal.Decimal
}

func DefaultSessionSizeConfig() SessionSizeConfig {
	return SessionSizeConfig{
		WeekendMultiplier:  decimal.NewFromFloat(0.15),
		DeadZoneMultiplier: decimal.NewFromFloat(0.15),
		AsiaMultiplier:     decimal.NewFromFloat(0.75),
		LondonMultiplier:   decimal.NewFromFloat(1.0),
		USMultiplier:       decimal.NewFromFloat(1.25),
		DefaultMultiplier:  decimal.NewFromFloat(0.5),
	}
}

// SuggestSize scales the base lot by the current session's multiplier and
// snaps the result down to the pair's lot step, clamped to the minimum
// tradeable size. Returns the size and the detected session.
func SuggestSize(
	baseLot decimal.Decimal,
	profile PairProfile,
	now time.Time,
	cfg SessionSizeConfig,
) (decimal.Decimal, Session) {
	if baseLot.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, SessionDefault
	}

	sess := detectSession(easternTime(now))
	scaled := baseLot.Mul(multiplierForSession(sess, cfg))

	step := decimal.NewFromFloat(profile.LotStep)
	if step.IsPositive() {
		scaled = scaled.Div(step).Floor().Mul(step)
	}

	minLot := decimal.NewFromFloat(profile.MinLot)
	if scaled.LessThan(minLot) {
		scaled = minLot
	}

	return scaled, sess
}

func easternTime(t time.Time) time.Time {
	nyLocation, err := time.LoadLocation("America/New_York")
	if err != nil {
		return t.UTC()
	}
	return t.In(nyLocation)
}

func detectSession(t time.Time) Session {
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return SessionWeekend
	}

	switch h := t.Hour(); {
	case h >= 17 && h < 20:
		return SessionDeadZone
	case h >= 20 || h < 3:
		return SessionAsia
	case h >= 3 && h < 9:
		return SessionLondon
	case h >= 9 && h <= 17:
		return SessionUS
	default:
		return SessionDefault
	}
}

func multiplierForSession(s Session, cfg SessionSizeConfig) decimal.Decimal {
	switch s {
	case SessionWeekend:
		return cfg.WeekendMultiplier
	case SessionDeadZone:
		return cfg.DeadZoneMultiplier
	case SessionAsia:
		return cfg.AsiaMultiplier
	case SessionLondon:
		return cfg.LondonMultiplier
	case SessionUS:
		return cfg.USMultiplier
	default:
		return cfg.DefaultMultiplier
	}
}
