package risk

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/kelseyhightower/envconfig"
	logger "github.com/sirupsen/logrus"

	"tradeanalyst/src/model"
)

// GetGateConfig loads the gate ceilings from the environment.
func GetGateConfig() GateConfig {
	var config GateConfig
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

type GateConfig struct {
	MaxDailyLoss         float64       `envconfig:"MAX_DAILY_LOSS" default:"300"`
	MaxOpenTrades        int           `envconfig:"MAX_OPEN_TRADES" default:"2"`
	CorrelationThreshold float64       `envconfig:"CORRELATION_THRESHOLD" default:"0.75"`
	NewsBlockBefore      time.Duration `envconfig:"NEWS_BLOCK_BEFORE" default:"15m"`
	NewsBlockAfter       time.Duration `envconfig:"NEWS_BLOCK_AFTER" default:"15m"`
}

// Book is the slice of the durable store the gate consults: the current
// open positions and today's realized losses.
type Book interface {
	FindOpen(ctx context.Context, symbol string) ([]model.TradeRecord, error)
	CountOpen(ctx context.Context) (int64, error)
	SumPnlSince(ctx context.Context, cutoff time.Time) (float64, error)
}

// Decision is the gate's structured verdict. Rejections create no state.
type Decision struct {
	Admitted bool
	Reason   string
}

// Gate admits or rejects a proposed setup before it becomes a watch.
// Checks run in order: news blackout, correlation conflict, ceilings.
type Gate struct {
	config GateConfig
	book   Book
	events EventSource // nil disables the news check
	now    func() time.Time
}

func NewGate(config GateConfig, book Book, events EventSource) *Gate {
	return &Gate{config: config, book: book, events: events, now: time.Now}
}

// Evaluate runs all admission checks for a validated setup.
func (g *Gate) Evaluate(ctx context.Context, setup *model.TradeSetup) (Decision, error) {
	now := g.now().UTC()
	profile := GetProfile(setup.Symbol)

	if g.events != nil {
		from := now.Add(-12 * time.Hour)
		to := now.Add(12 * time.Hour)
		currencies := []string{profile.BaseCurrency, profile.QuoteCurrency}

		events, err := g.events.HighImpactEvents(ctx, from, to, currencies)
		if err != nil {
			// The calendar being down must not block trading decisions
			// forever; log and continue with the remaining checks.
			logger.WithError(err).WithField("symbol", setup.Symbol).
				Warn("News source unavailable, skipping blackout check")
		} else {
			newsCfg := NewNewsWindowConfig(g.config.NewsBlockBefore, g.config.NewsBlockAfter)
			decision := CanEnterTradeAt(now, events, newsCfg)
			if !decision.Allowed {
				return Decision{
					Admitted: false,
					Reason: fmt.Sprintf("news blackout until %s (%s)",
						decision.NextAllowedUTC.Format(time.RFC3339),
						decision.BlockingEvent.Title),
				}, nil
			}
		}
	}

	open, err := g.book.FindOpen(ctx, "")
	if err != nil {
		return Decision{}, err
	}

	for _, position := range open {
		if position.Symbol == setup.Symbol {
			continue // same-symbol duplication is the registry's job
		}
		corr, ok := profile.Correlations[position.Symbol]
		if !ok || math.Abs(corr) < g.config.CorrelationThreshold {
			continue
		}

		opposing := (corr > 0 && position.Bias != setup.Bias) ||
			(corr < 0 && position.Bias == setup.Bias)
		if opposing {
			return Decision{
				Admitted: false,
				Reason: fmt.Sprintf("correlation conflict: open %s %s (corr %.2f)",
					position.Symbol, position.Bias, corr),
			}, nil
		}
	}

	openCount, err := g.book.CountOpen(ctx)
	if err != nil {
		return Decision{}, err
	}
	if openCount >= int64(g.config.MaxOpenTrades) {
		return Decision{
			Admitted: false,
			Reason:   fmt.Sprintf("open-trade ceiling reached (%d)", g.config.MaxOpenTrades),
		}, nil
	}

	if g.config.MaxDailyLoss > 0 {
		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		realized, err := g.book.SumPnlSince(ctx, midnight)
		if err != nil {
			return Decision{}, err
		}
		if realized <= -g.config.MaxDailyLoss {
			return Decision{
				Admitted: false,
				Reason:   fmt.Sprintf("daily loss ceiling breached (%.2f)", realized),
			}, nil
		}
	}

	return Decision{Admitted: true, Reason: "admitted"}, nil
}
