package agent

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Symbols           []string      `envconfig:"AGENT_SYMBOLS" default:"GBPJPY"`
	WatchPollPeriod   time.Duration `envconfig:"WATCH_POLL_PERIOD" default:"30s"`
	PendingPollPeriod time.Duration `envconfig:"PENDING_POLL_PERIOD" default:"10s"`
	ReconcilePeriod   time.Duration `envconfig:"RECONCILE_PERIOD" default:"60s"`
	// ConfirmMinSpacing throttles zone-touch reports locally; the
	// authority enforces the real cooldown.
	ConfirmMinSpacing   time.Duration `envconfig:"CONFIRM_MIN_SPACING" default:"5s"`
	QuoteStreamURL      string        `envconfig:"QUOTE_STREAM_URL" default:"ws://localhost:9001/quotes"`
	Broker              string        `envconfig:"AGENT_BROKER" default:"paper"`
	BreakevenBufferPips float64       `envconfig:"BREAKEVEN_BUFFER_PIPS" default:"1.0"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
