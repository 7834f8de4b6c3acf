package orchestrator

import (
	"time"

	"github.com/kelseyhightower/envconfig"
	logger "github.com/sirupsen/logrus"
)

type Config struct {
	// ConfirmCooldown is the minimum spacing between counted confirmation
	// attempts for one watch.
	ConfirmCooldown time.Duration `envconfig:"CONFIRM_COOLDOWN" default:"5m"`
	// PendingTTL bounds how long a confirmed trade waits unclaimed in the
	// execution queue.
	PendingTTL time.Duration `envconfig:"PENDING_TTL" default:"60s"`
	// WatchTTL bounds a watch's lifetime when the pair has no kill-zone
	// cutoff, or when the cutoff lies further away.
	WatchTTL time.Duration `envconfig:"WATCH_TTL" default:"4h"`

	SweepInterval time.Duration `envconfig:"SWEEP_INTERVAL" default:"60s"`
	// StaleOpenAfter is how long an executed trade may sit open with no
	// close report before recovery settles it as unknown-closed.
	StaleOpenAfter time.Duration `envconfig:"STALE_OPEN_AFTER" default:"72h"`

	BaseLot             float64 `envconfig:"BASE_LOT" default:"0.5"`
	BreakevenBufferPips float64 `envconfig:"BREAKEVEN_BUFFER_PIPS" default:"1.0"`
	DefaultMaxAttempts  int     `envconfig:"MAX_CONFIRMATIONS" default:"3"`
	DefaultTP1ClosePct  int     `envconfig:"TP1_CLOSE_PCT" default:"50"`
}

var config *Config

func GetConfig() *Config {
	if config == nil {
		config = &Config{}
		if err := envconfig.Process("", config); err != nil {
			logger.WithError(err).Fatal("Failed to load orchestrator config")
		}
	}
	return config
}
