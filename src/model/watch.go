package model

import "time"

const (
	WatchStatusWatching  = "watching"
	WatchStatusConfirmed = "confirmed"
	WatchStatusRejected  = "rejected"
	WatchStatusExpired   = "expired"
)

// Watch is a registered intent to monitor an instrument's price against a
// proposed entry zone. At most one non-terminal watch exists per symbol.
type Watch struct {
	TradeID       string     `json:"trade_id"`
	Symbol        string     `json:"symbol"`
	Setup         TradeSetup `json:"setup"`
	Status        string     `json:"status"`
	AttemptsUsed  int        `json:"attempts_used"`
	CreatedAt     time.Time  `json:"created_at"`
	ExpiresAt     time.Time  `json:"expires_at"`
	LastAttemptAt time.Time  `json:"last_attempt_at,omitempty"`
}

// Terminal reports whether the watch can no longer transition.
func (w *Watch) Terminal() bool {
	return w.Status != WatchStatusWatching
}

// RemainingAttempts is never negative.
func (w *Watch) RemainingAttempts() int {
	remaining := w.Setup.MaxAttempts - w.AttemptsUsed
	if remaining < 0 {
		return 0
	}
	return remaining
}
