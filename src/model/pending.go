package model

import "time"

// PendingTrade is a confirmed setup waiting for the execution agent to
// claim it. At most one exists per symbol, and only after its watch
// reached confirmed.
type PendingTrade struct {
	TradeID        string    `json:"trade_id"`
	Symbol         string    `json:"symbol"`
	Bias           string    `json:"bias"`
	EntryPrice     float64   `json:"entry_price"`
	StopLoss       float64   `json:"stop_loss"`
	TP1            float64   `json:"tp1"`
	TP2            float64   `json:"tp2"`
	SLPips         float64   `json:"sl_pips"`
	SizeSuggestion float64   `json:"size_suggestion"`
	TP1ClosePct    int       `json:"tp1_close_pct"`
	QueuedAt       time.Time `json:"queued_at"`
	ClaimedAt      time.Time `json:"claimed_at,omitempty"`
}
