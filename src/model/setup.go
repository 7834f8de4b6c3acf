package model

const (
	BiasLong  = "long"
	BiasShort = "short"
)

const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// TradeSetup is a proposal produced by the external analysis service.
// Immutable once admitted by the risk gate.
type TradeSetup struct {
	Symbol         string  `json:"symbol"`
	Bias           string  `json:"bias"` // long | short
	EntryMin       float64 `json:"entry_min"`
	EntryMax       float64 `json:"entry_max"`
	StopLoss       float64 `json:"stop_loss"`
	TP1            float64 `json:"tp1"`
	TP2            float64 `json:"tp2"`
	SLPips         float64 `json:"sl_pips"`
	Confidence     string  `json:"confidence"`
	ChecklistScore int     `json:"checklist_score"`
	TP1ClosePct    int     `json:"tp1_close_pct"`
	MaxAttempts    int     `json:"max_attempts"`
}

// IsLong reports the directional bias.
func (s *TradeSetup) IsLong() bool { return s.Bias == BiasLong }

// InZone reports whether price lies inside the entry zone [EntryMin, EntryMax].
func (s *TradeSetup) InZone(price float64) bool {
	return price >= s.EntryMin && price <= s.EntryMax
}
