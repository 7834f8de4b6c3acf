package model

import "time"

const (
	TradeStatusWatching  = "watching"
	TradeStatusConfirmed = "confirmed"
	TradeStatusRejected  = "rejected"
	TradeStatusExpired   = "expired"
	TradeStatusExecuted  = "executed"
	TradeStatusPending   = "pending" // limit order placed, not yet filled
	TradeStatusFailed    = "failed"
	TradeStatusClosed    = "closed"
)

const (
	CloseReasonTP1       = "tp1"
	CloseReasonTP2       = "tp2"
	CloseReasonSL        = "sl"
	CloseReasonManual    = "manual"
	CloseReasonCancelled = "cancelled"
	CloseReasonUnknown   = "unknown"
)

const (
	OutcomeOpen       = "open"
	OutcomeFullWin    = "full_win"
	OutcomePartialWin = "partial_win"
	OutcomeLoss       = "loss"
	OutcomeCancelled  = "cancelled"
	OutcomeClosed     = "closed"
)

// TradeRecord is the durable record of one trade identifier across its whole
// lifecycle. It is the single source of truth: every in-memory registry must
// be rebuildable from these rows alone.
type TradeRecord struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	TradeID   string `gorm:"size:16;uniqueIndex;not null" json:"trade_id"`
	Symbol    string `gorm:"size:20;index" json:"symbol"`
	Bias      string `gorm:"size:10" json:"bias"`
	Confidence string `gorm:"size:10" json:"confidence"`

	// Planned levels
	EntryMin       float64 `json:"entry_min"`
	EntryMax       float64 `json:"entry_max"`
	StopLoss       float64 `json:"stop_loss"`
	TP1            float64 `json:"tp1"`
	TP2            float64 `json:"tp2"`
	SLPips         float64 `json:"sl_pips"`
	TP1Pips        float64 `json:"tp1_pips"`
	TP2Pips        float64 `json:"tp2_pips"`
	ChecklistScore int     `json:"checklist_score"`
	TP1ClosePct    int     `json:"tp1_close_pct"`
	MaxAttempts    int     `json:"max_attempts"`

	// Watch progress
	Status        string     `gorm:"size:20;index;not null;default:watching" json:"status"`
	AttemptsUsed  int        `json:"attempts_used"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`

	// Execution
	ActualEntry    float64 `json:"actual_entry"`
	CurrentStop    float64 `json:"current_stop"`
	TicketTP1      int64   `gorm:"index" json:"ticket_tp1"`
	TicketTP2      int64   `gorm:"index" json:"ticket_tp2"`
	LotsTP1        float64 `json:"lots_tp1"`
	LotsTP2        float64 `json:"lots_tp2"`
	SizeSuggestion float64 `json:"size_suggestion"`
	ErrorMessage   string  `gorm:"type:text" json:"error_message,omitempty"`

	// Outcomes
	TP1Hit        bool    `json:"tp1_hit"`
	TP2Hit        bool    `json:"tp2_hit"`
	SLHit         bool    `json:"sl_hit"`
	ClosePriceTP1 float64 `json:"close_price_tp1"`
	ClosePriceTP2 float64 `json:"close_price_tp2"`
	PnlPips       float64 `json:"pnl_pips"`
	PnlMoney      float64 `json:"pnl_money"`
	Outcome       string  `gorm:"size:20;index;not null;default:open" json:"outcome"`

	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	ExecutedAt *time.Time `json:"executed_at,omitempty"`
	ClosedAt   *time.Time `json:"closed_at,omitempty"`
}

// TableName pins the table name for trade records.
func (TradeRecord) TableName() string {
	return "trade_records"
}

// Setup rebuilds the admitted TradeSetup from the persisted columns.
func (r *TradeRecord) Setup() TradeSetup {
	return TradeSetup{
		Symbol:         r.Symbol,
		Bias:           r.Bias,
		EntryMin:       r.EntryMin,
		EntryMax:       r.EntryMax,
		StopLoss:       r.StopLoss,
		TP1:            r.TP1,
		TP2:            r.TP2,
		SLPips:         r.SLPips,
		Confidence:     r.Confidence,
		ChecklistScore: r.ChecklistScore,
		TP1ClosePct:    r.TP1ClosePct,
		MaxAttempts:    r.MaxAttempts,
	}
}

// Open reports whether the record still tracks a live broker position.
func (r *TradeRecord) Open() bool {
	return r.Outcome == OutcomeOpen &&
		(r.Status == TradeStatusExecuted || r.Status == TradeStatusPending)
}
