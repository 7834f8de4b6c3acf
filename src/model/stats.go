package model

// StatsSummary aggregates closed-trade performance over a window.
type StatsSummary struct {
	PeriodDays   int     `json:"period_days"`
	Symbol       string  `json:"symbol"`
	TotalTrades  int     `json:"total_trades"`
	OpenTrades   int     `json:"open_trades"`
	ClosedTrades int     `json:"closed_trades"`
	FailedTrades int     `json:"failed_trades"`
	Wins         int     `json:"wins"`
	FullWins     int     `json:"full_wins"`
	PartialWins  int     `json:"partial_wins"`
	Losses       int     `json:"losses"`
	WinRate      float64 `json:"win_rate"`
	TotalPnlPips float64 `json:"total_pnl_pips"`
	TotalPnlUSD  float64 `json:"total_pnl_money"`

	PairStats map[string]PairStats `json:"pair_stats,omitempty"`
}

// PairStats is the per-symbol slice of StatsSummary.
type PairStats struct {
	Total    int     `json:"total"`
	Closed   int     `json:"closed"`
	Wins     int     `json:"wins"`
	WinRate  float64 `json:"win_rate"`
	PnlPips  float64 `json:"pnl_pips"`
	PnlMoney float64 `json:"pnl_money"`
}
