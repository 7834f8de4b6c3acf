package model

import (
	"fmt"
	"strings"
)

// Typed message schema for the polling contract. Every payload is validated
// at the boundary; malformed messages get a structured rejection instead of
// partial field extraction.

type SubmitSetupRequest struct {
	TradeSetup
}

// Validate rejects structurally invalid proposals before they reach the
// risk gate.
func (r *SubmitSetupRequest) Validate() error {
	if strings.TrimSpace(r.Symbol) == "" {
		return fmt.Errorf("symbol is required")
	}
	if r.Bias != BiasLong && r.Bias != BiasShort {
		return fmt.Errorf("bias must be %q or %q", BiasLong, BiasShort)
	}
	if r.EntryMin <= 0 || r.EntryMax <= 0 || r.EntryMin > r.EntryMax {
		return fmt.Errorf("entry zone [%v, %v] is invalid", r.EntryMin, r.EntryMax)
	}
	if r.StopLoss <= 0 {
		return fmt.Errorf("stop_loss is required")
	}
	if r.TP1 <= 0 || r.TP2 <= 0 {
		return fmt.Errorf("both take-profit levels are required")
	}
	if r.Bias == BiasLong && r.StopLoss >= r.EntryMin {
		return fmt.Errorf("long stop_loss %v must be below the entry zone", r.StopLoss)
	}
	if r.Bias == BiasShort && r.StopLoss <= r.EntryMax {
		return fmt.Errorf("short stop_loss %v must be above the entry zone", r.StopLoss)
	}
	if r.TP1ClosePct < 1 || r.TP1ClosePct > 100 {
		return fmt.Errorf("tp1_close_pct %d out of range 1-100", r.TP1ClosePct)
	}
	if r.MaxAttempts < 0 {
		return fmt.Errorf("max_attempts must not be negative")
	}
	return nil
}

type SubmitSetupResponse struct {
	Admitted bool   `json:"admitted"`
	TradeID  string `json:"trade_id,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

const (
	PollStatusWatch   = "watch"
	PollStatusPending = "pending"
	PollStatusNone    = "none"
)

type WatchPollResponse struct {
	Status      string  `json:"status"` // watch | none
	TradeID     string  `json:"trade_id,omitempty"`
	Bias        string  `json:"bias,omitempty"`
	ZoneLow     float64 `json:"zone_low,omitempty"`
	ZoneHigh    float64 `json:"zone_high,omitempty"`
	StopLoss    float64 `json:"stop_loss,omitempty"`
	TP1         float64 `json:"tp1,omitempty"`
	TP2         float64 `json:"tp2,omitempty"`
	SLPips      float64 `json:"sl_pips,omitempty"`
	MaxAttempts int     `json:"max_attempts,omitempty"`
	TP1ClosePct int     `json:"tp1_close_pct,omitempty"`
	AgeSeconds  int     `json:"age_seconds,omitempty"`
}

type ConfirmEntryRequest struct {
	TradeID      string  `json:"trade_id"`
	Symbol       string  `json:"symbol"`
	Bias         string  `json:"bias"`
	CurrentPrice float64 `json:"current_price"`
}

func (r *ConfirmEntryRequest) Validate() error {
	if strings.TrimSpace(r.TradeID) == "" {
		return fmt.Errorf("trade_id is required")
	}
	if strings.TrimSpace(r.Symbol) == "" {
		return fmt.Errorf("symbol is required")
	}
	if r.Bias != BiasLong && r.Bias != BiasShort {
		return fmt.Errorf("bias must be %q or %q", BiasLong, BiasShort)
	}
	if r.CurrentPrice <= 0 {
		return fmt.Errorf("current_price is required")
	}
	return nil
}

type ConfirmEntryResponse struct {
	Confirmed         bool    `json:"confirmed"`
	Reasoning         string  `json:"reasoning,omitempty"`
	RemainingAttempts int     `json:"remaining_attempts"`
	EntryPrice        float64 `json:"entry_price,omitempty"`
	AdjustedStopLoss  float64 `json:"adjusted_stop_loss,omitempty"`
}

type PendingPollResponse struct {
	Status         string  `json:"status"` // pending | none
	TradeID        string  `json:"trade_id,omitempty"`
	Bias           string  `json:"bias,omitempty"`
	EntryPrice     float64 `json:"entry_price,omitempty"`
	StopLoss       float64 `json:"stop_loss,omitempty"`
	TP1            float64 `json:"tp1,omitempty"`
	TP2            float64 `json:"tp2,omitempty"`
	SLPips         float64 `json:"sl_pips,omitempty"`
	SizeSuggestion float64 `json:"size_suggestion,omitempty"`
	TP1ClosePct    int     `json:"tp1_close_pct,omitempty"`
}

// ExecutionReport is sent by the agent after placing (or failing to place)
// the two order legs. Repeated delivery with the same trade_id is a no-op.
type ExecutionReport struct {
	TradeID      string  `json:"trade_id"`
	Symbol       string  `json:"symbol"`
	TicketTP1    int64   `json:"ticket_tp1"`
	TicketTP2    int64   `json:"ticket_tp2"`
	LotsTP1      float64 `json:"lots_tp1"`
	LotsTP2      float64 `json:"lots_tp2"`
	ActualEntry  float64 `json:"actual_entry"`
	ActualSL     float64 `json:"actual_sl"`
	ActualTP1    float64 `json:"actual_tp1"`
	ActualTP2    float64 `json:"actual_tp2"`
	Status       string  `json:"status"` // executed | pending | failed
	ErrorMessage string  `json:"error_message,omitempty"`
}

func (r *ExecutionReport) Validate() error {
	if strings.TrimSpace(r.TradeID) == "" {
		return fmt.Errorf("trade_id is required")
	}
	switch r.Status {
	case TradeStatusExecuted, TradeStatusPending, TradeStatusFailed:
	default:
		return fmt.Errorf("status %q is not a valid execution status", r.Status)
	}
	if r.Status != TradeStatusFailed && r.TicketTP1 == 0 && r.TicketTP2 == 0 {
		return fmt.Errorf("executed report carries no order tickets")
	}
	return nil
}

// CloseReport is sent by the agent when one leg of a position closes.
// Repeated delivery with the same trade_id and ticket is a no-op.
type CloseReport struct {
	TradeID     string  `json:"trade_id"`
	Symbol      string  `json:"symbol"`
	Ticket      int64   `json:"ticket"`
	ClosePrice  float64 `json:"close_price"`
	CloseReason string  `json:"close_reason"` // tp1 | tp2 | sl | manual | cancelled | unknown
	Profit      float64 `json:"profit"`
}

func (r *CloseReport) Validate() error {
	if strings.TrimSpace(r.TradeID) == "" {
		return fmt.Errorf("trade_id is required")
	}
	switch r.CloseReason {
	case CloseReasonTP1, CloseReasonTP2, CloseReasonSL,
		CloseReasonManual, CloseReasonCancelled, CloseReasonUnknown:
	default:
		return fmt.Errorf("close_reason %q is not recognised", r.CloseReason)
	}
	return nil
}

// StopMoveReport mirrors an agent-side stop modification (breakeven or
// trailing) into the durable record.
type StopMoveReport struct {
	TradeID        string  `json:"trade_id"`
	Symbol         string  `json:"symbol"`
	NewStopLoss    float64 `json:"new_stop_loss"`
	FirstTargetHit bool    `json:"first_target_hit"`
}

func (r *StopMoveReport) Validate() error {
	if strings.TrimSpace(r.TradeID) == "" {
		return fmt.Errorf("trade_id is required")
	}
	if r.NewStopLoss <= 0 {
		return fmt.Errorf("new_stop_loss is required")
	}
	return nil
}

type Ack struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type OpenTradesResponse struct {
	Trades []TradeRecord `json:"trades"`
}
