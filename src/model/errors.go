package model

import "errors"

// Error taxonomy for the lifecycle layer. Transient transport failures are
// retried by the pollers; logical conflicts favour the earliest-created
// state and reject the newer one. None of these may crash the process.
var (
	// ErrConflict: a non-terminal watch or pending trade already exists
	// for the instrument.
	ErrConflict = errors.New("conflict: active state already exists for instrument")

	// ErrSlotOccupied: the single execution slot for the instrument is taken.
	ErrSlotOccupied = errors.New("slot occupied: pending trade already queued")

	// ErrAttemptsExhausted: confirmation retries used up; the watch expires.
	ErrAttemptsExhausted = errors.New("confirmation attempts exhausted")

	// ErrExpired: the trading window closed before confirmation.
	ErrExpired = errors.New("watch expired")

	// ErrPartialExecution: one of the two order legs failed; the surviving
	// leg keeps being managed.
	ErrPartialExecution = errors.New("partial execution: one order leg failed")

	// ErrUnreachable: the counterpart did not answer within the poll timeout.
	ErrUnreachable = errors.New("counterpart unreachable")

	// ErrUnknownClose: a tracked position disappeared with no determinable
	// cause.
	ErrUnknownClose = errors.New("position closed for unknown reason")
)
