package handler

import (
	"context"
	"encoding/json"
	"net/http"

	logger "github.com/sirupsen/logrus"

	"tradeanalyst/src/model"
)

type pendingPoller interface {
	PollPending(symbol string) *model.PendingPollResponse
}

// PendingPollHandler returns a handler answering the agent's execution
// poll. The pending trade stays claimable until its execution report
// arrives, so a lost response is recovered by the next poll.
func PendingPollHandler(svc pendingPoller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		symbol := r.URL.Query().Get("symbol")
		if symbol == "" {
			http.Error(w, "symbol is required", http.StatusBadRequest)
			return
		}

		writeJSON(w, http.StatusOK, svc.PollPending(symbol))
	}
}

type executionRecorder interface {
	ReportExecution(ctx context.Context, report *model.ExecutionReport) (*model.Ack, error)
}

// ExecutionReportHandler records the agent's execution report. Duplicate
// reports for one trade identifier acknowledge without changing anything.
func ExecutionReportHandler(svc executionRecorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var report model.ExecutionReport
		if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if err := report.Validate(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		ack, err := svc.ReportExecution(r.Context(), &report)
		if err != nil {
			logger.WithError(err).WithField("trade_id", report.TradeID).
				Error("failed to record execution report")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, ack)
	}
}

type closeRecorder interface {
	ReportClose(ctx context.Context, report *model.CloseReport) (*model.Ack, error)
}

// CloseReportHandler records one leg's close. Idempotent per trade and
// close reason.
func CloseReportHandler(svc closeRecorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var report model.CloseReport
		if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if err := report.Validate(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		ack, err := svc.ReportClose(r.Context(), &report)
		if err != nil {
			logger.WithError(err).WithField("trade_id", report.TradeID).
				Error("failed to record close report")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, ack)
	}
}

type stopMoveRecorder interface {
	ReportStopMove(ctx context.Context, report *model.StopMoveReport) (*model.Ack, error)
}

// StopMoveHandler mirrors an agent-side stop modification into the record.
func StopMoveHandler(svc stopMoveRecorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var report model.StopMoveReport
		if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if err := report.Validate(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		ack, err := svc.ReportStopMove(r.Context(), &report)
		if err != nil {
			logger.WithError(err).WithField("trade_id", report.TradeID).
				Error("failed to record stop move")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, ack)
	}
}

type openTradesLister interface {
	OpenTrades(ctx context.Context, symbol string) (*model.OpenTradesResponse, error)
}

// OpenTradesHandler lists records still tracking a live broker position,
// used by the agent's reconciliation pass.
func OpenTradesHandler(svc openTradesLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := svc.OpenTrades(r.Context(), r.URL.Query().Get("symbol"))
		if err != nil {
			logger.WithError(err).Error("failed to list open trades")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
