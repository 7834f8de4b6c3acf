package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"tradeanalyst/src/model"
)

type watchPoller interface {
	PollWatch(symbol string) *model.WatchPollResponse
}

// WatchPollHandler returns a handler answering the agent's zone-watch poll.
// Stateless by design: every answer is complete, nothing depends on the
// agent having seen a previous response.
func WatchPollHandler(svc watchPoller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		symbol := r.URL.Query().Get("symbol")
		if symbol == "" {
			http.Error(w, "symbol is required", http.StatusBadRequest)
			return
		}

		writeJSON(w, http.StatusOK, svc.PollWatch(symbol))
	}
}

type entryConfirmer interface {
	ConfirmEntry(ctx context.Context, req *model.ConfirmEntryRequest) *model.ConfirmEntryResponse
}

// ConfirmEntryHandler returns a handler that processes a zone-touch report.
// The answer is always structured; a watch that meanwhile expired or was
// never known yields a negative confirmation, not an error status.
func ConfirmEntryHandler(svc entryConfirmer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req model.ConfirmEntryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if err := req.Validate(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		writeJSON(w, http.StatusOK, svc.ConfirmEntry(r.Context(), &req))
	}
}
