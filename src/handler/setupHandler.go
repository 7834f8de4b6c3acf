package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	logger "github.com/sirupsen/logrus"

	"tradeanalyst/src/model"
)

type setupSubmitter interface {
	SubmitSetup(ctx context.Context, req *model.SubmitSetupRequest) (*model.SubmitSetupResponse, error)
}

// SubmitSetupHandler returns a handler that admits a proposed trade setup.
// A rejection by validation or by the risk gate carries the reason in the
// response body; rejections create no server-side state.
func SubmitSetupHandler(svc setupSubmitter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req model.SubmitSetupRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		resp, err := svc.SubmitSetup(r.Context(), &req)
		switch {
		case errors.Is(err, model.ErrConflict):
			writeJSON(w, http.StatusConflict, resp)
			return
		case err != nil && resp != nil:
			// Validation failure with a structured reason.
			writeJSON(w, http.StatusBadRequest, resp)
			return
		case err != nil:
			logger.WithError(err).Error("failed to submit setup")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.WithError(err).Error("failed to encode response")
	}
}
