package handler

import (
	"context"
	"net/http"
	"strconv"

	logger "github.com/sirupsen/logrus"

	"tradeanalyst/src/model"
	"tradeanalyst/src/orchestrator"
)

type healthReporter interface {
	Health(ctx context.Context) *orchestrator.Health
}

// HealthcheckHandler reports liveness plus the in-memory lifecycle counts.
func HealthcheckHandler(svc healthReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Health(r.Context()))
	}
}

type statsReporter interface {
	Stats(ctx context.Context, symbol string, days int) (*model.StatsSummary, error)
}

// StatsHandler aggregates closed-trade performance over a day window.
// Supports ?symbol= and ?days= (default 30).
func StatsHandler(svc statsReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days := 30
		if daysParam := r.URL.Query().Get("days"); daysParam != "" {
			parsed, err := strconv.Atoi(daysParam)
			if err != nil || parsed <= 0 {
				http.Error(w, "invalid days", http.StatusBadRequest)
				return
			}
			days = parsed
		}

		summary, err := svc.Stats(r.Context(), r.URL.Query().Get("symbol"), days)
		if err != nil {
			logger.WithError(err).Error("failed to aggregate stats")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, summary)
	}
}
