package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradeanalyst_http_requests_total",
		Help: "HTTP requests handled, by route and status code.",
	}, []string{"route", "code"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tradeanalyst_http_request_duration_seconds",
		Help:    "HTTP request latency, by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	activeWatches = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tradeanalyst_active_watches",
		Help: "Watches currently registered and not terminal.",
	})

	pendingTrades = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tradeanalyst_pending_trades",
		Help: "Confirmed trades waiting for the execution agent.",
	})

	openTrades = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tradeanalyst_open_trades",
		Help: "Executed trades still tracking a live position.",
	})
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// metricsMiddleware counts and times every request by route pattern.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		route := r.URL.Path
		requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
