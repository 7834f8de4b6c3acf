package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	logger "github.com/sirupsen/logrus"

	"tradeanalyst/src/auth"
	"tradeanalyst/src/handler"
	"tradeanalyst/src/orchestrator"
)

// StartServer wires the polling contract onto a chi router and serves it
// until SIGINT or SIGTERM, then shuts down gracefully. The expiry sweeper
// and the metrics refresher run for the server's lifetime.
func StartServer(o *orchestrator.Orchestrator) {
	cfg := GetConfig()
	authCfg := auth.GetConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go o.RunSweeper(ctx)
	go refreshGauges(ctx, o)

	r := chi.NewRouter()
	r.Use(metricsMiddleware)

	// Public routes
	r.Get("/healthcheck", handler.HealthcheckHandler(o))
	r.Handle("/metrics", promhttp.Handler())

	// Agent-facing routes
	r.Group(func(r chi.Router) {
		r.Use(auth.AgentKeyMiddleware(authCfg.AgentKeyHash))

		r.Post("/setup", handler.SubmitSetupHandler(o))
		r.Get("/watch_trade", handler.WatchPollHandler(o))
		r.Post("/confirm_entry", handler.ConfirmEntryHandler(o))
		r.Get("/pending_trade", handler.PendingPollHandler(o))
		r.Post("/trade_executed", handler.ExecutionReportHandler(o))
		r.Post("/trade_closed", handler.CloseReportHandler(o))
		r.Post("/update_stop", handler.StopMoveHandler(o))
		r.Get("/open_trades", handler.OpenTradesHandler(o))
		r.Get("/stats", handler.StatsHandler(o))
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server crashed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Shutdown error")
	}
}

// refreshGauges mirrors the lifecycle counts into the exported gauges.
func refreshGauges(ctx context.Context, o *orchestrator.Orchestrator) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h := o.Health(ctx)
			activeWatches.Set(float64(h.ActiveWatches))
			pendingTrades.Set(float64(h.PendingTrades))
			openTrades.Set(float64(h.OpenTrades))
		}
	}
}
