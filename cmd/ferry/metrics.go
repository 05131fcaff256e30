package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/ferry"
	"github.com/aretw0/ferry/internal/config"
	"github.com/aretw0/ferry/pkg/observability"
)

// startMetrics serves visit metrics on cfg.Metrics.Addr. Without an address
// it returns no option and a no-op stop.
func startMetrics(cfg *config.Config, logger *slog.Logger) ([]ferry.Option, func()) {
	if cfg.Metrics.Addr == "" {
		return nil, func() {}
	}

	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("Serving metrics", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("Metrics server stopped", "err", err)
		}
	}()

	return []ferry.Option{ferry.WithMetrics(m)}, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
