package app

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ServeMetrics exposes the run counters on /metrics at the configured address
// until the returned stop function is called. It does nothing when no address
// is configured.
func (a *App) ServeMetrics(ctx context.Context) func() error {
	if a.config.MetricsAddr == "" {
		a.logger.DebugContext(ctx, "metrics server not started: disabled")

		return func() error { return nil }
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              a.config.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.InfoContext(ctx, "metrics server starting", "address", a.config.MetricsAddr)
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.ErrorContext(ctx, "metrics server failed", "error", err)
		}
	}()

	return func() error {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		if err != nil {
			return errors.Wrap(err, "unable to stop metrics server")
		}

		return nil
	}
}
