package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var (
		code string
		demo int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the publish workers until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			if err := a.connectSink(ctx); err != nil {
				return err
			}
			if code != "" {
				if err := a.authorize(ctx, code); err != nil {
					return err
				}
			}
			if err := a.enqueueDemo(demo); err != nil {
				return err
			}

			server := &http.Server{
				Addr:              cfg.MetricsAddr,
				Handler:           a.metricsHandler(),
				ReadHeaderTimeout: 5 * time.Second,
			}
			go func() {
				logger.Info("Serving metrics", "addr", cfg.MetricsAddr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("Metrics server failed", "error", err)
				}
			}()
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = server.Shutdown(shutdownCtx)
			}()

			return a.engine.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&code, "authorization-code", "", "complete the Facebook OAuth handshake with this code before starting")
	cmd.Flags().IntVar(&demo, "demo-posts", 0, "enqueue this many demo posts for facebook:main")
	return cmd
}

func (a *app) metricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.metrics, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if !a.engine.Health().Healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	return mux
}
