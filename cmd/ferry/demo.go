package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/aretw0/ferry/internal/cli"
	"github.com/aretw0/ferry/internal/testutils"
	ferryhttp "github.com/aretw0/ferry/pkg/adapters/http"
	"github.com/aretw0/ferry/pkg/domain"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Serve a sample Page Source",
	Long: `Starts a small user-list application speaking the page protocol, for
trying 'ferry visit' and 'ferry browse'. Metrics are served on /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		addr, _ := cmd.Flags().GetString("addr")
		version, _ := cmd.Flags().GetString("asset-version")

		ps := testutils.NewPageSource(domain.StringVersion(version))
		ps.ReleaseSlow()

		r := chi.NewRouter()
		r.Use(middleware.Recoverer)
		r.Use(ferryhttp.CORS)
		r.Handle("/metrics", promhttp.Handler())
		r.Mount("/", ps)

		srv := &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("Starting demo Page Source", "addr", srv.Addr, "asset_version", version)
			serverErrors <- srv.ListenAndServe()
		}()

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()
		fmt.Fprintf(os.Stderr, "Serving on http://localhost%s (metrics on /metrics)\n", srv.Addr)
		if cfg.BaseURL == "" {
			fmt.Fprintf(os.Stderr, "Try: ferry browse --base-url http://localhost%s\n", srv.Addr)
		}

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)
		case <-ctx.Done():
			logger.Info("Shutting down", "signal", fmt.Sprint(ctx.Signal()))

			// Give outstanding requests a deadline for completion.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Graceful shutdown did not complete", "err", err)
				return srv.Close()
			}
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(demoCmd)
	demoCmd.Flags().String("addr", ":8080", "Address to listen on")
	demoCmd.Flags().String("asset-version", "1", "Asset version reported by the Page Source")
}
