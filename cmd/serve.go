package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dogcoloringbooks/coloringbook/internal/config"
	"github.com/dogcoloringbooks/coloringbook/internal/handlers"
	"github.com/dogcoloringbooks/coloringbook/internal/metrics"
	"github.com/dogcoloringbooks/coloringbook/internal/preferences"
	"github.com/dogcoloringbooks/coloringbook/internal/shell"
	"github.com/dogcoloringbooks/coloringbook/internal/webhook"
	"github.com/spf13/cobra"
)

// newShell builds the shared application state from the environment.
func newShell() (*shell.Shell, config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, config.Config{}, err
	}
	client := webhook.NewClient(cfg.WebhookBaseURL, cfg.WebhookTimeout)
	s, err := shell.New(client, preferences.NewFileStore(cfg.PreferencesPath), cfg)
	if err != nil {
		return nil, config.Config{}, fmt.Errorf("failed to initialize: %w", err)
	}
	return s, cfg, nil
}

func newServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the coloring book API server",
		Long: `Starts the coloringbook JSON API on the specified port.

Single-dog sessions, the bulk queue, template forms and the shell state are
served under /api. Prometheus metrics are exposed on /metrics.`,
		Example: `  # Start server on the port from PORT (default 8888)
  coloringbook serve

  # Start server on custom port
  coloringbook serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, cfg, err := newShell()
			if err != nil {
				return err
			}
			if port == "" {
				port = cfg.Port
			}

			mux := http.NewServeMux()
			handlers.New(s).Register(mux)
			mux.Handle("GET /metrics", metrics.Handler())
			mux.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
				if _, err := w.Write([]byte("OK")); err != nil {
					slog.Error("Unable to write healthcheck", "err", err)
				}
			})

			addr := ":" + port
			server := &http.Server{
				Addr:    addr,
				Handler: metrics.InstrumentHandler(mux),
			}

			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Coloringbook API available", "addr", addr, "url", "http://localhost"+addr, "webhook", cfg.WebhookBaseURL)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (default $PORT or 8888)")

	return cmd
}
