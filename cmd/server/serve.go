package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fast-track-solutions1/msi-teamhub/internal/auth"
	"github.com/fast-track-solutions1/msi-teamhub/internal/export"
	"github.com/fast-track-solutions1/msi-teamhub/internal/ingestion"
	"github.com/fast-track-solutions1/msi-teamhub/internal/middleware"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		a, err := newApp(ctx, true)
		if err != nil {
			return err
		}
		defer a.close()

		server := &http.Server{
			Addr:         a.cfg.Server.Addr,
			Handler:      newRouter(a),
			ReadTimeout:  a.cfg.Server.ReadTimeout,
			WriteTimeout: a.cfg.Server.WriteTimeout,
			IdleTimeout:  60 * time.Second,
		}

		serverErr := make(chan error, 1)
		go func() {
			a.logger.WithField("addr", server.Addr).Info("starting import API")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
			close(serverErr)
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case err := <-serverErr:
			if err != nil {
				return err
			}
		case <-quit:
		}
		a.logger.Info("shutting down server")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}

		a.logger.Info("server exited")
		return nil
	},
}

func newRouter(a *app) http.Handler {
	router := mux.NewRouter()
	router.Use(middleware.LoggingMiddleware(a.logger))
	router.Use(auth.PrincipalMiddleware(a.cfg.Server.PrincipalHeader))
	if a.cfg.Metrics.Enabled {
		router.Use(a.metrics.Middleware)
		router.Handle("/metrics", a.metrics.Handler()).Methods(http.MethodGet)
	}

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	ingestion.NewHTTPHandler(a.service, a.logger, a.cfg.Server.MaxUploadBytes).Register(router)
	export.NewHTTPHandler(a.reports, a.logger).Register(router)

	corsHandler := cors.New(a.cfg.Server.CORSOptions())
	return corsHandler.Handler(router)
}
