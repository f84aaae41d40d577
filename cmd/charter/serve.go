package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"github.com/xraph/forge"

	"github.com/xraph/charter"
	"github.com/xraph/charter/api"
	"github.com/xraph/charter/auth"
	"github.com/xraph/charter/metrics"
	"github.com/xraph/charter/ui"
)

func addServerFlags(cmd *cobra.Command) {
	cmd.Flags().String("addr", ":8080", "listen address")
	cmd.Flags().String("store-driver", "memory", "store backend: memory, postgres, sqlite, mongo")
	cmd.Flags().String("store-dsn", "", "store connection string or file path")
	cmd.Flags().String("cache-driver", "memory", "current-policy cache: none, memory, redis")
	cmd.Flags().String("log-format", "json", "log format: json or text")
	cmd.Flags().String("log-level", "info", "log level: debug, info, warn, error")
}

func newServeCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, public pages and /metrics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, *configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, newLogger(cfg.Log, os.Stderr))
		},
	}
	addServerFlags(cmd)
	return cmd
}

func serve(ctx context.Context, cfg Config, logger *slog.Logger) error {
	s, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	c, closeCache, err := openCache(ctx, cfg.Cache, logger)
	if err != nil {
		return err
	}
	defer closeCache() //nolint:errcheck // best effort on shutdown

	prom, err := metrics.NewPlugin("charter", nil)
	if err != nil {
		return err
	}

	eng, err := charter.NewEngine(
		charter.WithStore(s),
		charter.WithCache(c),
		charter.WithLogger(logger),
		charter.WithPlugin(prom),
	)
	if err != nil {
		return err
	}
	if err := eng.Start(ctx); err != nil {
		return err
	}

	handler, err := buildHandler(eng, cfg, logger, prom)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("charter: listening", "addr", cfg.HTTP.Addr, "store", cfg.Store.Driver, "cache", cfg.Cache.Driver)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("charter: shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("charter: http shutdown", "error", err)
	}
	return eng.Stop(shutdownCtx)
}

// buildHandler mounts the API and pages on a Forge router next to /metrics.
func buildHandler(eng *charter.Engine, cfg Config, logger *slog.Logger, prom *metrics.Plugin) (http.Handler, error) {
	var authn *auth.Authenticator
	if cfg.Auth.Secret != "" {
		authn = auth.NewAuthenticator([]byte(cfg.Auth.Secret))
	} else {
		logger.Warn("charter: auth.secret is empty, management routes will reject all requests")
	}

	router := forge.NewRouter()
	a := api.New(eng, authn, router, api.WithBasePath(cfg.HTTP.BasePath), api.WithLogger(logger))
	if err := a.RegisterRoutes(router); err != nil {
		return nil, fmt.Errorf("register api routes: %w", err)
	}
	pages, err := ui.New(eng, ui.WithBasePath(cfg.HTTP.BasePath), ui.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	if err := pages.RegisterRoutes(router); err != nil {
		return nil, fmt.Errorf("register pages: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", prom.Handler())
	mux.Handle("/", router.Handler())

	// rs/cors treats an empty origin list as "*", so no list means no CORS.
	if len(cfg.HTTP.CORSOrigins) == 0 {
		return mux, nil
	}
	c := cors.New(cors.Options{
		AllowedOrigins: cfg.HTTP.CORSOrigins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})
	return c.Handler(mux), nil
}
