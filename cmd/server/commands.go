package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"github.com/spf13/cobra"

	"github.com/rpattn/spstaglib/internal/auth"
	"github.com/rpattn/spstaglib/internal/db"
	"github.com/rpattn/spstaglib/internal/domain"
	"github.com/rpattn/spstaglib/internal/export"
	"github.com/rpattn/spstaglib/internal/forms"
	"github.com/rpattn/spstaglib/internal/logger"
	"github.com/rpattn/spstaglib/internal/middleware"
	"github.com/rpattn/spstaglib/internal/seed"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return db.RunMigrations(cmd.Context(), cfg.Database, logger.Named("migrate"))
	},
}

var seedPrincipal string

var seedCmd = &cobra.Command{
	Use:   "seed <file>",
	Short: "Load a YAML fixture through the form path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		conn, err := db.Open(ctx, cfg.Database, logger.Named("db"))
		if err != nil {
			return err
		}
		defer conn.Close()

		service := forms.NewService(conn, forms.WithLogger(logger.Named("forms")))
		loader := seed.NewLoader(service, conn, logger.Named("seed"))

		summary, err := loader.LoadFile(auth.ContextWithPrincipal(ctx, seedPrincipal), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created: %v\nupdated: %v\n", summary.Created, summary.Updated)
		return nil
	},
}

var skipMigrations bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the form and export HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedPrincipal, "as", "seed", "Principal recorded in the audit envelope")
	serveCmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "Do not apply migrations on start-up")
}

func serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	log := logger.Named("server")

	if !skipMigrations {
		if err := db.RunMigrations(ctx, cfg.Database, logger.Named("migrate")); err != nil {
			return err
		}
	}

	conn, err := db.Open(ctx, cfg.Database, logger.Named("db"))
	if err != nil {
		return err
	}
	defer conn.Close()

	registry, err := domain.NewRegistry(domain.DefaultKinds()...)
	if err != nil {
		return err
	}
	metrics := middleware.NewMetrics()

	formService := forms.NewService(conn,
		forms.WithLogger(logger.Named("forms")),
		forms.WithObserver(metrics),
	)
	formHandler, err := forms.NewHTTPHandler(formService, registry)
	if err != nil {
		return err
	}
	exportService := export.NewService(conn, registry, export.WithLogger(logger.Named("export")))
	seedHandler := seed.NewHTTPHandler(seed.NewLoader(formService, conn, logger.Named("seed")))

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.HTTP.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
	})
	wrap := func(h http.Handler) http.Handler {
		return corsHandler.Handler(middleware.LoggingMiddleware(logger.Named("http"))(metrics.Middleware(h)))
	}

	mux := http.NewServeMux()
	mux.Handle("/forms", wrap(formHandler))
	mux.Handle("/forms/", wrap(formHandler))
	mux.Handle("/export", wrap(middleware.DataLoaderMiddleware(conn)(export.NewHTTPHandler(exportService))))
	mux.Handle("/export/", wrap(middleware.DataLoaderMiddleware(conn)(export.NewHTTPHandler(exportService))))
	mux.Handle("/autocomplete/", wrap(export.NewHTTPHandler(exportService)))
	mux.Handle("/seed", wrap(seedHandler))
	mux.Handle("/metrics", metrics.Handler())

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infow("Starting HTTP server", "addr", cfg.HTTP.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
	}
	log.Infow("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Infow("Server exited")
	return nil
}
