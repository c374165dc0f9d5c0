package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/api"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/audit"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/db"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/directory"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/finalize"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/lock"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/metering"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/services"
	"github.com/vincentgggg12/docufen-admin-sub001/pkg/metrics"
	"github.com/vincentgggg12/docufen-admin-sub001/pkg/tracing"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the finalization workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, zapLogger, err := bootstrap()
		if err != nil {
			return err
		}
		defer zapLogger.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing, cfg.Server.Environment)
		if err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := shutdownTracing(sctx); err != nil {
				zapLogger.Warn("Tracer shutdown failed", zap.Error(err))
			}
		}()

		database, err := db.Initialize(&cfg.Database, zapLogger)
		if err != nil {
			return err
		}
		defer func() {
			if sqlDB, err := database.DB(); err == nil {
				sqlDB.Close()
			}
		}()

		locker, err := lock.New(cfg.Lock, zapLogger)
		if err != nil {
			return err
		}

		metricsCollector := metrics.NewMetricsCollector()
		store := db.NewDocumentStore()
		ledger := audit.NewLedger(database, cfg.Ledger, zapLogger)
		meter := metering.NewGormMeter(database)
		dir := directory.NewGormDirectory(database)
		renderer := finalize.NewHTTPRenderer(cfg.Finalization.RendererURL, nil)
		trigger := finalize.NewTrigger(database, store, ledger, locker, renderer, meter, cfg.Finalization, zapLogger)

		documentService := services.NewDocumentService(database, store, ledger, locker, dir, trigger, meter, zapLogger, metricsCollector)

		router := api.NewRouter(cfg, zapLogger, metricsCollector, documentService, dir, database)
		router.SetupRoutes()

		server := &http.Server{
			Addr:         ":" + cfg.Server.Port,
			Handler:      otelhttp.NewHandler(router.GetEngine(), "docufen-engine"),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return trigger.Start(gctx)
		})
		g.Go(func() error {
			zapLogger.Info("Starting HTTP server", zap.String("address", server.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			zapLogger.Info("Shutting down server...")
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return server.Shutdown(sctx)
		})

		if err := g.Wait(); err != nil {
			zapLogger.Error("Server stopped with error", zap.Error(err))
			return err
		}
		zapLogger.Info("Server gracefully stopped")
		return nil
	},
}
