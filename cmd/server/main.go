package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/optisaas25/fiscal-engine/internal/config"
	"github.com/optisaas25/fiscal-engine/internal/db"
	"github.com/optisaas25/fiscal-engine/internal/logger"
	"github.com/optisaas25/fiscal-engine/internal/server"
	"github.com/optisaas25/fiscal-engine/internal/services"
	"github.com/optisaas25/fiscal-engine/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "fiscal-engine",
	Short: "Fiscal document lifecycle and reconciliation engine",
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		_ = godotenv.Load()
		cfg := config.Load()
		return logger.Setup(cfg.LogLevel, cfg.LogFormat)
	},
	RunE: func(cmd *cobra.Command, args []string) error { return serve() },
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  func(_ *cobra.Command, _ []string) error { return serve() },
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations and exit",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg := config.Load()
		_, err := db.ConnectAndMigrate(cfg.DatabaseDSN)
		if err == nil {
			log.Info().Msg("migrations completed")
		}
		return err
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep-drafts",
	Short: "Cancel stale payment-free drafts and exit",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg := config.Load()
		conn, err := db.ConnectAndMigrate(cfg.DatabaseDSN)
		if err != nil {
			return err
		}
		engine := buildEngine(conn)
		swept, err := engine.SweepStaleDrafts()
		if err != nil {
			return err
		}
		log.Info().Int("swept", swept).Msg("draft sweep finished")
		return nil
	},
}

func buildEngine(conn *gorm.DB) *services.LifecycleEngine {
	st := store.New(conn)
	alloc := services.NewSequenceAllocator(logger.WithComponent("sequence"))
	ledger := services.NewBalanceLedger()
	return services.NewLifecycleEngine(st, alloc, ledger, logger.WithComponent("lifecycle"))
}

func serve() error {
	cfg := config.Load()
	conn, err := db.ConnectAndMigrate(cfg.DatabaseDSN)
	if err != nil {
		return err
	}

	st := store.New(conn)
	alloc := services.NewSequenceAllocator(logger.WithComponent("sequence"))
	ledger := services.NewBalanceLedger()
	engine := services.NewLifecycleEngine(st, alloc, ledger, logger.WithComponent("lifecycle"))
	reconciler := services.NewPaymentReconciler(st, ledger, logger.WithComponent("payments"))

	// Stale drafts are swept at startup; a scheduler can call the maintenance
	// endpoint or the sweep-drafts command for periodic runs.
	if cfg.SweepOnStart {
		if swept, err := engine.SweepStaleDrafts(); err != nil {
			log.Warn().Err(err).Msg("startup draft sweep failed")
		} else if swept > 0 {
			log.Info().Int("swept", swept).Msg("startup draft sweep")
		}
	}

	handler := server.New(conn, st, engine, reconciler)
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: handler}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("env", cfg.Env).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutdown signal received")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
	log.Info().Msg("server stopped")
	return nil
}

func main() {
	rootCmd.AddCommand(serveCmd, migrateCmd, sweepCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
