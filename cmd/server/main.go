package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pharmacy/internal/config"
	"pharmacy/internal/infra"
	"pharmacy/internal/router"
	"pharmacy/internal/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Structured logger: dev pretty, prod JSON
	if cfg.Env != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	var (
		pub     infra.Publisher = infra.NoopPublisher{}
		breaker *infra.CircuitBreaker
	)
	if cfg.KafkaBrokers != "" {
		breaker = infra.NewCircuitBreaker(infra.DefaultCBConfig("kafka"))
		pub = infra.NewGuardedPublisher(infra.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic), breaker)
		log.Info().Str("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("event publishing enabled")
	}
	defer pub.Close()

	app, err := router.Wire(cfg, db, rdb, pub, breaker)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to wire services")
	}

	// Background workers are wired here (composition root) so that the pool
	// has full access to the infrastructure dependencies.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	worker.StartWorkerPool(ctx, rdb, worker.Handlers{
		worker.QueueReceipts:    worker.NewReceiptWorker(app.Sales, cfg.PharmacyName, cfg.ReceiptStoragePath),
		worker.QueueStockAlerts: worker.NewStockAlertWorker(app.Products, app.Batches, pub),
	}, cfg.WorkerPoolSize)

	worker.StartMaintenance(ctx, worker.MaintenanceConfig{
		Reservations:          app.Reservations,
		Inventory:             app.Inventory,
		Publisher:             pub,
		CleanupInterval:       time.Duration(cfg.ReservationCleanupSeconds) * time.Second,
		ExpiryWarningDays:     cfg.ExpiryWarningDays,
		MovementRetentionDays: cfg.MovementRetentionDays,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router.New(cfg, app),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("pharmacy backend listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server exited")
}
