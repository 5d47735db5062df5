package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/benvon/schedule-builder/internal/config"
	"github.com/benvon/schedule-builder/internal/database"
	"github.com/benvon/schedule-builder/internal/logger"
	"github.com/benvon/schedule-builder/internal/queue"
	"github.com/benvon/schedule-builder/internal/telemetry"
	"github.com/benvon/schedule-builder/internal/workers"
	"go.uber.org/zap"
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.RequireQueue(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	debugMode := cfg.WorkerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync(zapLogger) }()

	zapLogger.Info("starting_worker",
		zap.Bool("debug_mode", debugMode),
		zap.Int("revision_keep", cfg.RevisionKeep),
		zap.Int("prefetch", cfg.RabbitMQPrefetch),
	)

	if cfg.OTELEnabled && cfg.OTELEndpoint != "" {
		tp, err := telemetry.InitTracer(context.Background(), telemetry.WorkerServiceName, cfg.OTELEndpoint)
		if err != nil {
			zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := telemetry.Shutdown(shutdownCtx, tp); err != nil {
					zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
				}
			}()
		}
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_database")

	jobQueue, err := queue.NewRabbitMQQueue(cfg.RabbitMQURL, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_rabbitmq", zap.Error(err))
	}
	defer func() {
		if err := jobQueue.Close(); err != nil {
			zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_rabbitmq")

	revisions := database.NewRevisionRepository(db)
	archiver := workers.NewRevisionArchiver(
		database.NewScheduleRepository(db),
		revisions,
		jobQueue,
		cfg.RevisionKeep,
		zapLogger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := archiver.Run(ctx, cfg.RabbitMQPrefetch); err != nil {
			zapLogger.Error("revision_archiver_stopped", zap.Error(err))
			cancel()
		}
	}()

	sweeps := []queue.Sweep{queue.DLQSweep(jobQueue, cfg.DLQRetention)}
	if cfg.RevisionMaxAge > 0 {
		sweeps = append(sweeps, queue.Sweep{
			Name: "revisions",
			Run: func(ctx context.Context) (int, error) {
				return revisions.DeleteOlderThan(ctx, cfg.RevisionMaxAge)
			},
		})
	}
	sweeper := queue.NewSweeper(cfg.SweepInterval, zapLogger, sweeps...)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := sweeper.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			zapLogger.Error("sweeper_stopped", zap.Error(err))
		}
	}()
	zapLogger.Info("worker_started",
		zap.Duration("sweep_interval", cfg.SweepInterval),
		zap.Duration("dlq_retention", cfg.DLQRetention),
		zap.Duration("revision_max_age", cfg.RevisionMaxAge),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigChan:
		zapLogger.Info("shutdown_signal_received")
	case <-ctx.Done():
	}

	cancel()
	wg.Wait()
	zapLogger.Info("worker_stopped")
}
