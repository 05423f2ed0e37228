package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuongbtq/trade-ledger/internal/config"
	"github.com/cuongbtq/trade-ledger/internal/worker"
	"github.com/cuongbtq/trade-ledger/internal/worker/importer"
	"github.com/cuongbtq/trade-ledger/internal/worker/storage"
	"github.com/cuongbtq/trade-ledger/shared/filestore"
	"github.com/cuongbtq/trade-ledger/shared/logger"
	"github.com/cuongbtq/trade-ledger/shared/postgresql"
	"github.com/cuongbtq/trade-ledger/shared/rabbitmq"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := logger.New(cfg.Logging.Options())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	isolation, err := postgresql.ParseIsolationLevel(cfg.Import.IsolationLevel)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	files, err := filestore.New(cfg.Storage.UploadDir)
	if err != nil {
		return fmt.Errorf("failed to initialize file store: %w", err)
	}

	dbClient, err := postgresql.NewClient(cfg.Database.ClientConfig(), appLogger.Component("postgresql"))
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	rabbitClient, err := rabbitmq.NewClient(cfg.RabbitMQ.ClientConfig(), appLogger.Component("rabbitmq"))
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}
	defer rabbitClient.Close()

	workerID := worker.NewWorkerID()
	store := storage.NewStorage(dbClient, isolation, cfg.Import.StaleAfter, appLogger.Component("storage"))

	processor := importer.NewProcessor(&importer.Config{
		Store:     store,
		Files:     files,
		Logger:    appLogger.Component("importer"),
		BatchSize: cfg.Import.BatchSize,
		WorkerID:  workerID,
	})

	workerInstance := worker.NewWorker(&worker.Config{
		Logger:            appLogger.Component("worker"),
		Importer:          processor,
		Jobs:              store,
		Broker:            rabbitClient,
		WorkerID:          workerID,
		Concurrency:       cfg.Worker.Concurrency,
		PrefetchCount:     cfg.RabbitMQ.Consumer.PrefetchCount,
		JobTimeout:        cfg.Worker.JobTimeout,
		HeartbeatInterval: cfg.Worker.HeartbeatInterval,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := workerInstance.Start(ctx); err != nil {
		appLogger.Error("Worker error",
			slog.Any("error", err),
		)
		return err
	}

	appLogger.Info("Shutting down, waiting for running imports",
		slog.Duration("timeout", cfg.Worker.ShutdownTimeout),
	)

	done := make(chan struct{})
	go func() {
		workerInstance.Stop()
		close(done)
	}()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer cancel()

	select {
	case <-done:
		appLogger.Info("Worker stopped gracefully")
	case <-shutdownCtx.Done():
		// unacknowledged messages are redelivered and the jobs re-claimed
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit")
	}

	appLogger.Info("Worker service shutdown complete")
	return nil
}
