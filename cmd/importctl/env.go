package main

import (
	"flag"
	"fmt"
	"os"

	apistorage "github.com/cuongbtq/trade-ledger/internal/api/storage"
	"github.com/cuongbtq/trade-ledger/internal/config"
	"github.com/cuongbtq/trade-ledger/internal/worker/importer"
	"github.com/cuongbtq/trade-ledger/internal/worker/storage"
	"github.com/cuongbtq/trade-ledger/shared/filestore"
	"github.com/cuongbtq/trade-ledger/shared/logger"
	"github.com/cuongbtq/trade-ledger/shared/postgresql"
	"github.com/google/subcommands"
	"github.com/google/uuid"
)

var commands = []subcommands.Command{
	&submitCmd{},
	&processCmd{},
	&statusCmd{},
}

// configFlag is shared by every subcommand
type configFlag struct {
	configPath string
}

func (c *configFlag) register(f *flag.FlagSet) {
	def := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if def == "" {
		def = "configs/worker-service/config.yaml"
	}
	f.StringVar(&c.configPath, "config", def, "Path to configuration file")
}

// env is the set of clients one command invocation works with
type env struct {
	cfg       *config.Config
	logger    *logger.Logger
	db        *postgresql.Client
	files     *filestore.Store
	jobs      *apistorage.Storage
	store     *storage.Storage
	workerID  string
	processor *importer.Processor
}

func openEnv(configPath string) (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	isolation, err := postgresql.ParseIsolationLevel(cfg.Import.IsolationLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := logger.New(cfg.Logging.Options())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	files, err := filestore.New(cfg.Storage.UploadDir)
	if err != nil {
		appLogger.Close()
		return nil, fmt.Errorf("failed to initialize file store: %w", err)
	}

	db, err := postgresql.NewClient(cfg.Database.ClientConfig(), appLogger.Component("postgresql"))
	if err != nil {
		appLogger.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	st := storage.NewStorage(db, isolation, cfg.Import.StaleAfter, appLogger.Component("storage"))
	workerID := "importctl-" + uuid.NewString()

	return &env{
		cfg:      cfg,
		logger:   appLogger,
		db:       db,
		files:    files,
		jobs:     apistorage.NewStorage(db),
		store:    st,
		workerID: workerID,
		processor: importer.NewProcessor(&importer.Config{
			Store:     st,
			Files:     files,
			Logger:    appLogger.Component("importer"),
			BatchSize: cfg.Import.BatchSize,
			WorkerID:  workerID,
		}),
	}, nil
}

func (e *env) Close() {
	e.db.Close()
	e.logger.Close()
}
