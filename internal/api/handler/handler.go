package handler

import (
	"context"
	"io"
	"log/slog"

	"github.com/cuongbtq/trade-ledger/internal/api/model"
	"github.com/cuongbtq/trade-ledger/internal/api/storage"
)

// ImportJobStore persists import jobs
type ImportJobStore interface {
	CreateImportJob(ctx context.Context, job *model.ImportJob) error
	GetImportJob(ctx context.Context, jobID string) (*model.ImportJob, error)
	ListImportJobs(ctx context.Context, filter storage.JobFilter) ([]model.ImportJob, error)
}

// LedgerStore reads stocks and aggregated orders
type LedgerStore interface {
	ListInvestments(ctx context.Context, filter storage.InvestmentFilter) ([]model.Investment, error)
	ListStocks(ctx context.Context) ([]model.Stock, error)
}

// FileStore keeps uploaded files
type FileStore interface {
	Save(name string, r io.Reader) (int64, error)
	Remove(name string) error
}

// Publisher announces new jobs to the workers
type Publisher interface {
	PublishWithRetry(ctx context.Context, body []byte, contentType string) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger        *slog.Logger
	Jobs          ImportJobStore
	Ledger        LedgerStore
	Files         FileStore
	Publisher     Publisher
	MaxUploadSize int64
	MaxAttempts   int
	HealthCheck   func(ctx context.Context) error
}

// ImportHandler handles import job HTTP requests
type ImportHandler struct {
	logger        *slog.Logger
	jobs          ImportJobStore
	files         FileStore
	publisher     Publisher
	maxUploadSize int64
	maxAttempts   int
}

// NewImportHandler creates a new ImportHandler instance
func NewImportHandler(deps *Dependencies) *ImportHandler {
	return &ImportHandler{
		logger:        deps.Logger,
		jobs:          deps.Jobs,
		files:         deps.Files,
		publisher:     deps.Publisher,
		maxUploadSize: deps.MaxUploadSize,
		maxAttempts:   deps.MaxAttempts,
	}
}

// LedgerHandler serves read-only stock and investment views
type LedgerHandler struct {
	logger *slog.Logger
	ledger LedgerStore
}

// NewLedgerHandler creates a new LedgerHandler instance
func NewLedgerHandler(deps *Dependencies) *LedgerHandler {
	return &LedgerHandler{
		logger: deps.Logger,
		ledger: deps.Ledger,
	}
}
