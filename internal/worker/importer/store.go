package importer

import (
	"context"
	"time"

	"github.com/cuongbtq/trade-ledger/internal/worker/domain"
)

// Tx is the transactional view of the ledger used while one file is imported.
// Nothing written through it is visible to other readers until the scope commits.
type Tx interface {
	FindUsers(ctx context.Context, ids []int64) ([]domain.User, error)
	FindStocks(ctx context.Context, symbols []string) ([]domain.Stock, error)
	SumPositions(ctx context.Context, userIDs []int64) ([]domain.Position, error)
	InsertOrders(ctx context.Context, orders []domain.Order) error
	// MarkProcessed fails with domain.ErrJobClaimLost unless the job is still PROCESSING under attempt
	MarkProcessed(ctx context.Context, jobID string, attempt int, completedAt time.Time) error

	// OnCommit registers a hook run inside the transaction right before it commits
	OnCommit(hook func(ctx context.Context) error)
	// AfterCommit registers a callback run only after a successful commit
	AfterCommit(fn func())
}

// Store is the persistence the processor depends on
type Store interface {
	// ClaimImportJob moves a NEW job, or an abandoned PROCESSING one, to PROCESSING and
	// persists it immediately. A PROCESSING job still held by a live run is domain.ErrJobInProgress.
	ClaimImportJob(ctx context.Context, jobID, workerID string) (*domain.ImportJob, error)
	// MarkFailed fails with domain.ErrJobClaimLost unless the job is still PROCESSING under attempt
	MarkFailed(ctx context.Context, jobID string, attempt int, completedAt time.Time, message string) error
	// ReleaseImportJob gives up the claim of attempt so the job can be claimed again right away
	ReleaseImportJob(ctx context.Context, jobID string, attempt int) error
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}
