// Package importer turns uploaded order files into persisted orders, one file per transaction.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cuongbtq/trade-ledger/internal/worker/cache"
	"github.com/cuongbtq/trade-ledger/internal/worker/domain"
	"github.com/cuongbtq/trade-ledger/internal/worker/rowsource"
)

const (
	// DefaultBatchSize bounds rows held in memory and keys per cache lookup
	DefaultBatchSize = 500

	failureWriteTimeout = 10 * time.Second
)

// Config holds processor dependencies
type Config struct {
	Store     Store
	Files     rowsource.Opener
	Logger    *slog.Logger
	BatchSize int
	WorkerID  string
	Now       func() time.Time
}

// Processor runs import jobs. It is safe for concurrent use; every Submit call
// owns its own parser and caches.
type Processor struct {
	store     Store
	files     rowsource.Opener
	logger    *slog.Logger
	batchSize int
	workerID  string
	now       func() time.Time
}

// NewProcessor creates a new processor instance
func NewProcessor(cfg *Config) *Processor {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Processor{
		store:     cfg.Store,
		files:     cfg.Files,
		logger:    logger,
		batchSize: batchSize,
		workerID:  cfg.WorkerID,
		now:       now,
	}
}

// Submit processes the job to completion and returns it in PROCESSED or FAILED state.
// Problems with the file content are recorded on the job, not returned. The returned
// error is non-nil only when the job could not be claimed, another run took it over,
// or the store failed; in the last case the job is left in PROCESSING, released for
// the next claim.
func (p *Processor) Submit(ctx context.Context, jobID string) (*domain.ImportJob, error) {
	job, err := p.store.ClaimImportJob(ctx, jobID, p.workerID)
	if err != nil {
		return nil, err
	}

	logger := p.logger.With(slog.String("job_id", job.JobID))
	logger.Info("Import job started",
		slog.String("file", job.FilePath),
		slog.Int("attempt", job.Attempts),
	)

	start := time.Now()
	imported, err := p.importFile(ctx, logger, job)
	if err == nil {
		logger.Info("Import job processed",
			slog.Int("orders", imported),
			slog.Duration("duration", time.Since(start)),
		)
		return job, nil
	}

	if errors.Is(err, domain.ErrJobClaimLost) {
		logger.Warn("Import job taken over by another run, orders rolled back",
			slog.Int("attempt", job.Attempts),
		)
		return nil, fmt.Errorf("failed to import job %s: %w", job.JobID, err)
	}

	if ctx.Err() != nil && !domain.IsJobFailure(err) {
		err = fmt.Errorf("%w: %v", domain.ErrImportCanceled, ctx.Err())
	}

	// the job context may be done already; the outcome must still be recorded
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureWriteTimeout)
	defer cancel()

	if !domain.IsJobFailure(err) {
		logger.Error("Import job aborted by store failure",
			slog.String("error", err.Error()),
		)
		if relErr := p.store.ReleaseImportJob(writeCtx, job.JobID, job.Attempts); relErr != nil {
			logger.Error("Failed to release import job",
				slog.String("error", relErr.Error()),
			)
		}
		return nil, fmt.Errorf("failed to import job %s: %w", job.JobID, err)
	}

	completedAt := p.now()
	message := err.Error()
	if markErr := p.store.MarkFailed(writeCtx, job.JobID, job.Attempts, completedAt, message); markErr != nil {
		logger.Error("Failed to mark import job as failed",
			slog.String("error", markErr.Error()),
		)
		return nil, fmt.Errorf("failed to mark job %s as failed: %w", job.JobID, markErr)
	}

	logger.Warn("Import job failed",
		slog.String("error", message),
		slog.Duration("duration", time.Since(start)),
	)

	job.Status = domain.JobStatusFailed
	job.CompletedAt = &completedAt
	job.Errors = &message
	return job, nil
}

// importFile streams the file in batches inside one transaction. The PROCESSED
// status is written by a commit hook, so it lands together with the orders.
func (p *Processor) importFile(ctx context.Context, logger *slog.Logger, job *domain.ImportJob) (int, error) {
	parser := rowsource.NewParser(p.files, job.FilePath)
	defer parser.Close()

	var imported int
	var completedAt time.Time

	err := p.store.WithinTx(ctx, func(tx Tx) error {
		imported = 0

		users := cache.NewUserCache(tx.FindUsers)
		stocks := cache.NewStockCache(tx.FindStocks)
		portfolio := cache.NewPortfolioCache(tx.SumPositions)

		for batch := 1; ; batch++ {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("%w: %v", domain.ErrImportCanceled, err)
			}

			rows, err := parser.ReadBatch(p.batchSize)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return err
			}

			if err := warmCaches(ctx, rows, users, stocks, portfolio); err != nil {
				return err
			}

			orders := make([]domain.Order, 0, len(rows))
			for _, row := range rows {
				order, err := buildOrder(row, users, stocks, portfolio)
				if err != nil {
					return &domain.RowError{Line: row.Line, Err: err}
				}
				order.CreatedAt = p.now()
				orders = append(orders, order)
			}

			if err := tx.InsertOrders(ctx, orders); err != nil {
				return fmt.Errorf("failed to insert orders: %w", err)
			}
			imported += len(orders)

			logger.Debug("Import batch staged",
				slog.Int("batch", batch),
				slog.Int("rows", len(rows)),
				slog.Int("total", imported),
			)
		}

		tx.OnCommit(func(ctx context.Context) error {
			completedAt = p.now()
			return tx.MarkProcessed(ctx, job.JobID, job.Attempts, completedAt)
		})
		tx.AfterCommit(func() {
			job.Status = domain.JobStatusProcessed
			job.CompletedAt = &completedAt
			job.Errors = nil
		})

		return nil
	})

	return imported, err
}

func warmCaches(
	ctx context.Context,
	rows []domain.Row,
	users *cache.Lookup[domain.User],
	stocks *cache.Lookup[domain.Stock],
	portfolio *cache.PortfolioCache,
) error {
	userKeys := make([]string, len(rows))
	symbols := make([]string, len(rows))
	for i, row := range rows {
		userKeys[i] = row.User
		symbols[i] = row.Stock
	}

	if err := users.Warm(ctx, userKeys); err != nil {
		return fmt.Errorf("failed to load users: %w", err)
	}

	if err := stocks.Warm(ctx, symbols); err != nil {
		return fmt.Errorf("failed to load stocks: %w", err)
	}

	userIDs := make([]int64, 0, len(rows))
	for _, key := range userKeys {
		if user, ok := users.Find(key); ok {
			userIDs = append(userIDs, user.ID)
		}
	}

	if err := portfolio.Warm(ctx, userIDs); err != nil {
		return fmt.Errorf("failed to load positions: %w", err)
	}

	return nil
}

// buildOrder validates one row against the caches and applies it to the running balance
func buildOrder(
	row domain.Row,
	users *cache.Lookup[domain.User],
	stocks *cache.Lookup[domain.Stock],
	portfolio *cache.PortfolioCache,
) (domain.Order, error) {
	orderType, err := domain.ParseOrderType(row.OrderType)
	if err != nil {
		return domain.Order{}, err
	}

	user, ok := users.Find(row.User)
	if !ok {
		return domain.Order{}, &domain.UserNotFoundError{UserID: row.User}
	}

	stock, ok := stocks.Find(row.Stock)
	if !ok {
		return domain.Order{}, &domain.StockNotFoundError{Symbol: row.Stock}
	}

	quantity := orderType.Signed(row.Quantity)

	if portfolio.Overflows(user.ID, stock.Symbol, quantity) {
		return domain.Order{}, &domain.BalanceOverflowError{
			Symbol:    stock.Symbol,
			Available: portfolio.Balance(user.ID, stock.Symbol),
		}
	}

	if available, accepted := portfolio.Find(user.ID, stock.Symbol, quantity); !accepted {
		return domain.Order{}, &domain.InsufficientBalanceError{Symbol: stock.Symbol, Available: available}
	}

	return domain.Order{
		UserID:    user.ID,
		StockID:   stock.ID,
		Quantity:  quantity,
		OrderType: orderType,
	}, nil
}
