package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/trade-ledger/internal/worker/domain"
	"github.com/cuongbtq/trade-ledger/internal/worker/importer"
	"github.com/cuongbtq/trade-ledger/shared/postgresql"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const importJobColumns = `job_id, file_path, status, completed_at, errors, uploaded_by_user_id,
	worker_id, attempts, max_attempts, started_at, created_at, updated_at`

// Storage handles all database operations for the worker
type Storage struct {
	client     *postgresql.Client
	db         *sqlx.DB
	txOptions  *sql.TxOptions
	staleAfter time.Duration
	logger     *slog.Logger
}

// NewStorage creates a new Storage instance. Imports run at the given isolation level;
// a PROCESSING job whose heartbeat is older than staleAfter may be claimed again.
func NewStorage(client *postgresql.Client, isolation sql.IsolationLevel, staleAfter time.Duration, logger *slog.Logger) *Storage {
	return &Storage{
		client:     client,
		db:         client.GetDB(),
		txOptions:  &sql.TxOptions{Isolation: isolation},
		staleAfter: staleAfter,
		logger:     logger,
	}
}

// GetImportJob retrieves an import job by its ID
func (s *Storage) GetImportJob(ctx context.Context, jobID string) (*domain.ImportJob, error) {
	query := `SELECT ` + importJobColumns + ` FROM import_jobs WHERE job_id = $1`

	var job domain.ImportJob
	if err := s.db.GetContext(ctx, &job, query, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get import job: %w", err)
	}

	return &job, nil
}

// ClaimImportJob moves a NEW job, or a PROCESSING job whose run was released or stopped
// sending heartbeats, to PROCESSING. The status is committed on its own, outside any
// import transaction. Every claim bumps attempts, which fences out writes of older runs.
func (s *Storage) ClaimImportJob(ctx context.Context, jobID, workerID string) (*domain.ImportJob, error) {
	query := `
		UPDATE import_jobs
		SET status = $1,
		    worker_id = $2,
		    attempts = attempts + 1,
		    started_at = NOW(),
		    last_heartbeat_at = NOW(),
		    updated_at = NOW()
		WHERE job_id = $3
		  AND (
		    status = $4
		    OR (status = $1 AND (last_heartbeat_at IS NULL OR last_heartbeat_at < NOW() - make_interval(secs => $5)))
		  )
		RETURNING ` + importJobColumns

	var job domain.ImportJob
	err := s.db.GetContext(ctx, &job, query,
		domain.JobStatusProcessing, workerID, jobID,
		domain.JobStatusNew, s.staleAfter.Seconds(),
	)
	if err == nil {
		s.logger.Info("Import job claimed",
			slog.String("job_id", jobID),
			slog.String("worker_id", workerID),
			slog.Int("attempt", job.Attempts),
		)
		return &job, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to claim import job: %w", err)
	}

	// nothing claimed: the job is unknown, terminal, or held by a live run
	current, err := s.GetImportJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if current.Status == domain.JobStatusProcessing {
		s.logger.Warn("Import job held by another run",
			slog.String("job_id", jobID),
			slog.String("worker_id", workerID),
			slog.Int("attempt", current.Attempts),
		)
		return nil, domain.ErrJobInProgress
	}

	s.logger.Warn("Import job already finished",
		slog.String("job_id", jobID),
		slog.String("worker_id", workerID),
	)
	return nil, domain.ErrJobAlreadyFinished
}

// MarkFailed records the terminal FAILED status with the error text
func (s *Storage) MarkFailed(ctx context.Context, jobID string, attempt int, completedAt time.Time, message string) error {
	query := `
		UPDATE import_jobs
		SET status = $1,
		    completed_at = $2,
		    errors = $3,
		    updated_at = NOW()
		WHERE job_id = $4 AND status = $5 AND attempts = $6
	`

	result, err := s.db.ExecContext(ctx, query,
		domain.JobStatusFailed, completedAt, message,
		jobID, domain.JobStatusProcessing, attempt,
	)
	if err != nil {
		return fmt.Errorf("failed to mark import job as failed: %w", err)
	}

	return claimHeld(result)
}

// ReleaseImportJob clears the heartbeat of attempt so the next claim does not wait for staleness
func (s *Storage) ReleaseImportJob(ctx context.Context, jobID string, attempt int) error {
	query := `
		UPDATE import_jobs
		SET last_heartbeat_at = NULL,
		    updated_at = NOW()
		WHERE job_id = $1 AND status = $2 AND attempts = $3
	`

	result, err := s.db.ExecContext(ctx, query, jobID, domain.JobStatusProcessing, attempt)
	if err != nil {
		return fmt.Errorf("failed to release import job: %w", err)
	}

	return claimHeld(result)
}

// claimHeld turns a guarded update that matched nothing into ErrJobClaimLost
func claimHeld(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return domain.ErrJobClaimLost
	}

	return nil
}

// UpdateJobHeartbeat updates the last_heartbeat_at timestamp of a job this worker is running.
// Released jobs and jobs claimed by other workers are left alone.
func (s *Storage) UpdateJobHeartbeat(ctx context.Context, jobID, workerID string) error {
	query := `
		UPDATE import_jobs
		SET last_heartbeat_at = NOW(),
		    updated_at = NOW()
		WHERE job_id = $1 AND status = $2 AND worker_id = $3
		  AND last_heartbeat_at IS NOT NULL
	`

	result, err := s.db.ExecContext(ctx, query, jobID, domain.JobStatusProcessing, workerID)
	if err != nil {
		return fmt.Errorf("failed to update job heartbeat: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		s.logger.Warn("Job heartbeat update - no rows affected (job may not be processing)",
			slog.String("job_id", jobID),
		)
	}

	return nil
}

// WithinTx runs fn in one database transaction at the configured isolation level
func (s *Storage) WithinTx(ctx context.Context, fn func(tx importer.Tx) error) error {
	return s.client.RunInTx(ctx, s.txOptions, func(tx *postgresql.Tx) error {
		return fn(&txStore{Tx: tx})
	})
}

// txStore implements importer.Tx on top of an open transaction
type txStore struct {
	*postgresql.Tx
}

func (t *txStore) FindUsers(ctx context.Context, ids []int64) ([]domain.User, error) {
	var users []domain.User
	err := t.SelectContext(ctx, &users,
		`SELECT id, username FROM users WHERE id = ANY($1)`,
		pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find users: %w", err)
	}
	return users, nil
}

func (t *txStore) FindStocks(ctx context.Context, symbols []string) ([]domain.Stock, error) {
	query, args, err := sqlx.In(`SELECT id, name, symbol, price FROM stocks WHERE symbol IN (?)`, symbols)
	if err != nil {
		return nil, fmt.Errorf("failed to build stock query: %w", err)
	}

	var stocks []domain.Stock
	if err := t.SelectContext(ctx, &stocks, t.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to find stocks: %w", err)
	}
	return stocks, nil
}

func (t *txStore) SumPositions(ctx context.Context, userIDs []int64) ([]domain.Position, error) {
	query := `
		SELECT o.user_id, s.symbol, COALESCE(SUM(o.quantity), 0) AS quantity
		FROM orders o
		JOIN stocks s ON s.id = o.stock_id
		WHERE o.user_id = ANY($1)
		GROUP BY o.user_id, s.symbol
	`

	var positions []domain.Position
	if err := t.SelectContext(ctx, &positions, query, pq.Array(userIDs)); err != nil {
		return nil, fmt.Errorf("failed to sum positions: %w", err)
	}
	return positions, nil
}

func (t *txStore) InsertOrders(ctx context.Context, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}

	query := `
		INSERT INTO orders (user_id, stock_id, quantity, order_type, created_at)
		VALUES (:user_id, :stock_id, :quantity, :order_type, :created_at)
	`

	if _, err := t.NamedExecContext(ctx, query, orders); err != nil {
		return fmt.Errorf("failed to insert orders: %w", err)
	}
	return nil
}

// MarkProcessed runs inside the import transaction. The row lock it takes makes a
// concurrent claim wait for the outcome of this transaction.
func (t *txStore) MarkProcessed(ctx context.Context, jobID string, attempt int, completedAt time.Time) error {
	query := `
		UPDATE import_jobs
		SET status = $1,
		    completed_at = $2,
		    errors = NULL,
		    updated_at = NOW()
		WHERE job_id = $3 AND status = $4 AND attempts = $5
	`

	result, err := t.ExecContext(ctx, query,
		domain.JobStatusProcessed, completedAt,
		jobID, domain.JobStatusProcessing, attempt,
	)
	if err != nil {
		return fmt.Errorf("failed to mark import job as processed: %w", err)
	}
	return claimHeld(result)
}
