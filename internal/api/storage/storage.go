package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cuongbtq/trade-ledger/internal/api/domain"
	"github.com/cuongbtq/trade-ledger/internal/api/model"
	"github.com/cuongbtq/trade-ledger/shared/postgresql"
	"github.com/jmoiron/sqlx"
)

const importJobColumns = `job_id, file_path, status, completed_at, errors, uploaded_by_user_id,
	attempts, max_attempts, created_at, updated_at`

type Storage struct {
	db *sqlx.DB
}

func NewStorage(pg *postgresql.Client) *Storage {
	return &Storage{
		db: pg.GetDB(),
	}
}

// CreateImportJob inserts a NEW job referencing an already stored file
func (s *Storage) CreateImportJob(ctx context.Context, job *model.ImportJob) error {
	query := `
		INSERT INTO import_jobs (
			job_id, file_path, status, uploaded_by_user_id,
			max_attempts, created_at, updated_at
		) VALUES (
			:job_id, :file_path, :status, :uploaded_by_user_id,
			:max_attempts, :created_at, :updated_at
		)
	`

	if _, err := s.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("failed to create import job: %w", err)
	}

	return nil
}

func (s *Storage) GetImportJob(ctx context.Context, jobID string) (*model.ImportJob, error) {
	query := `SELECT ` + importJobColumns + ` FROM import_jobs WHERE job_id = $1`

	var job model.ImportJob
	if err := s.db.GetContext(ctx, &job, query, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get import job: %w", err)
	}

	return &job, nil
}

type JobFilter struct {
	UploadedByUserID *int64
	Status           string
	PageSize         int
	Cursor           *JobCursor
}

type JobCursor struct {
	CreatedAt time.Time
	JobID     string
}

// ListImportJobs returns up to PageSize+1 jobs, newest first, so callers can tell whether another page exists
func (s *Storage) ListImportJobs(ctx context.Context, filter JobFilter) ([]model.ImportJob, error) {
	query := `SELECT ` + importJobColumns + ` FROM import_jobs WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.UploadedByUserID != nil {
		query += fmt.Sprintf(" AND uploaded_by_user_id = $%d", argIdx)
		args = append(args, *filter.UploadedByUserID)
		argIdx++
	}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, job_id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.JobID)
		argIdx += 2
	}

	query += " ORDER BY created_at DESC, job_id DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var jobs []model.ImportJob
	if err := s.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list import jobs: %w", err)
	}

	return jobs, nil
}

type InvestmentFilter struct {
	UserID      *int64
	StockSymbol string
}

// ListInvestments sums orders per user and stock
func (s *Storage) ListInvestments(ctx context.Context, filter InvestmentFilter) ([]model.Investment, error) {
	query := `
		SELECT o.user_id, s.symbol AS stock_symbol, SUM(o.quantity) AS total_quantity, s.price
		FROM orders o
		JOIN stocks s ON s.id = o.stock_id
		WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.UserID != nil {
		query += fmt.Sprintf(" AND o.user_id = $%d", argIdx)
		args = append(args, *filter.UserID)
		argIdx++
	}

	if filter.StockSymbol != "" {
		query += fmt.Sprintf(" AND s.symbol = $%d", argIdx)
		args = append(args, filter.StockSymbol)
	}

	query += " GROUP BY o.user_id, s.id, s.symbol, s.price ORDER BY o.user_id, s.symbol"

	var investments []model.Investment
	if err := s.db.SelectContext(ctx, &investments, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list investments: %w", err)
	}

	return investments, nil
}

func (s *Storage) ListStocks(ctx context.Context) ([]model.Stock, error) {
	var stocks []model.Stock
	if err := s.db.SelectContext(ctx, &stocks, `SELECT id, name, symbol, price FROM stocks ORDER BY symbol`); err != nil {
		return nil, fmt.Errorf("failed to list stocks: %w", err)
	}
	return stocks, nil
}
