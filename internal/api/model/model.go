package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type ImportJob struct {
	JobID            string     `db:"job_id"`
	FilePath         string     `db:"file_path"`
	Status           string     `db:"status"`
	CompletedAt      *time.Time `db:"completed_at"`
	Errors           *string    `db:"errors"`
	UploadedByUserID *int64     `db:"uploaded_by_user_id"`
	Attempts         int        `db:"attempts"`
	MaxAttempts      int        `db:"max_attempts"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}

type Stock struct {
	ID     int64           `db:"id"`
	Name   string          `db:"name"`
	Symbol string          `db:"symbol"`
	Price  decimal.Decimal `db:"price"`
}

// Investment is the net holding of one user in one stock
type Investment struct {
	UserID      int64           `db:"user_id"`
	StockSymbol string          `db:"stock_symbol"`
	Quantity    int64           `db:"total_quantity"`
	Price       decimal.Decimal `db:"price"`
}

// TotalValue is the holding valued at the current stock price
func (i Investment) TotalValue() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(i.Quantity))
}
