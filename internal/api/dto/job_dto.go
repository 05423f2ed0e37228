package dto

import "github.com/shopspring/decimal"

type ListImportJobsRequest struct {
	UserID   *int64 `form:"uploaded_by_user_id"`
	Status   string `form:"status"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListImportJobsResponse struct {
	Jobs       []ImportJobDTO `json:"jobs"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

type ImportJobDTO struct {
	JobID            string  `json:"job_id"`
	Status           string  `json:"status"`
	Errors           *string `json:"errors"`
	CompletedAt      *string `json:"completed_at"`
	UploadedByUserID *int64  `json:"uploaded_by_user_id"`
	Attempts         int     `json:"attempts"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        string  `json:"updated_at"`
}

type ListInvestmentsRequest struct {
	UserID      *int64 `form:"user_id"`
	StockSymbol string `form:"stock_symbol"`
}

type InvestmentDTO struct {
	UserID        int64           `json:"user_id"`
	StockSymbol   string          `json:"stock_symbol"`
	TotalQuantity int64           `json:"total_quantity"`
	TotalValue    decimal.Decimal `json:"total_value"`
}

type StockDTO struct {
	ID     int64           `json:"id"`
	Name   string          `json:"name"`
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
}

// ImportJobMessage is the queue message announcing a new import job
type ImportJobMessage struct {
	JobID string `json:"job_id"`
}
