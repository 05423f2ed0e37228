package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderType is the kind of an order as written in import files
type OrderType string

const (
	OrderTypeBuy  OrderType = "BUY"
	OrderTypeSell OrderType = "SELL"
)

// ParseOrderType resolves the exact BUY/SELL vocabulary; anything else is rejected.
func ParseOrderType(value string) (OrderType, error) {
	switch OrderType(value) {
	case OrderTypeBuy, OrderTypeSell:
		return OrderType(value), nil
	default:
		return "", &InvalidOrderTypeError{Value: value}
	}
}

// Signed returns quantity with the sign implied by the order type.
func (t OrderType) Signed(quantity int64) int64 {
	if t == OrderTypeSell {
		return -quantity
	}
	return quantity
}

// Order is an executed position change. Quantity is positive for buys and negative for sells.
type Order struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	StockID   int64     `db:"stock_id"`
	Quantity  int64     `db:"quantity"`
	OrderType OrderType `db:"order_type"`
	CreatedAt time.Time `db:"created_at"`
}

// User is a ledger account holder
type User struct {
	ID       int64  `db:"id"`
	Username string `db:"username"`
}

// Stock is a tradable instrument
type Stock struct {
	ID     int64           `db:"id"`
	Name   string          `db:"name"`
	Symbol string          `db:"symbol"`
	Price  decimal.Decimal `db:"price"`
}

// Position is the persisted net quantity of one stock held by one user
type Position struct {
	UserID   int64  `db:"user_id"`
	Symbol   string `db:"symbol"`
	Quantity int64  `db:"quantity"`
}

// Row is one parsed line of an import file. Line is 1-based and counts the header.
type Row struct {
	Line      int
	User      string
	Stock     string
	Quantity  int64
	OrderType string
}
