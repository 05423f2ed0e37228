package cache

import (
	"context"
	"math"

	"github.com/cuongbtq/trade-ledger/internal/worker/domain"
)

// PositionLoader sums persisted order quantities per stock for the given users
type PositionLoader func(ctx context.Context, userIDs []int64) ([]domain.Position, error)

type positionKey struct {
	userID int64
	symbol string
}

// PortfolioCache tracks the running balance per (user, stock) while a file is imported.
// It starts from persisted history and applies every accepted row in file order.
type PortfolioCache struct {
	load     PositionLoader
	warmed   map[int64]struct{}
	balances map[positionKey]int64
}

// NewPortfolioCache creates an empty portfolio cache
func NewPortfolioCache(load PositionLoader) *PortfolioCache {
	return &PortfolioCache{
		load:     load,
		warmed:   make(map[int64]struct{}),
		balances: make(map[positionKey]int64),
	}
}

// Warm seeds balances for users that were not loaded yet
func (c *PortfolioCache) Warm(ctx context.Context, userIDs []int64) error {
	var missing []int64
	for _, id := range userIDs {
		if _, ok := c.warmed[id]; ok {
			continue
		}
		c.warmed[id] = struct{}{}
		missing = append(missing, id)
	}

	if len(missing) == 0 {
		return nil
	}

	positions, err := c.load(ctx, missing)
	if err != nil {
		for _, id := range missing {
			delete(c.warmed, id)
		}
		return err
	}

	for _, p := range positions {
		c.balances[positionKey{userID: p.UserID, symbol: p.Symbol}] += p.Quantity
	}

	return nil
}

// Balance returns the current running balance
func (c *PortfolioCache) Balance(userID int64, symbol string) int64 {
	return c.balances[positionKey{userID: userID, symbol: symbol}]
}

// Overflows reports whether applying delta would leave the int64 range
func (c *PortfolioCache) Overflows(userID int64, symbol string, delta int64) bool {
	balance := c.balances[positionKey{userID: userID, symbol: symbol}]
	return delta > 0 && balance > math.MaxInt64-delta
}

// Find applies delta to the running balance. A sell larger than the balance, or a buy
// that would overflow it, is rejected leaving the balance untouched; the returned balance
// is the current one in that case and the updated one otherwise.
func (c *PortfolioCache) Find(userID int64, symbol string, delta int64) (int64, bool) {
	key := positionKey{userID: userID, symbol: symbol}
	balance := c.balances[key]

	if delta < 0 && -delta > balance {
		return balance, false
	}
	if delta > 0 && balance > math.MaxInt64-delta {
		return balance, false
	}

	balance += delta
	c.balances[key] = balance
	return balance, true
}
