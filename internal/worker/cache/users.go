package cache

import (
	"context"
	"strconv"

	"github.com/cuongbtq/trade-ledger/internal/worker/domain"
)

// UserFinder loads users by id
type UserFinder func(ctx context.Context, ids []int64) ([]domain.User, error)

// StockFinder loads stocks by symbol
type StockFinder func(ctx context.Context, symbols []string) ([]domain.Stock, error)

// NewUserCache creates a cache keyed by the user column of an import file.
// Keys that are not integers never reach the store and resolve as misses.
func NewUserCache(find UserFinder) *Lookup[domain.User] {
	return NewLookup[domain.User](func(ctx context.Context, keys []string) (map[string]domain.User, error) {
		keysByID := make(map[int64][]string, len(keys))
		ids := make([]int64, 0, len(keys))
		for _, key := range keys {
			id, err := strconv.ParseInt(key, 10, 64)
			if err != nil {
				continue
			}
			if _, ok := keysByID[id]; !ok {
				ids = append(ids, id)
			}
			keysByID[id] = append(keysByID[id], key)
		}

		if len(ids) == 0 {
			return nil, nil
		}

		users, err := find(ctx, ids)
		if err != nil {
			return nil, err
		}

		found := make(map[string]domain.User, len(users))
		for _, user := range users {
			for _, key := range keysByID[user.ID] {
				found[key] = user
			}
		}
		return found, nil
	})
}

// NewStockCache creates a cache keyed by stock symbol
func NewStockCache(find StockFinder) *Lookup[domain.Stock] {
	return NewLookup[domain.Stock](func(ctx context.Context, symbols []string) (map[string]domain.Stock, error) {
		stocks, err := find(ctx, symbols)
		if err != nil {
			return nil, err
		}

		found := make(map[string]domain.Stock, len(stocks))
		for _, stock := range stocks {
			found[stock.Symbol] = stock
		}
		return found, nil
	})
}
