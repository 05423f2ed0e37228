package importer

import (
	"context"
	"sync"
	"time"

	"github.com/cuongbtq/trade-ledger/internal/worker/domain"
)

// memStore is an in-memory Store with transaction semantics: orders and status
// written through a Tx become visible only when the scope commits.
//
// It mirrors the SQL of internal/worker/storage: the claim rules and attempt-guarded
// terminal writes on import_jobs, FindUsers/FindStocks returning only existing rows,
// and SumPositions summing committed plus staged orders per (user, symbol).
type memStore struct {
	mu sync.Mutex

	jobs   map[string]*domain.ImportJob
	users  map[int64]domain.User
	stocks map[string]domain.Stock
	orders []domain.Order

	nextOrderID int64

	userLookups     map[int64]int
	stockLookups    map[string]int
	positionLookups map[int64]int
	statusHistory   map[string][]string

	// held marks PROCESSING jobs whose run is alive; others may be claimed again
	held map[string]bool

	insertErr    error
	beforeInsert func()
}

func newMemStore() *memStore {
	return &memStore{
		jobs:            make(map[string]*domain.ImportJob),
		users:           make(map[int64]domain.User),
		stocks:          make(map[string]domain.Stock),
		userLookups:     make(map[int64]int),
		stockLookups:    make(map[string]int),
		positionLookups: make(map[int64]int),
		statusHistory:   make(map[string][]string),
		held:            make(map[string]bool),
	}
}

func (s *memStore) addJob(jobID, filePath string) {
	s.jobs[jobID] = &domain.ImportJob{
		JobID:       jobID,
		FilePath:    filePath,
		Status:      domain.JobStatusNew,
		MaxAttempts: 3,
	}
}

func (s *memStore) addUser(id int64) {
	s.users[id] = domain.User{ID: id, Username: "user"}
}

func (s *memStore) addStock(id int64, symbol string) {
	s.stocks[symbol] = domain.Stock{ID: id, Symbol: symbol, Name: symbol}
}

// addOrder stores an already committed order
func (s *memStore) addOrder(userID int64, symbol string, quantity int64) {
	s.nextOrderID++
	orderType := domain.OrderTypeBuy
	if quantity < 0 {
		orderType = domain.OrderTypeSell
	}
	s.orders = append(s.orders, domain.Order{
		ID:        s.nextOrderID,
		UserID:    userID,
		StockID:   s.stocks[symbol].ID,
		Quantity:  quantity,
		OrderType: orderType,
	})
}

// abandon makes the running claim of jobID look stale
func (s *memStore) abandon(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.held, jobID)
}

// claimed reports whether jobID is still PROCESSING under attempt
func (s *memStore) claimed(jobID string, attempt int) bool {
	job, ok := s.jobs[jobID]
	return ok && job.Status == domain.JobStatusProcessing && job.Attempts == attempt
}

func (s *memStore) job(jobID string) domain.ImportJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.jobs[jobID]
}

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *memStore) setStatus(job *domain.ImportJob, status string) {
	job.Status = status
	s.statusHistory[job.JobID] = append(s.statusHistory[job.JobID], status)
}

func (s *memStore) ClaimImportJob(ctx context.Context, jobID, workerID string) (*domain.ImportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	if job.IsTerminal() {
		return nil, domain.ErrJobAlreadyFinished
	}
	if s.held[jobID] {
		return nil, domain.ErrJobInProgress
	}

	s.held[jobID] = true
	s.setStatus(job, domain.JobStatusProcessing)
	job.Attempts++
	job.WorkerID = &workerID

	claimed := *job
	return &claimed, nil
}

func (s *memStore) MarkFailed(ctx context.Context, jobID string, attempt int, completedAt time.Time, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.claimed(jobID, attempt) {
		return domain.ErrJobClaimLost
	}

	job := s.jobs[jobID]
	s.setStatus(job, domain.JobStatusFailed)
	job.CompletedAt = &completedAt
	job.Errors = &message
	return nil
}

func (s *memStore) ReleaseImportJob(ctx context.Context, jobID string, attempt int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.claimed(jobID, attempt) {
		return domain.ErrJobClaimLost
	}
	delete(s.held, jobID)
	return nil
}

func (s *memStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	tx := &memTx{store: s}
	if err := fn(tx); err != nil {
		return err
	}

	for _, hook := range tx.beforeCommit {
		if err := hook(ctx); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.orders = append(s.orders, tx.staged...)
	if tx.processed != nil {
		job := s.jobs[tx.processed.jobID]
		s.setStatus(job, domain.JobStatusProcessed)
		job.CompletedAt = &tx.processed.at
		job.Errors = nil
	}
	s.mu.Unlock()

	for _, fn := range tx.afterCommit {
		fn()
	}
	return nil
}

type memTx struct {
	store        *memStore
	staged       []domain.Order
	beforeCommit []func(ctx context.Context) error
	afterCommit  []func()
	processed    *struct {
		jobID string
		at    time.Time
	}
}

func (t *memTx) FindUsers(ctx context.Context, ids []int64) ([]domain.User, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	var users []domain.User
	for _, id := range ids {
		t.store.userLookups[id]++
		if user, ok := t.store.users[id]; ok {
			users = append(users, user)
		}
	}
	return users, nil
}

func (t *memTx) FindStocks(ctx context.Context, symbols []string) ([]domain.Stock, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	var stocks []domain.Stock
	for _, symbol := range symbols {
		t.store.stockLookups[symbol]++
		if stock, ok := t.store.stocks[symbol]; ok {
			stocks = append(stocks, stock)
		}
	}
	return stocks, nil
}

func (t *memTx) SumPositions(ctx context.Context, userIDs []int64) ([]domain.Position, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	symbols := make(map[int64]string, len(t.store.stocks))
	for _, stock := range t.store.stocks {
		symbols[stock.ID] = stock.Symbol
	}

	wanted := make(map[int64]bool, len(userIDs))
	for _, id := range userIDs {
		t.store.positionLookups[id]++
		wanted[id] = true
	}

	sums := make(map[domain.Position]int64)
	all := append(append([]domain.Order{}, t.store.orders...), t.staged...)
	for _, o := range all {
		if !wanted[o.UserID] {
			continue
		}
		sums[domain.Position{UserID: o.UserID, Symbol: symbols[o.StockID]}] += o.Quantity
	}

	positions := make([]domain.Position, 0, len(sums))
	for key, qty := range sums {
		key.Quantity = qty
		positions = append(positions, key)
	}
	return positions, nil
}

func (t *memTx) InsertOrders(ctx context.Context, orders []domain.Order) error {
	if t.store.beforeInsert != nil {
		t.store.beforeInsert()
	}

	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	if t.store.insertErr != nil {
		return t.store.insertErr
	}

	for _, o := range orders {
		t.store.nextOrderID++
		o.ID = t.store.nextOrderID
		t.staged = append(t.staged, o)
	}
	return nil
}

func (t *memTx) MarkProcessed(ctx context.Context, jobID string, attempt int, completedAt time.Time) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	if !t.store.claimed(jobID, attempt) {
		return domain.ErrJobClaimLost
	}

	t.processed = &struct {
		jobID string
		at    time.Time
	}{jobID: jobID, at: completedAt}
	return nil
}

func (t *memTx) OnCommit(hook func(ctx context.Context) error) {
	t.beforeCommit = append(t.beforeCommit, hook)
}

func (t *memTx) AfterCommit(fn func()) {
	t.afterCommit = append(t.afterCommit, fn)
}
