// Package worker consumes import job ids from RabbitMQ and runs them through the importer.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/trade-ledger/internal/worker/domain"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const defaultHeartbeatInterval = 30 * time.Second

// Importer runs one import job to a terminal state
type Importer interface {
	Submit(ctx context.Context, jobID string) (*domain.ImportJob, error)
}

// JobStore is the job bookkeeping the worker needs around an import
type JobStore interface {
	GetImportJob(ctx context.Context, jobID string) (*domain.ImportJob, error)
	MarkFailed(ctx context.Context, jobID string, attempt int, completedAt time.Time, message string) error
	UpdateJobHeartbeat(ctx context.Context, jobID, workerID string) error
}

// Broker delivers job messages and takes acknowledgements
type Broker interface {
	Consume(consumerTag string, prefetch int) (<-chan amqp.Delivery, error)
	Ack(deliveryTag uint64) error
	Nack(deliveryTag uint64, requeue bool) error
}

// Config holds worker configuration
type Config struct {
	Logger            *slog.Logger
	Importer          Importer
	Jobs              JobStore
	Broker            Broker
	WorkerID          string
	Concurrency       int
	PrefetchCount     int
	JobTimeout        time.Duration
	HeartbeatInterval time.Duration
}

// Worker represents the background import worker
type Worker struct {
	logger            *slog.Logger
	importer          Importer
	jobs              JobStore
	broker            Broker
	workerID          string
	concurrency       int
	prefetchCount     int
	jobTimeout        time.Duration
	heartbeatInterval time.Duration
	now               func() time.Time

	jobsChan chan *domain.JobMessage
	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewWorkerID returns a unique id for one worker process
func NewWorkerID() string {
	return "worker-" + uuid.NewString()
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	prefetch := cfg.PrefetchCount
	if prefetch <= 0 {
		prefetch = concurrency
	}

	heartbeat := cfg.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatInterval
	}

	workerID := cfg.WorkerID
	if workerID == "" {
		workerID = NewWorkerID()
	}

	return &Worker{
		logger:            cfg.Logger.With(slog.String("worker_id", workerID)),
		importer:          cfg.Importer,
		jobs:              cfg.Jobs,
		broker:            cfg.Broker,
		workerID:          workerID,
		concurrency:       concurrency,
		prefetchCount:     prefetch,
		jobTimeout:        cfg.JobTimeout,
		heartbeatInterval: heartbeat,
		now:               time.Now,
		jobsChan:          make(chan *domain.JobMessage),
		stopChan:          make(chan struct{}),
	}
}

// Start consumes the queue and blocks until ctx is canceled. Jobs already
// running when ctx ends are allowed to finish; call Stop to wait for them.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.Int("concurrency", w.concurrency),
		slog.Duration("job_timeout", w.jobTimeout),
	)

	deliveries, err := w.broker.Consume(w.workerID, w.prefetchCount)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	w.spawnWorkerPool(ctx)
	w.startMessageDispatcher(ctx, deliveries)

	w.logger.Info("Worker context canceled, stopping...")
	return nil
}

// Stop signals the pool to exit and waits for in-flight jobs
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	w.stopOnce.Do(func() { close(w.stopChan) })
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}
