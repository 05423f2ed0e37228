package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/trade-ledger/internal/worker/domain"
)

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}

	w.logger.Info("Worker pool spawned",
		slog.Int("worker_count", w.concurrency),
	)
}

// workerLoop processes jobs one at a time until the worker stops
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	logger := w.logger.With(slog.String("worker_name", fmt.Sprintf("%s-%d", w.workerID, workerNum)))

	for {
		select {
		case <-w.stopChan:
			logger.Debug("Worker goroutine stopping - stopChan closed")
			return

		case <-ctx.Done():
			logger.Debug("Worker goroutine stopping - context canceled")
			return

		case msg, ok := <-w.jobsChan:
			if !ok {
				return
			}
			w.handleMessage(ctx, logger, msg)
		}
	}
}

// handleMessage runs one job and settles its delivery
func (w *Worker) handleMessage(ctx context.Context, logger *slog.Logger, msg *domain.JobMessage) {
	logger = logger.With(slog.String("job_id", msg.JobID))

	err := w.processJob(ctx, msg)
	if err == nil {
		if ackErr := w.broker.Ack(msg.DeliveryTag); ackErr != nil {
			logger.Error("Failed to ACK message",
				slog.String("error", ackErr.Error()),
			)
		}
		return
	}

	requeue := shouldRequeueJob(err)
	logger.Error("Job processing failed",
		slog.String("error", err.Error()),
		slog.Bool("requeue", requeue),
	)

	if nackErr := w.broker.Nack(msg.DeliveryTag, requeue); nackErr != nil {
		logger.Error("Failed to NACK message",
			slog.String("error", nackErr.Error()),
		)
	}
}

// shouldRequeueJob determines if a job should be requeued based on the error type
func shouldRequeueJob(err error) bool {
	switch {
	case errors.Is(err, domain.ErrJobNotFound),
		errors.Is(err, domain.ErrMaxAttemptsExceeded),
		errors.Is(err, domain.ErrInvalidPayload):
		return false
	}

	var retryableErr *domain.RetryableError
	return errors.As(err, &retryableErr)
}
