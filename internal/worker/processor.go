package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/trade-ledger/internal/worker/domain"
)

const bookkeepingTimeout = 10 * time.Second

// processJob runs one import job. A nil error means the job reached a terminal
// state (or had already) and the message can be acknowledged.
func (w *Worker) processJob(ctx context.Context, msg *domain.JobMessage) error {
	logger := w.logger.With(slog.String("job_id", msg.JobID))

	// a shutdown lets the running job finish within its own timeout
	jobCtx := context.WithoutCancel(ctx)
	if w.jobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(jobCtx, w.jobTimeout)
		defer cancel()
	}

	heartbeatDone := make(chan struct{})
	go w.sendJobHeartbeat(jobCtx, msg.JobID, heartbeatDone)
	defer close(heartbeatDone)

	job, err := w.importer.Submit(jobCtx, msg.JobID)
	if err == nil {
		logger.Info("Import job finished",
			slog.String("status", job.Status),
		)
		return nil
	}

	switch {
	case errors.Is(err, domain.ErrJobAlreadyFinished):
		logger.Warn("Import job already finished, dropping duplicate message")
		return nil
	case errors.Is(err, domain.ErrJobInProgress), errors.Is(err, domain.ErrJobClaimLost):
		// the run holding the claim settles the job
		logger.Warn("Import job owned by another run, dropping message",
			slog.String("error", err.Error()),
		)
		return nil
	case errors.Is(err, domain.ErrJobNotFound):
		return fmt.Errorf("failed to process job %s: %w", msg.JobID, err)
	}

	return w.handleInfrastructureFailure(ctx, logger, msg.JobID, err)
}

// handleInfrastructureFailure decides between a retry and giving up on the job
func (w *Worker) handleInfrastructureFailure(ctx context.Context, logger *slog.Logger, jobID string, cause error) error {
	bookCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), bookkeepingTimeout)
	defer cancel()

	job, err := w.jobs.GetImportJob(bookCtx, jobID)
	if err != nil {
		logger.Error("Failed to load job after import failure",
			slog.String("error", err.Error()),
		)
		return domain.NewRetryableError(cause)
	}

	if job.CanRetry() {
		logger.Info("Import job will be retried",
			slog.Int("attempts", job.Attempts),
			slog.Int("max_attempts", job.MaxAttempts),
		)
		return domain.NewRetryableError(cause)
	}

	logger.Warn("Import job exceeded max attempts",
		slog.Int("attempts", job.Attempts),
		slog.Int("max_attempts", job.MaxAttempts),
	)

	message := fmt.Sprintf("Import aborted after %d attempts: %v", job.Attempts, cause)
	if err := w.jobs.MarkFailed(bookCtx, jobID, job.Attempts, w.now(), message); err != nil {
		if errors.Is(err, domain.ErrJobClaimLost) {
			logger.Warn("Import job claimed again before it could be failed")
			return nil
		}
		logger.Error("Failed to mark job as failed",
			slog.String("error", err.Error()),
		)
		return domain.NewRetryableError(err)
	}

	return fmt.Errorf("%w: %v", domain.ErrMaxAttemptsExceeded, cause)
}

// sendJobHeartbeat periodically updates the job's heartbeat timestamp
func (w *Worker) sendJobHeartbeat(ctx context.Context, jobID string, done <-chan struct{}) {
	ticker := time.NewTicker(w.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return

		case <-ctx.Done():
			return

		case <-ticker.C:
			if err := w.jobs.UpdateJobHeartbeat(ctx, jobID, w.workerID); err != nil {
				w.logger.Warn("Failed to update job heartbeat",
					slog.String("job_id", jobID),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
