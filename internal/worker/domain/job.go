package domain

import "time"

// Import job status constants
const (
	JobStatusNew        = "NEW"
	JobStatusProcessing = "PROCESSING"
	JobStatusProcessed  = "PROCESSED"
	JobStatusFailed     = "FAILED"
)

// ImportJob represents one uploaded order file and its processing record
type ImportJob struct {
	JobID            string     `db:"job_id"`
	FilePath         string     `db:"file_path"`
	Status           string     `db:"status"`
	CompletedAt      *time.Time `db:"completed_at"`
	Errors           *string    `db:"errors"`
	UploadedByUserID *int64     `db:"uploaded_by_user_id"`
	WorkerID         *string    `db:"worker_id"`
	Attempts         int        `db:"attempts"`
	MaxAttempts      int        `db:"max_attempts"`
	StartedAt        *time.Time `db:"started_at"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}

// IsTerminal reports whether the job reached PROCESSED or FAILED
func (j *ImportJob) IsTerminal() bool {
	return j.Status == JobStatusProcessed || j.Status == JobStatusFailed
}

// CanRetry reports whether another attempt is allowed after an infrastructure failure
func (j *ImportJob) CanRetry() bool {
	return j.MaxAttempts <= 0 || j.Attempts < j.MaxAttempts
}

// JobMessage represents an import job message from RabbitMQ
type JobMessage struct {
	JobID       string `json:"job_id"`
	DeliveryTag uint64 `json:"-"`
}
