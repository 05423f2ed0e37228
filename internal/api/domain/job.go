package domain

import (
	"errors"
)

// Import job statuses as stored in import_jobs.status
const (
	JobStatusNew        = "NEW"
	JobStatusProcessing = "PROCESSING"
	JobStatusProcessed  = "PROCESSED"
	JobStatusFailed     = "FAILED"
)

// ValidJobStatus reports whether status is one of the import job statuses
func ValidJobStatus(status string) bool {
	switch status {
	case JobStatusNew, JobStatusProcessing, JobStatusProcessed, JobStatusFailed:
		return true
	}
	return false
}

var (
	ErrJobNotFound = errors.New("import job not found")

	// ErrUnsupportedFile is returned for uploads that are neither .csv nor .xlsx
	ErrUnsupportedFile = errors.New("unsupported file type")
)
