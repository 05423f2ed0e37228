package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrJobNotFound is returned when an import job cannot be found in the database
	ErrJobNotFound = errors.New("import job not found")

	// ErrJobAlreadyFinished is returned when claiming a job that is already PROCESSED or FAILED
	ErrJobAlreadyFinished = errors.New("import job already finished")

	// ErrJobInProgress is returned when claiming a job another run holds with a fresh heartbeat
	ErrJobInProgress = errors.New("import job is being processed by another run")

	// ErrJobClaimLost is returned when a terminal write finds the job claimed by a later attempt
	ErrJobClaimLost = errors.New("import job claim lost to another run")

	// ErrInvalidPayload is returned when a queue message is malformed
	ErrInvalidPayload = errors.New("invalid job payload")

	// ErrMaxAttemptsExceeded is returned when a job has used up its attempts
	ErrMaxAttemptsExceeded = errors.New("max attempts exceeded")

	// ErrInvalidImportFile matches every failure caused by the content of an import file.
	// Such failures are recorded on the job and never retried.
	ErrInvalidImportFile = errors.New("invalid import file")
)

// importError is a sentinel that also matches ErrInvalidImportFile
type importError string

func (e importError) Error() string { return string(e) }

func (e importError) Is(target error) bool { return target == ErrInvalidImportFile }

var (
	ErrImportFileNotFound error = importError("Import file not found")
	ErrEmptyImportFile    error = importError("No headers in import file")
)

// ErrImportCanceled is returned when the job context ends before the file was imported
var ErrImportCanceled = errors.New("Import canceled")

// IsJobFailure reports whether err ends the job as FAILED instead of being retried
func IsJobFailure(err error) bool {
	return errors.Is(err, ErrInvalidImportFile) || errors.Is(err, ErrImportCanceled)
}

// MissingHeadersError lists required headers absent from the header row
type MissingHeadersError struct {
	Headers []string
}

func (e *MissingHeadersError) Error() string {
	return fmt.Sprintf("Headers are not found in the file: '%s'.", strings.Join(e.Headers, ", "))
}

func (e *MissingHeadersError) Is(target error) bool { return target == ErrInvalidImportFile }

// MalformedRowError is returned for a row that cannot be split into the required fields
type MalformedRowError struct {
	Reason string
}

func (e *MalformedRowError) Error() string {
	return "Malformed row: " + e.Reason
}

func (e *MalformedRowError) Is(target error) bool { return target == ErrInvalidImportFile }

// MalformedQuantityError is returned when the quantity field is not a non-negative integer
type MalformedQuantityError struct {
	Value string
}

func (e *MalformedQuantityError) Error() string {
	return fmt.Sprintf("Invalid quantity: %s", e.Value)
}

func (e *MalformedQuantityError) Is(target error) bool { return target == ErrInvalidImportFile }

// InvalidOrderTypeError is returned for an order type outside BUY/SELL
type InvalidOrderTypeError struct {
	Value string
}

func (e *InvalidOrderTypeError) Error() string {
	return fmt.Sprintf("Invalid order type: %s", e.Value)
}

func (e *InvalidOrderTypeError) Is(target error) bool { return target == ErrInvalidImportFile }

// UserNotFoundError is returned when the user key does not resolve to a user
type UserNotFoundError struct {
	UserID string
}

func (e *UserNotFoundError) Error() string {
	return fmt.Sprintf("User (id=%s) not found.", e.UserID)
}

func (e *UserNotFoundError) Is(target error) bool { return target == ErrInvalidImportFile }

// StockNotFoundError is returned when the stock symbol does not resolve to a stock
type StockNotFoundError struct {
	Symbol string
}

func (e *StockNotFoundError) Error() string {
	return fmt.Sprintf("Stock (symbol=%s) not found.", e.Symbol)
}

func (e *StockNotFoundError) Is(target error) bool { return target == ErrInvalidImportFile }

// InsufficientBalanceError is returned when a sell exceeds the running balance
type InsufficientBalanceError struct {
	Symbol    string
	Available int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("Failed to process order. Not enough stock balance for %s. Stock available: %d", e.Symbol, e.Available)
}

func (e *InsufficientBalanceError) Is(target error) bool { return target == ErrInvalidImportFile }

// BalanceOverflowError is returned when a buy would push the running balance past the int64 range
type BalanceOverflowError struct {
	Symbol    string
	Available int64
}

func (e *BalanceOverflowError) Error() string {
	return fmt.Sprintf("Failed to process order. Stock balance for %s is too large. Stock available: %d", e.Symbol, e.Available)
}

func (e *BalanceOverflowError) Is(target error) bool { return target == ErrInvalidImportFile }

// RowError attaches the file line to a row-level failure
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Err.Error())
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// RetryableError wraps transient errors that should trigger a requeue
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}
