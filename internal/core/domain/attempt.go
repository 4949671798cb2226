package domain

import "time"

// RetryStatus is the lifecycle state of a single retry attempt.
// PENDING is the only non-terminal state.
type RetryStatus string

const (
	RetryPending   RetryStatus = "PENDING"
	RetrySuccess   RetryStatus = "SUCCESS"
	RetryFailed    RetryStatus = "FAILED"
	RetryCancelled RetryStatus = "CANCELLED"
)

// RetryAttempt is one execution of a business retry for an exception.
// Attempt numbers are assigned at creation and never reused.
type RetryAttempt struct {
	ID            int64
	ExceptionID   int64
	AttemptNumber int
	Status        RetryStatus
	InitiatedBy   string
	InitiatedAt   time.Time
	CompletedAt   *time.Time
	ResultSuccess bool
	ResultMessage string
}

// IsTerminal reports whether the attempt has finished.
func (a *RetryAttempt) IsTerminal() bool {
	return a.Status != RetryPending
}
