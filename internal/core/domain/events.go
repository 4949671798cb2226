package domain

import "time"

// ExceptionEventType classifies an exception update event.
type ExceptionEventType string

const (
	EventCreated        ExceptionEventType = "CREATED"
	EventUpdated        ExceptionEventType = "UPDATED"
	EventAcknowledged   ExceptionEventType = "ACKNOWLEDGED"
	EventResolved       ExceptionEventType = "RESOLVED"
	EventCancelled      ExceptionEventType = "CANCELLED"
	EventRetryInitiated ExceptionEventType = "RETRY_INITIATED"
	EventRetryCompleted ExceptionEventType = "RETRY_COMPLETED"
)

// RetryEventType classifies a retry status event.
type RetryEventType string

const (
	RetryEventInitiated  RetryEventType = "INITIATED"
	RetryEventInProgress RetryEventType = "IN_PROGRESS"
	RetryEventCompleted  RetryEventType = "COMPLETED"
	RetryEventFailed     RetryEventType = "FAILED"
	RetryEventCancelled  RetryEventType = "CANCELLED"
)

// MutationType names the operation behind a mutation completion event.
type MutationType string

const (
	MutationRetry           MutationType = "RETRY"
	MutationAcknowledge     MutationType = "ACKNOWLEDGE"
	MutationResolve         MutationType = "RESOLVE"
	MutationCancelRetry     MutationType = "CANCEL_RETRY"
	MutationBulkRetry       MutationType = "BULK_RETRY"
	MutationBulkAcknowledge MutationType = "BULK_ACKNOWLEDGE"
	MutationBulkResolve     MutationType = "BULK_RESOLVE"
)

// ExceptionSnapshot is a fully materialized copy of an exception taken at
// publish time. Subscribers only ever see snapshots, never live entities.
type ExceptionSnapshot struct {
	ID              int64
	TransactionID   string
	ExternalID      string
	InterfaceType   InterfaceType
	ExceptionReason string
	Operation       string
	Status          ExceptionStatus
	Severity        Severity
	Category        string
	CustomerID      string
	LocationCode    string
	Timestamp       time.Time
	ProcessedAt     time.Time
	Retryable       bool
	RetryCount      int
	MaxRetries      int
	LastRetryAt     *time.Time
	AcknowledgedBy  string
	AcknowledgedAt  *time.Time
}

// Snapshot copies every published field out of the entity. The copy must
// happen before the entity leaves the mutation's transactional context.
func (e *InterfaceException) Snapshot() ExceptionSnapshot {
	return ExceptionSnapshot{
		ID:              e.ID,
		TransactionID:   e.TransactionID,
		ExternalID:      e.ExternalID,
		InterfaceType:   e.InterfaceType,
		ExceptionReason: e.ExceptionReason,
		Operation:       e.Operation,
		Status:          e.Status,
		Severity:        e.Severity,
		Category:        e.Category,
		CustomerID:      e.CustomerID,
		LocationCode:    e.LocationCode,
		Timestamp:       e.Timestamp,
		ProcessedAt:     e.ProcessedAt,
		Retryable:       e.Retryable,
		RetryCount:      e.RetryCount,
		MaxRetries:      e.MaxRetries,
		LastRetryAt:     copyTime(e.LastRetryAt),
		AcknowledgedBy:  e.AcknowledgedBy,
		AcknowledgedAt:  copyTime(e.AcknowledgedAt),
	}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// ExceptionUpdateEvent is published on every exception lifecycle change.
type ExceptionUpdateEvent struct {
	Type        ExceptionEventType
	Exception   ExceptionSnapshot
	Timestamp   time.Time
	TriggeredBy string
}

// AttemptSnapshot is a materialized copy of a retry attempt.
type AttemptSnapshot struct {
	ID            int64
	AttemptNumber int
	Status        RetryStatus
	InitiatedBy   string
	InitiatedAt   time.Time
	CompletedAt   *time.Time
}

// Snapshot copies the published fields out of the attempt.
func (a *RetryAttempt) Snapshot() AttemptSnapshot {
	return AttemptSnapshot{
		ID:            a.ID,
		AttemptNumber: a.AttemptNumber,
		Status:        a.Status,
		InitiatedBy:   a.InitiatedBy,
		InitiatedAt:   a.InitiatedAt,
		CompletedAt:   copyTime(a.CompletedAt),
	}
}

// RetryStatusEvent is published when a retry attempt changes state.
type RetryStatusEvent struct {
	TransactionID string
	Attempt       AttemptSnapshot
	Type          RetryEventType
	Timestamp     time.Time
}

// MutationCompletionEvent is published exactly once per domain mutation.
type MutationCompletionEvent struct {
	MutationType  MutationType
	TransactionID string
	Success       bool
	PerformedBy   string
	Timestamp     time.Time
	Message       string
	CorrelationID string
}

// DashboardSummary is the coarse aggregate pushed on the dashboard channel.
type DashboardSummary struct {
	TotalByStatus        map[ExceptionStatus]int64
	TotalBySeverity      map[Severity]int64
	TotalByInterfaceType map[InterfaceType]int64
	ActiveExceptions     int64
	TotalRetries         int64
	SucceededRetries     int64
	RetrySuccessRate     float64
	UpdatedAt            time.Time
}
