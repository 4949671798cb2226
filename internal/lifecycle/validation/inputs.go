package validation

import "github.com/mjones3/exception-collector/internal/core/domain"

// RetryPriority orders retry execution downstream.
type RetryPriority string

const (
	PriorityLow    RetryPriority = "LOW"
	PriorityNormal RetryPriority = "NORMAL"
	PriorityHigh   RetryPriority = "HIGH"
	PriorityUrgent RetryPriority = "URGENT"
)

var validPriorities = map[RetryPriority]bool{
	PriorityLow: true, PriorityNormal: true, PriorityHigh: true, PriorityUrgent: true,
}

var validResolutionMethods = map[domain.ResolutionMethod]bool{
	domain.ResolutionRetrySuccess:     true,
	domain.ResolutionManual:           true,
	domain.ResolutionCustomerResolved: true,
	domain.ResolutionAutomated:        true,
}

// RetryInput carries a retry request.
type RetryInput struct {
	TransactionID string
	Reason        string
	Priority      RetryPriority
	Notes         string
}

// AcknowledgeInput carries an acknowledge request. AssignedTo is optional and
// admin-only when set to a user other than the caller.
type AcknowledgeInput struct {
	TransactionID string
	Reason        string
	Notes         string
	AssignedTo    string
}

// ResolveInput carries a resolve request.
type ResolveInput struct {
	TransactionID    string
	ResolutionMethod domain.ResolutionMethod
	ResolutionNotes  string
}

// CancelRetryInput carries a cancel-retry request.
type CancelRetryInput struct {
	TransactionID string
	Reason        string
}
