package domain

import "time"

// ExceptionStatus is the lifecycle state of an interface exception.
type ExceptionStatus string

const (
	StatusNew            ExceptionStatus = "NEW"
	StatusAcknowledged   ExceptionStatus = "ACKNOWLEDGED"
	StatusRetriedSuccess ExceptionStatus = "RETRIED_SUCCESS"
	StatusRetriedFailed  ExceptionStatus = "RETRIED_FAILED"
	StatusEscalated      ExceptionStatus = "ESCALATED"
	StatusResolved       ExceptionStatus = "RESOLVED"
	StatusClosed         ExceptionStatus = "CLOSED"
)

// InterfaceType identifies the upstream interface that reported the failure.
type InterfaceType string

const (
	InterfaceOrder        InterfaceType = "ORDER"
	InterfaceCollection   InterfaceType = "COLLECTION"
	InterfaceDistribution InterfaceType = "DISTRIBUTION"
)

// Severity classifies how urgent an exception is.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// ResolutionMethod records how an exception was resolved.
type ResolutionMethod string

const (
	ResolutionRetrySuccess     ResolutionMethod = "RETRY_SUCCESS"
	ResolutionManual           ResolutionMethod = "MANUAL_RESOLUTION"
	ResolutionCustomerResolved ResolutionMethod = "CUSTOMER_RESOLVED"
	ResolutionAutomated        ResolutionMethod = "AUTOMATED"
)

// InterfaceException is one recorded failure from an upstream interface,
// tracked through the retry/acknowledge/resolve lifecycle.
type InterfaceException struct {
	ID              int64
	TransactionID   string
	ExternalID      string
	InterfaceType   InterfaceType
	Operation       string
	ExceptionReason string
	Status          ExceptionStatus
	Severity        Severity
	Category        string
	CustomerID      string
	LocationCode    string
	Timestamp       time.Time
	ProcessedAt     time.Time

	Retryable   bool
	RetryCount  int
	MaxRetries  int
	LastRetryAt *time.Time

	AcknowledgedBy string
	AcknowledgedAt *time.Time

	ResolvedBy       string
	ResolvedAt       *time.Time
	ResolutionMethod ResolutionMethod
	ResolutionNotes  string

	// Version is the optimistic lock token, incremented on every accepted write.
	Version int64
}

// IsTerminal reports whether the status admits no further transitions.
func (e *InterfaceException) IsTerminal() bool {
	return e.Status == StatusResolved || e.Status == StatusClosed
}

// CanRetry reports whether a business retry may be initiated, ignoring the
// pending-attempt check which requires a store lookup.
func (e *InterfaceException) CanRetry() bool {
	return e.Retryable && !e.IsTerminal() && e.RetryCount < e.MaxRetries
}

// Resolvable statuses: a direct resolve is accepted from any of these.
var resolvableStatuses = map[ExceptionStatus]bool{
	StatusNew:           true,
	StatusAcknowledged:  true,
	StatusRetriedFailed: true,
	StatusEscalated:     true,
}

// CanResolve reports whether a manual resolve is accepted from the current status.
func (e *InterfaceException) CanResolve() bool {
	return resolvableStatuses[e.Status] || e.Status == StatusRetriedSuccess
}
