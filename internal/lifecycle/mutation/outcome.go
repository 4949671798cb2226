package mutation

import (
	"github.com/mjones3/exception-collector/internal/core/domain"
	"github.com/mjones3/exception-collector/internal/lifecycle/validation"
)

// Outcome is the structured result of one mutation. Validation, business,
// concurrency and infrastructure failures all surface here as values; the
// orchestrator never propagates them as Go errors.
type Outcome struct {
	Operation     string
	TransactionID string
	Success       bool
	Exception     *domain.ExceptionSnapshot
	Attempt       *domain.AttemptSnapshot
	Errors        []validation.Error
	CorrelationID string
}

// HasCode reports whether any error carries the given code.
func (o Outcome) HasCode(code validation.Code) bool {
	for _, e := range o.Errors {
		if e.Code == code {
			return true
		}
	}
	return false
}

// FirstCode returns the code of the first error, or "" on success.
func (o Outcome) FirstCode() validation.Code {
	if len(o.Errors) == 0 {
		return ""
	}
	return o.Errors[0].Code
}

// BulkOutcome accumulates per-item outcomes for a bulk operation. A single
// failing item never aborts the batch. Errors holds list-level validation
// failures that rejected the request before any item ran; it is set even
// when the list itself was empty, so a rejection is never silent.
type BulkOutcome struct {
	Operation     string
	Items         []Outcome
	SuccessCount  int
	FailureCount  int
	Errors        []validation.Error
	CorrelationID string
}

// HasCode reports whether any list-level error carries the given code.
func (o BulkOutcome) HasCode(code validation.Code) bool {
	for _, e := range o.Errors {
		if e.Code == code {
			return true
		}
	}
	return false
}
