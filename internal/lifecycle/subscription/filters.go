package subscription

import (
	"strings"

	"github.com/mjones3/exception-collector/internal/core/domain"
)

// Filters narrows the exception update stream for one subscriber. Empty
// slices and fields match everything; set fields combine with AND, values
// within a field with OR.
type Filters struct {
	InterfaceTypes  []domain.InterfaceType
	Statuses        []domain.ExceptionStatus
	Severities      []domain.Severity
	CustomerIDs     []string
	LocationCodes   []string
	SearchTerm      string
	ExcludeResolved bool
}

// Matches reports whether an event passes the filter set.
func (f Filters) Matches(event domain.ExceptionUpdateEvent) bool {
	exc := event.Exception

	if f.ExcludeResolved && (exc.Status == domain.StatusResolved || exc.Status == domain.StatusClosed) {
		return false
	}
	if !containsValue(f.InterfaceTypes, exc.InterfaceType) {
		return false
	}
	if !containsValue(f.Statuses, exc.Status) {
		return false
	}
	if !containsValue(f.Severities, exc.Severity) {
		return false
	}
	if !containsValue(f.CustomerIDs, exc.CustomerID) {
		return false
	}
	if !containsValue(f.LocationCodes, exc.LocationCode) {
		return false
	}
	if f.SearchTerm != "" {
		term := strings.ToLower(f.SearchTerm)
		if !strings.Contains(strings.ToLower(exc.ExceptionReason), term) &&
			!strings.Contains(strings.ToLower(exc.ExternalID), term) &&
			!strings.Contains(strings.ToLower(exc.TransactionID), term) {
			return false
		}
	}
	return true
}

func containsValue[T comparable](allowed []T, value T) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, v := range allowed {
		if v == value {
			return true
		}
	}
	return false
}
