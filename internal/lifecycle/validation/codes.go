package validation

// Code is a stable error code callers can branch on without string matching.
type Code string

const (
	// Format errors
	CodeMissingRequiredField    Code = "MISSING_REQUIRED_FIELD"
	CodeInvalidTransactionID    Code = "INVALID_TRANSACTION_ID"
	CodeInvalidReasonLength     Code = "INVALID_REASON_LENGTH"
	CodeInvalidNotesLength      Code = "INVALID_NOTES_LENGTH"
	CodeInvalidPriorityValue    Code = "INVALID_PRIORITY_VALUE"
	CodeInvalidResolutionMethod Code = "INVALID_RESOLUTION_METHOD"
	CodeInvalidFieldValue       Code = "INVALID_FIELD_VALUE"

	// Authorization errors
	CodeInsufficientPermissions Code = "INSUFFICIENT_PERMISSIONS"
	CodeBulkSizeExceeded        Code = "BULK_SIZE_EXCEEDED"

	// Existence errors
	CodeExceptionNotFound Code = "EXCEPTION_NOT_FOUND"

	// Business rule errors
	CodeNotRetryable            Code = "NOT_RETRYABLE"
	CodeRetryLimitExceeded      Code = "RETRY_LIMIT_EXCEEDED"
	CodePendingRetryExists      Code = "PENDING_RETRY_EXISTS"
	CodeNoPendingRetry          Code = "NO_PENDING_RETRY"
	CodeRetryAlreadyCompleted   Code = "RETRY_ALREADY_COMPLETED"
	CodeCancellationNotAllowed  Code = "CANCELLATION_NOT_ALLOWED"
	CodeAlreadyResolved         Code = "ALREADY_RESOLVED"
	CodeAlreadyAcknowledged     Code = "ALREADY_ACKNOWLEDGED"
	CodeInvalidStatusTransition Code = "INVALID_STATUS_TRANSITION"

	// Concurrency errors
	CodeConcurrentModification Code = "CONCURRENT_MODIFICATION"

	// Infrastructure errors
	CodeServiceUnavailable Code = "SERVICE_UNAVAILABLE"
	CodeDatabaseError      Code = "DATABASE_ERROR"
)

// Category groups codes by the caller action they require.
type Category string

const (
	CategoryValidation     Category = "VALIDATION"
	CategoryAuthorization  Category = "AUTHORIZATION"
	CategoryBusinessRule   Category = "BUSINESS_RULE"
	CategoryConcurrency    Category = "CONCURRENCY"
	CategoryInfrastructure Category = "INFRASTRUCTURE"
)

var codeCategories = map[Code]Category{
	CodeMissingRequiredField:    CategoryValidation,
	CodeInvalidTransactionID:    CategoryValidation,
	CodeInvalidReasonLength:     CategoryValidation,
	CodeInvalidNotesLength:      CategoryValidation,
	CodeInvalidPriorityValue:    CategoryValidation,
	CodeInvalidResolutionMethod: CategoryValidation,
	CodeInvalidFieldValue:       CategoryValidation,

	CodeInsufficientPermissions: CategoryAuthorization,
	CodeBulkSizeExceeded:        CategoryAuthorization,

	CodeExceptionNotFound: CategoryBusinessRule,

	CodeNotRetryable:            CategoryBusinessRule,
	CodeRetryLimitExceeded:      CategoryBusinessRule,
	CodePendingRetryExists:      CategoryBusinessRule,
	CodeNoPendingRetry:          CategoryBusinessRule,
	CodeRetryAlreadyCompleted:   CategoryBusinessRule,
	CodeCancellationNotAllowed:  CategoryBusinessRule,
	CodeAlreadyResolved:         CategoryBusinessRule,
	CodeAlreadyAcknowledged:     CategoryBusinessRule,
	CodeInvalidStatusTransition: CategoryBusinessRule,

	CodeConcurrentModification: CategoryConcurrency,

	CodeServiceUnavailable: CategoryInfrastructure,
	CodeDatabaseError:      CategoryInfrastructure,
}

// CategoryOf returns the category for a code, defaulting to VALIDATION.
func CategoryOf(code Code) Category {
	if cat, ok := codeCategories[code]; ok {
		return cat
	}
	return CategoryValidation
}
