package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mjones3/exception-collector/internal/core/domain"
)

// Validation limits, matching the upstream contract.
const (
	MaxReasonLength          = 500
	MaxNotesLength           = 1000
	MaxResolutionNotesLength = 2000
	MaxBulkSize              = 100
	MaxBulkSizeNonAdmin      = 10
)

var transactionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,50}$`)

func checkTransactionID(id string, field string, errs []Error) []Error {
	if strings.TrimSpace(id) == "" {
		return append(errs, Error{
			Code: CodeMissingRequiredField, Field: field,
			Message: "Transaction ID is required",
		})
	}
	if !transactionIDPattern.MatchString(id) {
		return append(errs, Error{
			Code: CodeInvalidTransactionID, Field: field,
			Message: "Transaction ID format is invalid",
		})
	}
	return errs
}

func checkReason(reason string, errs []Error) []Error {
	if strings.TrimSpace(reason) == "" {
		return append(errs, Error{
			Code: CodeMissingRequiredField, Field: "reason",
			Message: "Reason is required",
		})
	}
	if len(reason) > MaxReasonLength {
		return append(errs, Error{
			Code: CodeInvalidReasonLength, Field: "reason",
			Message: fmt.Sprintf("Reason exceeds maximum length of %d characters", MaxReasonLength),
		})
	}
	return errs
}

func checkNotes(notes, field string, maxLen int, errs []Error) []Error {
	if notes != "" && len(notes) > maxLen {
		return append(errs, Error{
			Code: CodeInvalidNotesLength, Field: field,
			Message: fmt.Sprintf("Notes exceed maximum length of %d characters", maxLen),
		})
	}
	return errs
}

func checkRetryFormat(input RetryInput) []Error {
	var errs []Error
	errs = checkTransactionID(input.TransactionID, "transactionId", errs)
	errs = checkReason(input.Reason, errs)
	if input.Priority != "" && !validPriorities[input.Priority] {
		errs = append(errs, Error{
			Code: CodeInvalidPriorityValue, Field: "priority",
			Message: "Invalid retry priority value",
		})
	}
	errs = checkNotes(input.Notes, "notes", MaxNotesLength, errs)
	return errs
}

func checkAcknowledgeFormat(input AcknowledgeInput) []Error {
	var errs []Error
	errs = checkTransactionID(input.TransactionID, "transactionId", errs)
	errs = checkReason(input.Reason, errs)
	errs = checkNotes(input.Notes, "notes", MaxNotesLength, errs)
	return errs
}

func checkResolveFormat(input ResolveInput) []Error {
	var errs []Error
	errs = checkTransactionID(input.TransactionID, "transactionId", errs)
	if input.ResolutionMethod == "" {
		errs = append(errs, Error{
			Code: CodeMissingRequiredField, Field: "resolutionMethod",
			Message: "Resolution method is required",
		})
	} else if !validResolutionMethods[input.ResolutionMethod] {
		errs = append(errs, Error{
			Code: CodeInvalidResolutionMethod, Field: "resolutionMethod",
			Message: "Invalid resolution method",
		})
	}
	errs = checkNotes(input.ResolutionNotes, "resolutionNotes", MaxResolutionNotesLength, errs)
	return errs
}

func checkCancelRetryFormat(input CancelRetryInput) []Error {
	var errs []Error
	errs = checkTransactionID(input.TransactionID, "transactionId", errs)
	if strings.TrimSpace(input.Reason) == "" {
		errs = append(errs, Error{
			Code: CodeMissingRequiredField, Field: "reason",
			Message: "Cancellation reason is required",
		})
	} else if len(input.Reason) > MaxReasonLength {
		errs = append(errs, Error{
			Code: CodeInvalidReasonLength, Field: "reason",
			Message: fmt.Sprintf("Reason exceeds maximum length of %d characters", MaxReasonLength),
		})
	}
	return errs
}

// checkBulkFormat validates the transaction ID list for bulk operations:
// non-empty, within the role-scaled size limit, no duplicates, and each ID
// individually well-formed with per-index error reporting.
func checkBulkFormat(transactionIDs []string, caller domain.Caller) []Error {
	var errs []Error

	if len(transactionIDs) == 0 {
		return append(errs, Error{
			Code: CodeMissingRequiredField, Field: "transactionIds",
			Message: "Transaction IDs list cannot be empty",
		})
	}

	maxSize := MaxBulkSizeNonAdmin
	if caller.IsAdmin() {
		maxSize = MaxBulkSize
	}
	if len(transactionIDs) > maxSize {
		return append(errs, Error{
			Code: CodeBulkSizeExceeded, Field: "transactionIds",
			Message: fmt.Sprintf("Bulk operation size exceeds maximum allowed limit of %d for your role", maxSize),
		})
	}

	seen := make(map[string]bool, len(transactionIDs))
	for _, id := range transactionIDs {
		if seen[id] {
			errs = append(errs, Error{
				Code: CodeInvalidFieldValue, Field: "transactionIds",
				Message: "Duplicate transaction IDs found in bulk operation",
			})
			break
		}
		seen[id] = true
	}

	for i, id := range transactionIDs {
		field := fmt.Sprintf("transactionIds[%d]", i)
		if strings.TrimSpace(id) == "" {
			errs = append(errs, Error{
				Code: CodeMissingRequiredField, Field: field,
				Message: fmt.Sprintf("Transaction ID at index %d is empty", i),
			})
		} else if !transactionIDPattern.MatchString(id) {
			errs = append(errs, Error{
				Code: CodeInvalidTransactionID, Field: field,
				Message: fmt.Sprintf("Transaction ID at index %d has invalid format", i),
			})
		}
	}

	return errs
}
