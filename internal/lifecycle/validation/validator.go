package validation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mjones3/exception-collector/internal/core/domain"
	"github.com/mjones3/exception-collector/internal/infra/storage"
	"github.com/mjones3/exception-collector/internal/lifecycle/metrics"
)

// Operation names, also used as circuit breaker and cache keys.
const (
	OpRetry           = "retry"
	OpAcknowledge     = "acknowledge"
	OpResolve         = "resolve"
	OpCancelRetry     = "cancel-retry"
	OpBulkRetry       = "bulk-retry"
	OpBulkAcknowledge = "bulk-acknowledge"
	OpBulkResolve     = "bulk-resolve"
)

// Validator runs the validation pipeline for every mutating operation.
// Checks run in strict order (format, authorization, existence, business
// rules) and short-circuit category by category.
type Validator struct {
	exceptions storage.ExceptionRepository
	attempts   storage.AttemptRepository
	cache      Cache
}

// NewValidator creates a validator over the given repositories. A nil cache
// disables memoization.
func NewValidator(exceptions storage.ExceptionRepository, attempts storage.AttemptRepository, cache Cache) *Validator {
	if cache == nil {
		cache = NopCache{}
	}
	return &Validator{exceptions: exceptions, attempts: attempts, cache: cache}
}

// ValidateRetry checks a retry request end to end.
func (v *Validator) ValidateRetry(ctx context.Context, input RetryInput, caller domain.Caller) Result {
	errs := checkRetryFormat(input)
	errs = v.checkOperationRole(caller, OpRetry, errs)
	if len(errs) > 0 {
		return v.fail(OpRetry, input.TransactionID, errs)
	}

	if cached, ok := v.cache.Get(ctx, input.TransactionID, OpRetry); ok {
		metrics.ValidationCacheHits.WithLabelValues("hit").Inc()
		return cached
	}
	metrics.ValidationCacheHits.WithLabelValues("miss").Inc()

	exc, res, ok := v.lookup(ctx, OpRetry, input.TransactionID)
	if !ok {
		return res
	}

	errs = v.checkRetryRules(ctx, exc, errs)
	result := v.finish(OpRetry, input.TransactionID, errs)
	v.cache.Set(ctx, input.TransactionID, OpRetry, result, cacheTTLs[OpRetry])
	return result
}

// ValidateAcknowledge checks an acknowledge request. Re-acknowledging an
// already-ACKNOWLEDGED exception is accepted as an update so operators can
// reassign ownership.
func (v *Validator) ValidateAcknowledge(ctx context.Context, input AcknowledgeInput, caller domain.Caller) Result {
	errs := checkAcknowledgeFormat(input)
	errs = v.checkOperationRole(caller, OpAcknowledge, errs)
	if input.AssignedTo != "" && input.AssignedTo != caller.Username && !caller.IsAdmin() {
		errs = append(errs, Error{
			Code: CodeInsufficientPermissions, Field: "assignedTo",
			Message: "Only administrators may assign an exception to another user",
		})
	}
	if len(errs) > 0 {
		return v.fail(OpAcknowledge, input.TransactionID, errs)
	}

	if cached, ok := v.cache.Get(ctx, input.TransactionID, OpAcknowledge); ok {
		metrics.ValidationCacheHits.WithLabelValues("hit").Inc()
		return cached
	}
	metrics.ValidationCacheHits.WithLabelValues("miss").Inc()

	exc, res, ok := v.lookup(ctx, OpAcknowledge, input.TransactionID)
	if !ok {
		return res
	}

	switch exc.Status {
	case domain.StatusResolved:
		errs = append(errs, Error{
			Code:    CodeAlreadyResolved,
			Message: "Exception is already resolved and cannot be acknowledged",
		})
	case domain.StatusClosed:
		errs = append(errs, Error{
			Code:    CodeInvalidStatusTransition,
			Message: "Exception is closed and cannot be acknowledged",
		})
	}

	result := v.finish(OpAcknowledge, input.TransactionID, errs)
	v.cache.Set(ctx, input.TransactionID, OpAcknowledge, result, cacheTTLs[OpAcknowledge])
	return result
}

// ValidateResolve checks a resolve request, including the cross-field rule
// binding resolution method to the current status.
func (v *Validator) ValidateResolve(ctx context.Context, input ResolveInput, caller domain.Caller) Result {
	errs := checkResolveFormat(input)
	errs = v.checkOperationRole(caller, OpResolve, errs)
	if len(errs) > 0 {
		return v.fail(OpResolve, input.TransactionID, errs)
	}

	exc, res, ok := v.lookup(ctx, OpResolve, input.TransactionID)
	if !ok {
		return res
	}

	switch exc.Status {
	case domain.StatusResolved:
		errs = append(errs, Error{
			Code:    CodeAlreadyResolved,
			Message: "Exception is already resolved",
		})
	case domain.StatusClosed:
		errs = append(errs, Error{
			Code:    CodeInvalidStatusTransition,
			Message: "Exception is closed and cannot be resolved",
		})
	}

	// RETRY_SUCCESS is reserved for the automatic resolution path: it is
	// only valid when the latest retry actually succeeded.
	if input.ResolutionMethod == domain.ResolutionRetrySuccess && exc.Status != domain.StatusRetriedSuccess {
		errs = append(errs, Error{
			Code:    CodeInvalidResolutionMethod,
			Field:   "resolutionMethod",
			Message: fmt.Sprintf("Resolution method RETRY_SUCCESS is not valid for status %s", exc.Status),
		})
	}
	if input.ResolutionMethod != domain.ResolutionRetrySuccess && exc.Status == domain.StatusRetriedSuccess {
		errs = append(errs, Error{
			Code:    CodeInvalidResolutionMethod,
			Field:   "resolutionMethod",
			Message: "Exceptions in RETRIED_SUCCESS resolve via the RETRY_SUCCESS method",
		})
	}

	return v.finish(OpResolve, input.TransactionID, errs)
}

// ValidateCancelRetry checks a cancel-retry request. The exception must not
// be terminal and the latest attempt must exist and still be PENDING; any
// finalized attempt yields RETRY_ALREADY_COMPLETED.
func (v *Validator) ValidateCancelRetry(ctx context.Context, input CancelRetryInput, caller domain.Caller) Result {
	errs := checkCancelRetryFormat(input)
	errs = v.checkOperationRole(caller, OpCancelRetry, errs)
	if len(errs) > 0 {
		return v.fail(OpCancelRetry, input.TransactionID, errs)
	}

	exc, res, ok := v.lookup(ctx, OpCancelRetry, input.TransactionID)
	if !ok {
		return res
	}

	if exc.IsTerminal() {
		errs = append(errs, Error{
			Code:    CodeCancellationNotAllowed,
			Message: fmt.Sprintf("Exception status %s does not allow retry cancellation", exc.Status),
		})
		return v.fail(OpCancelRetry, input.TransactionID, errs)
	}

	attempt, err := v.attempts.FindLatest(ctx, exc.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNoAttempts) {
			errs = append(errs, Error{
				Code:    CodeNoPendingRetry,
				Message: "No retry attempts found for this exception",
			})
			return v.fail(OpCancelRetry, input.TransactionID, errs)
		}
		return v.storeFailure(OpCancelRetry, input.TransactionID, err)
	}

	switch attempt.Status {
	case domain.RetryPending:
		// cancellable
	case domain.RetrySuccess:
		errs = append(errs, Error{
			Code:    CodeRetryAlreadyCompleted,
			Message: "Retry has already completed successfully and cannot be cancelled",
		})
	case domain.RetryFailed:
		errs = append(errs, Error{
			Code:    CodeRetryAlreadyCompleted,
			Message: "Retry has already failed and cannot be cancelled",
		})
	default:
		errs = append(errs, Error{
			Code:    CodeRetryAlreadyCompleted,
			Message: fmt.Sprintf("Retry is already finalized: %s", attempt.Status),
		})
	}

	return v.finish(OpCancelRetry, input.TransactionID, errs)
}

// ValidateBulk checks the list-level constraints of a bulk request. Each item
// is still validated individually when the orchestrator processes it.
func (v *Validator) ValidateBulk(operation string, transactionIDs []string, caller domain.Caller) Result {
	var errs []Error
	errs = v.checkOperationRole(caller, operation, errs)
	errs = append(errs, checkBulkFormat(transactionIDs, caller)...)
	return v.finish(operation, "bulk", errs)
}

// checkRetryRules applies the retry eligibility rules against current state.
func (v *Validator) checkRetryRules(ctx context.Context, exc *domain.InterfaceException, errs []Error) []Error {
	if !exc.Retryable {
		errs = append(errs, Error{
			Code:    CodeNotRetryable,
			Message: "Exception is marked as not retryable",
		})
	}

	if exc.IsTerminal() {
		errs = append(errs, Error{
			Code:    CodeInvalidStatusTransition,
			Message: fmt.Sprintf("Exception cannot be retried due to status: %s", exc.Status),
		})
	}

	if exc.RetryCount >= exc.MaxRetries {
		errs = append(errs, Error{
			Code:    CodeRetryLimitExceeded,
			Message: fmt.Sprintf("Maximum retry count (%d) exceeded", exc.MaxRetries),
		})
	}

	attempt, err := v.attempts.FindLatest(ctx, exc.ID)
	if err != nil && !errors.Is(err, storage.ErrNoAttempts) {
		slog.Warn("Failed to check pending retry", "transactionID", exc.TransactionID, "error", err)
		return append(errs, Error{
			Code:    CodeDatabaseError,
			Message: "Unable to verify pending retry state",
		})
	}
	if err == nil && attempt.Status == domain.RetryPending {
		errs = append(errs, Error{
			Code:    CodePendingRetryExists,
			Message: "A retry operation is already pending for this exception",
		})
	}

	return errs
}

// checkOperationRole applies the shared ADMIN/OPERATIONS gate.
func (v *Validator) checkOperationRole(caller domain.Caller, operation string, errs []Error) []Error {
	if !caller.HasAnyRole(domain.RoleAdmin, domain.RoleOperations) {
		slog.Warn("Caller lacks permissions", "user", caller.Username, "operation", operation)
		errs = append(errs, Error{
			Code:    CodeInsufficientPermissions,
			Message: fmt.Sprintf("Insufficient permissions for %s operation", operation),
		})
	}
	return errs
}

// lookup fetches the subject exception; absence is terminal, no further
// checks run.
func (v *Validator) lookup(ctx context.Context, operation, transactionID string) (*domain.InterfaceException, Result, bool) {
	exc, err := v.exceptions.FindByTransactionID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			res := v.fail(operation, transactionID, []Error{{
				Code:    CodeExceptionNotFound,
				Message: fmt.Sprintf("No exception found for transaction: %s", transactionID),
			}})
			return nil, res, false
		}
		return nil, v.storeFailure(operation, transactionID, err), false
	}
	return exc, Result{}, true
}

func (v *Validator) storeFailure(operation, transactionID string, err error) Result {
	slog.Error("Validation store lookup failed", "operation", operation, "transactionID", transactionID, "error", err)
	return v.fail(operation, transactionID, []Error{{
		Code:    CodeDatabaseError,
		Message: "Unable to load exception state",
	}})
}

func (v *Validator) fail(operation, transactionID string, errs []Error) Result {
	for _, e := range errs {
		metrics.ValidationFailuresTotal.WithLabelValues(operation, string(e.Code)).Inc()
	}
	return Failure(operation, transactionID, errs)
}

func (v *Validator) finish(operation, transactionID string, errs []Error) Result {
	if len(errs) == 0 {
		return Success(operation, transactionID)
	}
	return v.fail(operation, transactionID, errs)
}

// InvalidateCache drops memoized results for a transaction after a mutation
// commits, so the next validation observes fresh state.
func (v *Validator) InvalidateCache(ctx context.Context, transactionID string) {
	v.cache.InvalidateTransaction(ctx, transactionID)
}
