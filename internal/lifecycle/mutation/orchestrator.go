package mutation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mjones3/exception-collector/internal/core/domain"
	"github.com/mjones3/exception-collector/internal/infra/storage"
	"github.com/mjones3/exception-collector/internal/lifecycle/metrics"
	"github.com/mjones3/exception-collector/internal/lifecycle/validation"
)

// EventPublisher receives the events emitted after a mutation commits.
// Publish failures must never affect the mutation outcome.
type EventPublisher interface {
	PublishExceptionUpdate(event domain.ExceptionUpdateEvent)
	PublishRetryStatus(event domain.RetryStatusEvent)
	PublishMutationCompletion(event domain.MutationCompletionEvent)
	TriggerDashboardUpdate()
}

// Orchestrator executes validated operations against the store, applies the
// state transition under the optimistic-version guard, and publishes the
// resulting events. Validation is advisory; the version check at save time
// is the correctness gate.
type Orchestrator struct {
	exceptions storage.ExceptionRepository
	attempts   storage.AttemptRepository
	validator  *validation.Validator
	publisher  EventPublisher
	policies   map[string]*Policy
}

// NewOrchestrator wires the orchestrator with one transient-fault policy per
// logical operation name. Breaker state is process-wide per name.
func NewOrchestrator(
	exceptions storage.ExceptionRepository,
	attempts storage.AttemptRepository,
	validator *validation.Validator,
	publisher EventPublisher,
	cfg PolicyConfig,
) *Orchestrator {
	// Bulk operations fan out to the single-item entry points, so only
	// those carry a policy.
	names := []string{
		validation.OpRetry, validation.OpAcknowledge, validation.OpResolve,
		validation.OpCancelRetry,
	}
	policies := make(map[string]*Policy, len(names))
	for _, name := range names {
		policies[name] = NewPolicy(name, cfg)
	}
	return &Orchestrator{
		exceptions: exceptions,
		attempts:   attempts,
		validator:  validator,
		publisher:  publisher,
		policies:   policies,
	}
}

// Retry initiates a business retry: increments the retry count, creates a
// PENDING attempt with the next attempt number, and leaves the exception
// status unchanged until the asynchronous retry completes.
func (o *Orchestrator) Retry(ctx context.Context, input validation.RetryInput, caller domain.Caller) Outcome {
	op := validation.OpRetry
	defer o.observe(op, time.Now())

	if res := o.validator.ValidateRetry(ctx, input, caller); !res.Valid {
		return o.rejected(op, input.TransactionID, res.Errors)
	}

	var exc *domain.InterfaceException
	var attempt *domain.RetryAttempt

	err := o.policies[op].Execute(ctx, func(ctx context.Context) error {
		var err error
		exc, err = o.exceptions.FindByTransactionID(ctx, input.TransactionID)
		if err != nil {
			return err
		}
		if exc.IsTerminal() {
			return storage.ErrVersionConflict
		}

		next := 1
		if latest, err := o.attempts.FindLatest(ctx, exc.ID); err == nil {
			next = latest.AttemptNumber + 1
		} else if !errors.Is(err, storage.ErrNoAttempts) {
			return err
		}

		// The attempt insert carries the commit-time single-pending-retry
		// guard; of two racing retries only one create succeeds.
		attempt = &domain.RetryAttempt{
			ExceptionID:   exc.ID,
			AttemptNumber: next,
			Status:        domain.RetryPending,
			InitiatedBy:   caller.Username,
			InitiatedAt:   time.Now(),
		}
		if err := o.attempts.Create(ctx, attempt); err != nil {
			return err
		}

		expected := exc.Version
		now := time.Now()
		exc.RetryCount++
		exc.LastRetryAt = &now
		if err := o.exceptions.SaveWithVersion(ctx, exc, expected); err != nil {
			// The attempt row exists but the counter update lost the
			// version race; cancel the orphan so the invariant holds.
			if cerr := o.attempts.Complete(ctx, attempt.ID, domain.RetryCancelled, false, "superseded by concurrent modification"); cerr != nil {
				slog.Error("Failed to cancel orphaned retry attempt", "transactionID", exc.TransactionID, "error", cerr)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return o.failed(op, input.TransactionID, err)
	}

	o.validator.InvalidateCache(ctx, input.TransactionID)

	snapshot := exc.Snapshot()
	attemptSnap := attempt.Snapshot()
	now := time.Now()
	correlationID := uuid.NewString()

	o.publisher.PublishExceptionUpdate(domain.ExceptionUpdateEvent{
		Type:        domain.EventRetryInitiated,
		Exception:   snapshot,
		Timestamp:   now,
		TriggeredBy: caller.Username,
	})
	o.publisher.PublishRetryStatus(domain.RetryStatusEvent{
		TransactionID: exc.TransactionID,
		Attempt:       attemptSnap,
		Type:          domain.RetryEventInitiated,
		Timestamp:     now,
	})
	o.publisher.PublishMutationCompletion(domain.MutationCompletionEvent{
		MutationType:  domain.MutationRetry,
		TransactionID: exc.TransactionID,
		Success:       true,
		PerformedBy:   caller.Username,
		Timestamp:     now,
		Message:       fmt.Sprintf("Retry attempt %d initiated", attempt.AttemptNumber),
		CorrelationID: correlationID,
	})
	o.publisher.TriggerDashboardUpdate()

	metrics.MutationsTotal.WithLabelValues(op, "success").Inc()
	return Outcome{
		Operation:     op,
		TransactionID: exc.TransactionID,
		Success:       true,
		Exception:     &snapshot,
		Attempt:       &attemptSnap,
		CorrelationID: correlationID,
	}
}

// Acknowledge marks an exception as acknowledged. Re-acknowledging an
// already-ACKNOWLEDGED exception updates the assignment instead of failing.
func (o *Orchestrator) Acknowledge(ctx context.Context, input validation.AcknowledgeInput, caller domain.Caller) Outcome {
	op := validation.OpAcknowledge
	defer o.observe(op, time.Now())

	if res := o.validator.ValidateAcknowledge(ctx, input, caller); !res.Valid {
		return o.rejected(op, input.TransactionID, res.Errors)
	}

	acknowledgedBy := caller.Username
	if input.AssignedTo != "" {
		acknowledgedBy = input.AssignedTo
	}

	var exc *domain.InterfaceException
	err := o.policies[op].Execute(ctx, func(ctx context.Context) error {
		var err error
		exc, err = o.exceptions.FindByTransactionID(ctx, input.TransactionID)
		if err != nil {
			return err
		}
		if exc.IsTerminal() {
			// State moved under us since validation; surface it as a
			// conflict so the caller refetches.
			return storage.ErrVersionConflict
		}

		expected := exc.Version
		now := time.Now()
		exc.Status = domain.StatusAcknowledged
		exc.AcknowledgedBy = acknowledgedBy
		exc.AcknowledgedAt = &now
		return o.exceptions.SaveWithVersion(ctx, exc, expected)
	})
	if err != nil {
		return o.failed(op, input.TransactionID, err)
	}

	o.validator.InvalidateCache(ctx, input.TransactionID)
	return o.completed(op, domain.MutationAcknowledge, domain.EventAcknowledged, exc, caller,
		fmt.Sprintf("Exception acknowledged by %s", acknowledgedBy))
}

// Resolve transitions an exception to RESOLVED with the given method.
func (o *Orchestrator) Resolve(ctx context.Context, input validation.ResolveInput, caller domain.Caller) Outcome {
	op := validation.OpResolve
	defer o.observe(op, time.Now())

	if res := o.validator.ValidateResolve(ctx, input, caller); !res.Valid {
		return o.rejected(op, input.TransactionID, res.Errors)
	}

	var exc *domain.InterfaceException
	err := o.policies[op].Execute(ctx, func(ctx context.Context) error {
		var err error
		exc, err = o.exceptions.FindByTransactionID(ctx, input.TransactionID)
		if err != nil {
			return err
		}
		if exc.IsTerminal() {
			return storage.ErrVersionConflict
		}

		expected := exc.Version
		now := time.Now()
		exc.Status = domain.StatusResolved
		exc.ResolvedBy = caller.Username
		exc.ResolvedAt = &now
		exc.ResolutionMethod = input.ResolutionMethod
		exc.ResolutionNotes = input.ResolutionNotes
		return o.exceptions.SaveWithVersion(ctx, exc, expected)
	})
	if err != nil {
		return o.failed(op, input.TransactionID, err)
	}

	o.validator.InvalidateCache(ctx, input.TransactionID)
	return o.completed(op, domain.MutationResolve, domain.EventResolved, exc, caller,
		fmt.Sprintf("Exception resolved via %s", input.ResolutionMethod))
}

// CancelRetry cancels the PENDING retry attempt of an exception. The
// exception row itself is untouched; the attempt's status guard makes a
// second cancel lose cleanly.
func (o *Orchestrator) CancelRetry(ctx context.Context, input validation.CancelRetryInput, caller domain.Caller) Outcome {
	op := validation.OpCancelRetry
	defer o.observe(op, time.Now())

	if res := o.validator.ValidateCancelRetry(ctx, input, caller); !res.Valid {
		return o.rejected(op, input.TransactionID, res.Errors)
	}

	var exc *domain.InterfaceException
	var attempt *domain.RetryAttempt
	err := o.policies[op].Execute(ctx, func(ctx context.Context) error {
		var err error
		exc, err = o.exceptions.FindByTransactionID(ctx, input.TransactionID)
		if err != nil {
			return err
		}
		attempt, err = o.attempts.FindLatest(ctx, exc.ID)
		if err != nil {
			return err
		}
		if attempt.Status != domain.RetryPending {
			return storage.ErrNotFound
		}
		if err := o.attempts.Complete(ctx, attempt.ID, domain.RetryCancelled, false, input.Reason); err != nil {
			return err
		}
		attempt.Status = domain.RetryCancelled
		now := time.Now()
		attempt.CompletedAt = &now
		return nil
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrNoAttempts) {
			return o.rejected(op, input.TransactionID, []validation.Error{{
				Code:    validation.CodeNoPendingRetry,
				Message: "No pending retry found to cancel",
			}})
		}
		return o.failed(op, input.TransactionID, err)
	}

	o.validator.InvalidateCache(ctx, input.TransactionID)

	snapshot := exc.Snapshot()
	attemptSnap := attempt.Snapshot()
	now := time.Now()
	correlationID := uuid.NewString()

	o.publisher.PublishRetryStatus(domain.RetryStatusEvent{
		TransactionID: exc.TransactionID,
		Attempt:       attemptSnap,
		Type:          domain.RetryEventCancelled,
		Timestamp:     now,
	})
	o.publisher.PublishMutationCompletion(domain.MutationCompletionEvent{
		MutationType:  domain.MutationCancelRetry,
		TransactionID: exc.TransactionID,
		Success:       true,
		PerformedBy:   caller.Username,
		Timestamp:     now,
		Message:       fmt.Sprintf("Retry attempt %d cancelled", attempt.AttemptNumber),
		CorrelationID: correlationID,
	})
	o.publisher.TriggerDashboardUpdate()

	metrics.MutationsTotal.WithLabelValues(op, "success").Inc()
	return Outcome{
		Operation:     op,
		TransactionID: exc.TransactionID,
		Success:       true,
		Exception:     &snapshot,
		Attempt:       &attemptSnap,
		CorrelationID: correlationID,
	}
}

// CompleteRetry closes the PENDING attempt of an exception with the outcome
// of the asynchronous retry execution and moves the exception status to
// RETRIED_SUCCESS or RETRIED_FAILED.
func (o *Orchestrator) CompleteRetry(ctx context.Context, transactionID string, success bool, message string) Outcome {
	op := "complete-retry"
	defer o.observe(op, time.Now())

	exc, err := o.exceptions.FindByTransactionID(ctx, transactionID)
	if err != nil {
		return o.failed(op, transactionID, err)
	}
	attempt, err := o.attempts.FindLatest(ctx, exc.ID)
	if err != nil {
		return o.failed(op, transactionID, err)
	}
	if attempt.Status != domain.RetryPending {
		return o.rejected(op, transactionID, []validation.Error{{
			Code:    validation.CodeRetryAlreadyCompleted,
			Message: "Latest retry attempt is no longer pending",
		}})
	}

	attemptStatus := domain.RetryFailed
	excStatus := domain.StatusRetriedFailed
	eventType := domain.RetryEventFailed
	if success {
		attemptStatus = domain.RetrySuccess
		excStatus = domain.StatusRetriedSuccess
		eventType = domain.RetryEventCompleted
	}

	if err := o.attempts.Complete(ctx, attempt.ID, attemptStatus, success, message); err != nil {
		return o.failed(op, transactionID, err)
	}
	attempt.Status = attemptStatus
	now := time.Now()
	attempt.CompletedAt = &now

	expected := exc.Version
	exc.Status = excStatus
	if err := o.exceptions.SaveWithVersion(ctx, exc, expected); err != nil {
		return o.failed(op, transactionID, err)
	}

	o.validator.InvalidateCache(ctx, transactionID)

	snapshot := exc.Snapshot()
	attemptSnap := attempt.Snapshot()

	o.publisher.PublishExceptionUpdate(domain.ExceptionUpdateEvent{
		Type:        domain.EventRetryCompleted,
		Exception:   snapshot,
		Timestamp:   now,
		TriggeredBy: attempt.InitiatedBy,
	})
	o.publisher.PublishRetryStatus(domain.RetryStatusEvent{
		TransactionID: exc.TransactionID,
		Attempt:       attemptSnap,
		Type:          eventType,
		Timestamp:     now,
	})
	o.publisher.TriggerDashboardUpdate()

	metrics.MutationsTotal.WithLabelValues(op, "success").Inc()
	return Outcome{
		Operation:     op,
		TransactionID: transactionID,
		Success:       true,
		Exception:     &snapshot,
		Attempt:       &attemptSnap,
	}
}

// completed publishes the standard event pair for a committed single
// mutation and builds its outcome.
func (o *Orchestrator) completed(
	op string,
	mutationType domain.MutationType,
	eventType domain.ExceptionEventType,
	exc *domain.InterfaceException,
	caller domain.Caller,
	message string,
) Outcome {
	snapshot := exc.Snapshot()
	now := time.Now()
	correlationID := uuid.NewString()

	o.publisher.PublishExceptionUpdate(domain.ExceptionUpdateEvent{
		Type:        eventType,
		Exception:   snapshot,
		Timestamp:   now,
		TriggeredBy: caller.Username,
	})
	o.publisher.PublishMutationCompletion(domain.MutationCompletionEvent{
		MutationType:  mutationType,
		TransactionID: exc.TransactionID,
		Success:       true,
		PerformedBy:   caller.Username,
		Timestamp:     now,
		Message:       message,
		CorrelationID: correlationID,
	})
	o.publisher.TriggerDashboardUpdate()

	metrics.MutationsTotal.WithLabelValues(op, "success").Inc()
	return Outcome{
		Operation:     op,
		TransactionID: exc.TransactionID,
		Success:       true,
		Exception:     &snapshot,
		CorrelationID: correlationID,
	}
}

// rejected builds a failure outcome from validation or business errors.
// No event is published for a rejected mutation.
func (o *Orchestrator) rejected(op, transactionID string, errs []validation.Error) Outcome {
	metrics.MutationsTotal.WithLabelValues(op, "rejected").Inc()
	return Outcome{
		Operation:     op,
		TransactionID: transactionID,
		Success:       false,
		Errors:        errs,
	}
}

// failed maps a store or policy error to the structured outcome taxonomy.
func (o *Orchestrator) failed(op, transactionID string, err error) Outcome {
	metrics.MutationsTotal.WithLabelValues(op, "failed").Inc()

	var verr validation.Error
	switch {
	case errors.Is(err, storage.ErrVersionConflict):
		verr = validation.Error{
			Code:    validation.CodeConcurrentModification,
			Message: "Exception was modified concurrently; refetch and resubmit",
		}
	case errors.Is(err, storage.ErrPendingAttemptExists):
		verr = validation.Error{
			Code:    validation.CodePendingRetryExists,
			Message: "A retry operation is already pending for this exception",
		}
	case errors.Is(err, storage.ErrNotFound):
		verr = validation.Error{
			Code:    validation.CodeExceptionNotFound,
			Message: fmt.Sprintf("No exception found for transaction: %s", transactionID),
		}
	case errors.Is(err, ErrBreakerOpen), errors.Is(err, context.DeadlineExceeded):
		verr = validation.Error{
			Code:    validation.CodeServiceUnavailable,
			Message: "Operation temporarily unavailable; try again later",
		}
	default:
		slog.Error("Mutation failed", "operation", op, "transactionID", transactionID, "error", err)
		verr = validation.Error{
			Code:    validation.CodeServiceUnavailable,
			Message: "Operation failed due to a downstream fault",
		}
	}

	return Outcome{
		Operation:     op,
		TransactionID: transactionID,
		Success:       false,
		Errors:        []validation.Error{verr},
	}
}

func (o *Orchestrator) observe(op string, start time.Time) {
	metrics.MutationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
