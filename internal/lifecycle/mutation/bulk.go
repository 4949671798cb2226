package mutation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mjones3/exception-collector/internal/core/domain"
	"github.com/mjones3/exception-collector/internal/lifecycle/metrics"
	"github.com/mjones3/exception-collector/internal/lifecycle/validation"
)

// BulkRetry initiates retries for a list of transactions. The list itself is
// validated up front; per-item processing is sequential and independent, so
// one failing item never rolls back the others.
func (o *Orchestrator) BulkRetry(ctx context.Context, transactionIDs []string, reason string, priority validation.RetryPriority, caller domain.Caller) BulkOutcome {
	op := validation.OpBulkRetry
	if res := o.validator.ValidateBulk(op, transactionIDs, caller); !res.Valid {
		return o.bulkRejected(op, transactionIDs, res.Errors)
	}
	return o.runBulk(ctx, op, domain.MutationBulkRetry, transactionIDs, caller, func(ctx context.Context, id string) Outcome {
		return o.Retry(ctx, validation.RetryInput{
			TransactionID: id,
			Reason:        reason,
			Priority:      priority,
		}, caller)
	})
}

// BulkAcknowledge acknowledges a list of transactions with a shared reason.
func (o *Orchestrator) BulkAcknowledge(ctx context.Context, transactionIDs []string, reason string, caller domain.Caller) BulkOutcome {
	op := validation.OpBulkAcknowledge
	if res := o.validator.ValidateBulk(op, transactionIDs, caller); !res.Valid {
		return o.bulkRejected(op, transactionIDs, res.Errors)
	}
	return o.runBulk(ctx, op, domain.MutationBulkAcknowledge, transactionIDs, caller, func(ctx context.Context, id string) Outcome {
		return o.Acknowledge(ctx, validation.AcknowledgeInput{
			TransactionID: id,
			Reason:        reason,
		}, caller)
	})
}

// BulkResolve resolves a list of transactions with a shared method and notes.
func (o *Orchestrator) BulkResolve(ctx context.Context, transactionIDs []string, method domain.ResolutionMethod, notes string, caller domain.Caller) BulkOutcome {
	op := validation.OpBulkResolve
	if res := o.validator.ValidateBulk(op, transactionIDs, caller); !res.Valid {
		return o.bulkRejected(op, transactionIDs, res.Errors)
	}
	return o.runBulk(ctx, op, domain.MutationBulkResolve, transactionIDs, caller, func(ctx context.Context, id string) Outcome {
		return o.Resolve(ctx, validation.ResolveInput{
			TransactionID:    id,
			ResolutionMethod: method,
			ResolutionNotes:  notes,
		}, caller)
	})
}

func (o *Orchestrator) runBulk(
	ctx context.Context,
	op string,
	mutationType domain.MutationType,
	transactionIDs []string,
	caller domain.Caller,
	apply func(ctx context.Context, transactionID string) Outcome,
) BulkOutcome {
	defer o.observe(op, time.Now())

	correlationID := uuid.NewString()
	out := BulkOutcome{
		Operation:     op,
		Items:         make([]Outcome, 0, len(transactionIDs)),
		CorrelationID: correlationID,
	}
	for _, id := range transactionIDs {
		item := apply(ctx, id)
		if item.Success {
			out.SuccessCount++
		} else {
			out.FailureCount++
		}
		out.Items = append(out.Items, item)
	}

	o.publisher.PublishMutationCompletion(domain.MutationCompletionEvent{
		MutationType:  mutationType,
		Success:       out.FailureCount == 0,
		PerformedBy:   caller.Username,
		Timestamp:     time.Now(),
		Message:       fmt.Sprintf("Bulk operation completed: %d succeeded, %d failed", out.SuccessCount, out.FailureCount),
		CorrelationID: correlationID,
	})
	o.publisher.TriggerDashboardUpdate()

	result := "success"
	if out.FailureCount > 0 {
		result = "partial"
	}
	metrics.MutationsTotal.WithLabelValues(op, result).Inc()
	return out
}

// bulkRejected surfaces a list-level validation failure on the outcome
// itself and as one failed item per transaction so callers always get
// positional results. An empty list still carries the top-level errors.
func (o *Orchestrator) bulkRejected(op string, transactionIDs []string, errs []validation.Error) BulkOutcome {
	metrics.MutationsTotal.WithLabelValues(op, "rejected").Inc()
	out := BulkOutcome{
		Operation:    op,
		FailureCount: len(transactionIDs),
		Errors:       errs,
		Items:        make([]Outcome, 0, len(transactionIDs)),
	}
	for _, id := range transactionIDs {
		out.Items = append(out.Items, Outcome{
			Operation:     op,
			TransactionID: id,
			Success:       false,
			Errors:        errs,
		})
	}
	return out
}
