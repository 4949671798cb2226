package validation

import (
	"context"
	"time"
)

// Cache memoizes the existence/business-rule portion of validation, keyed by
// transaction ID and operation. Entries are advisory: they expire or are
// invalidated after mutations, and the orchestrator's commit-time version
// check remains the correctness gate.
type Cache interface {
	Get(ctx context.Context, transactionID, operation string) (Result, bool)
	Set(ctx context.Context, transactionID, operation string, result Result, ttl time.Duration)
	InvalidateTransaction(ctx context.Context, transactionID string)
}

// TTL per operation: retry and cancel-retry depend on fast-moving state
// (retry count, pending attempt) and get the shortest window.
var cacheTTLs = map[string]time.Duration{
	OpRetry:       1 * time.Minute,
	OpAcknowledge: 5 * time.Minute,
	OpResolve:     5 * time.Minute,
	OpCancelRetry: 1 * time.Minute,
}

// NopCache disables memoization. Used when no Redis is configured and in tests
// that assert against the authoritative store.
type NopCache struct{}

func (NopCache) Get(ctx context.Context, transactionID, operation string) (Result, bool) {
	return Result{}, false
}

func (NopCache) Set(ctx context.Context, transactionID, operation string, result Result, ttl time.Duration) {
}

func (NopCache) InvalidateTransaction(ctx context.Context, transactionID string) {}
