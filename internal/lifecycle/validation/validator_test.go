package validation

import (
	"context"
	"testing"
	"time"

	"github.com/mjones3/exception-collector/internal/core/domain"
	"github.com/mjones3/exception-collector/internal/infra/storage/memory"
)

var (
	opsCaller    = domain.Caller{Username: "ops", Roles: []domain.Role{domain.RoleOperations}}
	adminCaller  = domain.Caller{Username: "admin", Roles: []domain.Role{domain.RoleAdmin}}
	viewerCaller = domain.Caller{Username: "viewer", Roles: []domain.Role{domain.RoleViewer}}
)

func newTestValidator(t *testing.T) (*Validator, *memory.ExceptionRepo, *memory.AttemptRepo) {
	t.Helper()
	store := memory.NewMemoryStorage()
	excRepo := memory.NewExceptionRepo(store)
	attRepo := memory.NewAttemptRepo(store)
	return NewValidator(excRepo, attRepo, nil), excRepo, attRepo
}

func seedException(t *testing.T, repo *memory.ExceptionRepo, exc domain.InterfaceException) *domain.InterfaceException {
	t.Helper()
	if exc.MaxRetries == 0 {
		exc.MaxRetries = 5
	}
	if err := repo.Create(context.Background(), &exc); err != nil {
		t.Fatalf("seed exception: %v", err)
	}
	return &exc
}

func TestValidateRetry_BusinessRules(t *testing.T) {
	tests := []struct {
		name     string
		exc      domain.InterfaceException
		wantCode Code
	}{
		{
			name:     "eligible",
			exc:      domain.InterfaceException{TransactionID: "TXN-1", Status: domain.StatusNew, Retryable: true},
			wantCode: "",
		},
		{
			name:     "not retryable",
			exc:      domain.InterfaceException{TransactionID: "TXN-1", Status: domain.StatusNew, Retryable: false},
			wantCode: CodeNotRetryable,
		},
		{
			name:     "resolved",
			exc:      domain.InterfaceException{TransactionID: "TXN-1", Status: domain.StatusResolved, Retryable: true},
			wantCode: CodeInvalidStatusTransition,
		},
		{
			name:     "closed",
			exc:      domain.InterfaceException{TransactionID: "TXN-1", Status: domain.StatusClosed, Retryable: true},
			wantCode: CodeInvalidStatusTransition,
		},
		{
			name: "retry limit reached",
			exc: domain.InterfaceException{
				TransactionID: "TXN-1", Status: domain.StatusRetriedFailed,
				Retryable: true, RetryCount: 5, MaxRetries: 5,
			},
			wantCode: CodeRetryLimitExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, excRepo, _ := newTestValidator(t)
			seedException(t, excRepo, tt.exc)

			input := RetryInput{TransactionID: "TXN-1", Reason: "retry after fix"}
			res := v.ValidateRetry(context.Background(), input, opsCaller)

			if tt.wantCode == "" {
				if !res.Valid {
					t.Errorf("expected valid, got %v", res.Errors)
				}
				return
			}
			if res.Valid {
				t.Fatal("expected invalid result")
			}
			if !res.HasCode(tt.wantCode) {
				t.Errorf("expected code %s, got %v", tt.wantCode, res.Errors)
			}
		})
	}
}

func TestValidateRetry_PendingAttempt(t *testing.T) {
	v, excRepo, attRepo := newTestValidator(t)
	exc := seedException(t, excRepo, domain.InterfaceException{
		TransactionID: "TXN-1", Status: domain.StatusNew, Retryable: true,
	})

	attempt := &domain.RetryAttempt{
		ExceptionID: exc.ID, AttemptNumber: 1,
		Status: domain.RetryPending, InitiatedBy: "ops", InitiatedAt: time.Now(),
	}
	if err := attRepo.Create(context.Background(), attempt); err != nil {
		t.Fatalf("create attempt: %v", err)
	}

	res := v.ValidateRetry(context.Background(), RetryInput{TransactionID: "TXN-1", Reason: "again"}, opsCaller)
	if res.Valid {
		t.Fatal("expected invalid result")
	}
	if !res.HasCode(CodePendingRetryExists) {
		t.Errorf("expected PENDING_RETRY_EXISTS, got %v", res.Errors)
	}
}

func TestValidateRetry_NotFound(t *testing.T) {
	v, _, _ := newTestValidator(t)

	res := v.ValidateRetry(context.Background(), RetryInput{TransactionID: "TXN-404", Reason: "x"}, opsCaller)
	if res.Valid {
		t.Fatal("expected invalid result")
	}
	if !res.HasCode(CodeExceptionNotFound) {
		t.Errorf("expected EXCEPTION_NOT_FOUND, got %v", res.Errors)
	}
}

func TestValidateRetry_RoleGate(t *testing.T) {
	v, excRepo, _ := newTestValidator(t)
	seedException(t, excRepo, domain.InterfaceException{
		TransactionID: "TXN-1", Status: domain.StatusNew, Retryable: true,
	})

	res := v.ValidateRetry(context.Background(), RetryInput{TransactionID: "TXN-1", Reason: "x"}, viewerCaller)
	if res.Valid {
		t.Fatal("expected invalid result for viewer")
	}
	if !res.HasCode(CodeInsufficientPermissions) {
		t.Errorf("expected INSUFFICIENT_PERMISSIONS, got %v", res.Errors)
	}
}

func TestValidateAcknowledge_StatusRules(t *testing.T) {
	tests := []struct {
		name     string
		status   domain.ExceptionStatus
		wantCode Code
	}{
		{"new", domain.StatusNew, ""},
		{"re-acknowledge allowed", domain.StatusAcknowledged, ""},
		{"resolved", domain.StatusResolved, CodeAlreadyResolved},
		{"closed", domain.StatusClosed, CodeInvalidStatusTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, excRepo, _ := newTestValidator(t)
			seedException(t, excRepo, domain.InterfaceException{TransactionID: "TXN-1", Status: tt.status})

			input := AcknowledgeInput{TransactionID: "TXN-1", Reason: "looking into it"}
			res := v.ValidateAcknowledge(context.Background(), input, opsCaller)

			if tt.wantCode == "" {
				if !res.Valid {
					t.Errorf("expected valid, got %v", res.Errors)
				}
				return
			}
			if !res.HasCode(tt.wantCode) {
				t.Errorf("expected code %s, got %v", tt.wantCode, res.Errors)
			}
		})
	}
}

func TestValidateAcknowledge_AssignmentPermissions(t *testing.T) {
	tests := []struct {
		name       string
		caller     domain.Caller
		assignedTo string
		wantValid  bool
	}{
		{"self assignment", opsCaller, "ops", true},
		{"no assignment", opsCaller, "", true},
		{"non-admin assigns other", opsCaller, "someone-else", false},
		{"admin assigns other", adminCaller, "someone-else", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, excRepo, _ := newTestValidator(t)
			seedException(t, excRepo, domain.InterfaceException{TransactionID: "TXN-1", Status: domain.StatusNew})

			input := AcknowledgeInput{TransactionID: "TXN-1", Reason: "triage", AssignedTo: tt.assignedTo}
			res := v.ValidateAcknowledge(context.Background(), input, tt.caller)

			if res.Valid != tt.wantValid {
				t.Errorf("Valid = %v, want %v (errors: %v)", res.Valid, tt.wantValid, res.Errors)
			}
			if !tt.wantValid && !res.HasCode(CodeInsufficientPermissions) {
				t.Errorf("expected INSUFFICIENT_PERMISSIONS, got %v", res.Errors)
			}
		})
	}
}

func TestValidateResolve_MethodStatusCrossField(t *testing.T) {
	tests := []struct {
		name     string
		status   domain.ExceptionStatus
		method   domain.ResolutionMethod
		wantCode Code
	}{
		{"manual from acknowledged", domain.StatusAcknowledged, domain.ResolutionManual, ""},
		{"retry success from retried success", domain.StatusRetriedSuccess, domain.ResolutionRetrySuccess, ""},
		{"retry success from new", domain.StatusNew, domain.ResolutionRetrySuccess, CodeInvalidResolutionMethod},
		{"manual from retried success", domain.StatusRetriedSuccess, domain.ResolutionManual, CodeInvalidResolutionMethod},
		{"already resolved", domain.StatusResolved, domain.ResolutionManual, CodeAlreadyResolved},
		{"closed", domain.StatusClosed, domain.ResolutionManual, CodeInvalidStatusTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, excRepo, _ := newTestValidator(t)
			seedException(t, excRepo, domain.InterfaceException{TransactionID: "TXN-1", Status: tt.status})

			input := ResolveInput{TransactionID: "TXN-1", ResolutionMethod: tt.method}
			res := v.ValidateResolve(context.Background(), input, opsCaller)

			if tt.wantCode == "" {
				if !res.Valid {
					t.Errorf("expected valid, got %v", res.Errors)
				}
				return
			}
			if !res.HasCode(tt.wantCode) {
				t.Errorf("expected code %s, got %v", tt.wantCode, res.Errors)
			}
		})
	}
}

func TestValidateCancelRetry_AttemptStates(t *testing.T) {
	tests := []struct {
		name     string
		status   domain.RetryStatus
		wantCode Code
	}{
		{"pending cancellable", domain.RetryPending, ""},
		{"already succeeded", domain.RetrySuccess, CodeRetryAlreadyCompleted},
		{"already failed", domain.RetryFailed, CodeRetryAlreadyCompleted},
		{"already cancelled", domain.RetryCancelled, CodeRetryAlreadyCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, excRepo, attRepo := newTestValidator(t)
			exc := seedException(t, excRepo, domain.InterfaceException{TransactionID: "TXN-1", Status: domain.StatusNew})

			attempt := &domain.RetryAttempt{
				ExceptionID: exc.ID, AttemptNumber: 1,
				Status: domain.RetryPending, InitiatedBy: "ops", InitiatedAt: time.Now(),
			}
			if err := attRepo.Create(context.Background(), attempt); err != nil {
				t.Fatalf("create attempt: %v", err)
			}
			if tt.status != domain.RetryPending {
				success := tt.status == domain.RetrySuccess
				if err := attRepo.Complete(context.Background(), attempt.ID, tt.status, success, "done"); err != nil {
					t.Fatalf("complete attempt: %v", err)
				}
			}

			input := CancelRetryInput{TransactionID: "TXN-1", Reason: "operator cancel"}
			res := v.ValidateCancelRetry(context.Background(), input, opsCaller)

			if tt.wantCode == "" {
				if !res.Valid {
					t.Errorf("expected valid, got %v", res.Errors)
				}
				return
			}
			if !res.HasCode(tt.wantCode) {
				t.Errorf("expected code %s, got %v", tt.wantCode, res.Errors)
			}
		})
	}
}

func TestValidateCancelRetry_TerminalException(t *testing.T) {
	v, excRepo, attRepo := newTestValidator(t)
	exc := seedException(t, excRepo, domain.InterfaceException{TransactionID: "TXN-1", Status: domain.StatusResolved})

	attempt := &domain.RetryAttempt{
		ExceptionID: exc.ID, AttemptNumber: 1,
		Status: domain.RetryPending, InitiatedBy: "ops", InitiatedAt: time.Now(),
	}
	if err := attRepo.Create(context.Background(), attempt); err != nil {
		t.Fatalf("create attempt: %v", err)
	}

	input := CancelRetryInput{TransactionID: "TXN-1", Reason: "too late"}
	res := v.ValidateCancelRetry(context.Background(), input, opsCaller)
	if res.Valid {
		t.Fatal("expected invalid result")
	}
	if !res.HasCode(CodeCancellationNotAllowed) {
		t.Errorf("expected code %s, got %v", CodeCancellationNotAllowed, res.Errors)
	}
}

func TestValidateCancelRetry_NoAttempts(t *testing.T) {
	v, excRepo, _ := newTestValidator(t)
	seedException(t, excRepo, domain.InterfaceException{TransactionID: "TXN-1", Status: domain.StatusNew})

	input := CancelRetryInput{TransactionID: "TXN-1", Reason: "nothing to cancel"}
	res := v.ValidateCancelRetry(context.Background(), input, opsCaller)
	if res.Valid {
		t.Fatal("expected invalid result")
	}
	if !res.HasCode(CodeNoPendingRetry) {
		t.Errorf("expected NO_PENDING_RETRY, got %v", res.Errors)
	}
}

// fakeCache records stores and serves hits for cache behavior tests.
type fakeCache struct {
	entries     map[string]Result
	invalidated []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]Result)}
}

func (c *fakeCache) Get(ctx context.Context, transactionID, operation string) (Result, bool) {
	res, ok := c.entries[transactionID+"/"+operation]
	return res, ok
}

func (c *fakeCache) Set(ctx context.Context, transactionID, operation string, result Result, ttl time.Duration) {
	c.entries[transactionID+"/"+operation] = result
}

func (c *fakeCache) InvalidateTransaction(ctx context.Context, transactionID string) {
	c.invalidated = append(c.invalidated, transactionID)
	for key := range c.entries {
		if len(key) > len(transactionID) && key[:len(transactionID)] == transactionID {
			delete(c.entries, key)
		}
	}
}

func TestValidateRetry_CachesResult(t *testing.T) {
	store := memory.NewMemoryStorage()
	excRepo := memory.NewExceptionRepo(store)
	attRepo := memory.NewAttemptRepo(store)
	cache := newFakeCache()
	v := NewValidator(excRepo, attRepo, cache)

	seedException(t, excRepo, domain.InterfaceException{
		TransactionID: "TXN-1", Status: domain.StatusNew, Retryable: true,
	})

	input := RetryInput{TransactionID: "TXN-1", Reason: "retry"}
	first := v.ValidateRetry(context.Background(), input, opsCaller)
	if !first.Valid {
		t.Fatalf("expected valid, got %v", first.Errors)
	}
	if len(cache.entries) != 1 {
		t.Fatalf("expected cached entry, got %d", len(cache.entries))
	}

	// Second call is served from the cache even if state changed underneath
	second := v.ValidateRetry(context.Background(), input, opsCaller)
	if !second.Valid {
		t.Errorf("expected cached valid result, got %v", second.Errors)
	}

	v.InvalidateCache(context.Background(), "TXN-1")
	if len(cache.invalidated) != 1 || cache.invalidated[0] != "TXN-1" {
		t.Errorf("expected invalidation for TXN-1, got %v", cache.invalidated)
	}
	if len(cache.entries) != 0 {
		t.Errorf("expected cache emptied, got %d entries", len(cache.entries))
	}
}

func TestValidateRetry_FormatFailureNotCached(t *testing.T) {
	store := memory.NewMemoryStorage()
	cache := newFakeCache()
	v := NewValidator(memory.NewExceptionRepo(store), memory.NewAttemptRepo(store), cache)

	res := v.ValidateRetry(context.Background(), RetryInput{TransactionID: "bad id!", Reason: "x"}, opsCaller)
	if res.Valid {
		t.Fatal("expected invalid result")
	}
	if len(cache.entries) != 0 {
		t.Errorf("format failures must not be cached, got %d entries", len(cache.entries))
	}
}
