package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mjones3/exception-collector/internal/core/domain"
	"github.com/mjones3/exception-collector/internal/infra/storage"
)

func TestExceptionRepo_CreateAndFind(t *testing.T) {
	store := NewMemoryStorage()
	repo := NewExceptionRepo(store)
	ctx := context.Background()

	exc := &domain.InterfaceException{TransactionID: "TXN-1", Status: domain.StatusNew}
	if err := repo.Create(ctx, exc); err != nil {
		t.Fatalf("create: %v", err)
	}
	if exc.ID == 0 {
		t.Error("expected assigned ID")
	}
	if exc.Version != 1 {
		t.Errorf("expected version 1, got %d", exc.Version)
	}

	found, err := repo.FindByTransactionID(ctx, "TXN-1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found.TransactionID != "TXN-1" {
		t.Errorf("got %s", found.TransactionID)
	}

	// Returned copy is isolated from the store
	found.Status = domain.StatusClosed
	again, _ := repo.FindByTransactionID(ctx, "TXN-1")
	if again.Status != domain.StatusNew {
		t.Errorf("store mutated through returned copy: %s", again.Status)
	}

	if _, err := repo.FindByTransactionID(ctx, "TXN-404"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestExceptionRepo_SaveWithVersion(t *testing.T) {
	store := NewMemoryStorage()
	repo := NewExceptionRepo(store)
	ctx := context.Background()

	exc := &domain.InterfaceException{TransactionID: "TXN-1", Status: domain.StatusNew}
	if err := repo.Create(ctx, exc); err != nil {
		t.Fatalf("create: %v", err)
	}

	exc.Status = domain.StatusAcknowledged
	if err := repo.SaveWithVersion(ctx, exc, 1); err != nil {
		t.Fatalf("save: %v", err)
	}
	if exc.Version != 2 {
		t.Errorf("expected version 2 after save, got %d", exc.Version)
	}

	// Stale version is rejected
	stale := *exc
	stale.Status = domain.StatusEscalated
	if err := repo.SaveWithVersion(ctx, &stale, 1); !errors.Is(err, storage.ErrVersionConflict) {
		t.Errorf("expected ErrVersionConflict, got %v", err)
	}

	// Unknown transaction
	ghost := domain.InterfaceException{TransactionID: "TXN-404"}
	if err := repo.SaveWithVersion(ctx, &ghost, 1); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAttemptRepo_PendingGuard(t *testing.T) {
	store := NewMemoryStorage()
	repo := NewAttemptRepo(store)
	ctx := context.Background()

	first := &domain.RetryAttempt{ExceptionID: 1, AttemptNumber: 1, Status: domain.RetryPending, InitiatedAt: time.Now()}
	if err := repo.Create(ctx, first); err != nil {
		t.Fatalf("create: %v", err)
	}

	second := &domain.RetryAttempt{ExceptionID: 1, AttemptNumber: 2, Status: domain.RetryPending, InitiatedAt: time.Now()}
	if err := repo.Create(ctx, second); !errors.Is(err, storage.ErrPendingAttemptExists) {
		t.Errorf("expected ErrPendingAttemptExists, got %v", err)
	}

	// Other exceptions are unaffected
	other := &domain.RetryAttempt{ExceptionID: 2, AttemptNumber: 1, Status: domain.RetryPending, InitiatedAt: time.Now()}
	if err := repo.Create(ctx, other); err != nil {
		t.Errorf("unexpected error for other exception: %v", err)
	}

	// Completing the attempt releases the guard
	if err := repo.Complete(ctx, first.ID, domain.RetryFailed, false, "nope"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := repo.Create(ctx, second); err != nil {
		t.Errorf("expected create to succeed after completion, got %v", err)
	}
}

func TestAttemptRepo_CompleteIsSingleShot(t *testing.T) {
	store := NewMemoryStorage()
	repo := NewAttemptRepo(store)
	ctx := context.Background()

	attempt := &domain.RetryAttempt{ExceptionID: 1, AttemptNumber: 1, Status: domain.RetryPending, InitiatedAt: time.Now()}
	if err := repo.Create(ctx, attempt); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := repo.Complete(ctx, attempt.ID, domain.RetrySuccess, true, "ok"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := repo.Complete(ctx, attempt.ID, domain.RetryCancelled, false, "late"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound on double complete, got %v", err)
	}

	latest, err := repo.FindLatest(ctx, 1)
	if err != nil {
		t.Fatalf("find latest: %v", err)
	}
	if latest.Status != domain.RetrySuccess {
		t.Errorf("expected SUCCESS preserved, got %s", latest.Status)
	}
	if latest.CompletedAt == nil {
		t.Error("expected completion time set")
	}
}

func TestAttemptRepo_FindLatestAndCounts(t *testing.T) {
	store := NewMemoryStorage()
	repo := NewAttemptRepo(store)
	ctx := context.Background()

	if _, err := repo.FindLatest(ctx, 1); !errors.Is(err, storage.ErrNoAttempts) {
		t.Errorf("expected ErrNoAttempts, got %v", err)
	}

	for i := 1; i <= 3; i++ {
		a := &domain.RetryAttempt{ExceptionID: 1, AttemptNumber: i, Status: domain.RetryPending, InitiatedAt: time.Now()}
		if err := repo.Create(ctx, a); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		status := domain.RetryFailed
		if i == 3 {
			status = domain.RetrySuccess
		}
		if err := repo.Complete(ctx, a.ID, status, i == 3, ""); err != nil {
			t.Fatalf("complete %d: %v", i, err)
		}
	}

	latest, err := repo.FindLatest(ctx, 1)
	if err != nil {
		t.Fatalf("find latest: %v", err)
	}
	if latest.AttemptNumber != 3 {
		t.Errorf("expected attempt 3, got %d", latest.AttemptNumber)
	}

	total, succeeded, err := repo.CountRetries(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if total != 3 || succeeded != 1 {
		t.Errorf("expected 3/1, got %d/%d", total, succeeded)
	}
}
