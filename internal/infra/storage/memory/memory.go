package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mjones3/exception-collector/internal/core/domain"
	"github.com/mjones3/exception-collector/internal/infra/storage"
)

// MemoryStorage backs the repositories with in-process maps. Used for tests
// and for running the collector without a database.
type MemoryStorage struct {
	mu         sync.RWMutex
	exceptions map[string]*domain.InterfaceException // keyed by transaction ID
	attempts   map[int64][]*domain.RetryAttempt      // keyed by exception ID
	nextExcID  int64
	nextAttID  int64
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		exceptions: make(map[string]*domain.InterfaceException),
		attempts:   make(map[int64][]*domain.RetryAttempt),
	}
}

// -----------------------------------------------------------------------------
// Exception Repository
// -----------------------------------------------------------------------------

type ExceptionRepo struct {
	store *MemoryStorage
}

func NewExceptionRepo(store *MemoryStorage) *ExceptionRepo {
	return &ExceptionRepo{store: store}
}

func (r *ExceptionRepo) FindByTransactionID(ctx context.Context, transactionID string) (*domain.InterfaceException, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	exc, ok := r.store.exceptions[transactionID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *exc
	return &cp, nil
}

func (r *ExceptionRepo) Create(ctx context.Context, exc *domain.InterfaceException) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.nextExcID++
	exc.ID = r.store.nextExcID
	exc.Version = 1
	cp := *exc
	r.store.exceptions[exc.TransactionID] = &cp
	return nil
}

func (r *ExceptionRepo) SaveWithVersion(ctx context.Context, exc *domain.InterfaceException, expectedVersion int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	stored, ok := r.store.exceptions[exc.TransactionID]
	if !ok {
		return storage.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return storage.ErrVersionConflict
	}
	cp := *exc
	cp.ID = stored.ID
	cp.Version = expectedVersion + 1
	r.store.exceptions[exc.TransactionID] = &cp
	exc.Version = cp.Version
	return nil
}

func (r *ExceptionRepo) CountByStatus(ctx context.Context) (map[domain.ExceptionStatus]int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	counts := make(map[domain.ExceptionStatus]int64)
	for _, exc := range r.store.exceptions {
		counts[exc.Status]++
	}
	return counts, nil
}

func (r *ExceptionRepo) CountBySeverity(ctx context.Context) (map[domain.Severity]int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	counts := make(map[domain.Severity]int64)
	for _, exc := range r.store.exceptions {
		counts[exc.Severity]++
	}
	return counts, nil
}

func (r *ExceptionRepo) CountByInterfaceType(ctx context.Context) (map[domain.InterfaceType]int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	counts := make(map[domain.InterfaceType]int64)
	for _, exc := range r.store.exceptions {
		counts[exc.InterfaceType]++
	}
	return counts, nil
}

// -----------------------------------------------------------------------------
// Attempt Repository
// -----------------------------------------------------------------------------

type AttemptRepo struct {
	store *MemoryStorage
}

func NewAttemptRepo(store *MemoryStorage) *AttemptRepo {
	return &AttemptRepo{store: store}
}

func (r *AttemptRepo) Create(ctx context.Context, attempt *domain.RetryAttempt) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	// The pending check and the insert share one critical section so two
	// concurrent creates cannot both observe "no pending attempt".
	for _, a := range r.store.attempts[attempt.ExceptionID] {
		if a.Status == domain.RetryPending {
			return storage.ErrPendingAttemptExists
		}
	}
	r.store.nextAttID++
	attempt.ID = r.store.nextAttID
	cp := *attempt
	r.store.attempts[attempt.ExceptionID] = append(r.store.attempts[attempt.ExceptionID], &cp)
	return nil
}

func (r *AttemptRepo) FindLatest(ctx context.Context, exceptionID int64) (*domain.RetryAttempt, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	attempts := r.store.attempts[exceptionID]
	if len(attempts) == 0 {
		return nil, storage.ErrNoAttempts
	}
	latest := attempts[0]
	for _, a := range attempts[1:] {
		if a.AttemptNumber > latest.AttemptNumber {
			latest = a
		}
	}
	cp := *latest
	return &cp, nil
}

func (r *AttemptRepo) Complete(ctx context.Context, attemptID int64, status domain.RetryStatus, success bool, message string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, attempts := range r.store.attempts {
		for _, a := range attempts {
			if a.ID != attemptID {
				continue
			}
			if a.Status != domain.RetryPending {
				return storage.ErrNotFound
			}
			now := time.Now()
			a.Status = status
			a.CompletedAt = &now
			a.ResultSuccess = success
			a.ResultMessage = message
			return nil
		}
	}
	return storage.ErrNotFound
}

func (r *AttemptRepo) ListByException(ctx context.Context, exceptionID int64) ([]*domain.RetryAttempt, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	attempts := r.store.attempts[exceptionID]
	out := make([]*domain.RetryAttempt, 0, len(attempts))
	for _, a := range attempts {
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AttemptNumber < out[j].AttemptNumber })
	return out, nil
}

func (r *AttemptRepo) CountRetries(ctx context.Context) (int64, int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var total, succeeded int64
	for _, attempts := range r.store.attempts {
		for _, a := range attempts {
			total++
			if a.Status == domain.RetrySuccess {
				succeeded++
			}
		}
	}
	return total, succeeded, nil
}
