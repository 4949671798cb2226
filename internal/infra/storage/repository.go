package storage

import (
	"context"
	"errors"

	"github.com/mjones3/exception-collector/internal/core/domain"
)

var (
	// ErrNotFound is returned when no exception exists for a transaction ID.
	ErrNotFound = errors.New("exception not found")

	// ErrVersionConflict is returned when a compare-and-swap write observes a
	// stored version other than the one it expected. The caller must refetch
	// and resubmit.
	ErrVersionConflict = errors.New("version conflict")

	// ErrPendingAttemptExists is returned when creating a PENDING attempt
	// would violate the single-pending-retry invariant.
	ErrPendingAttemptExists = errors.New("pending retry attempt already exists")

	// ErrNoAttempts is returned when an exception has no retry attempts.
	ErrNoAttempts = errors.New("no retry attempts found")
)

// ExceptionRepository handles interface exception persistence.
type ExceptionRepository interface {
	// FindByTransactionID retrieves an exception by its correlation key.
	// Returns ErrNotFound when absent.
	FindByTransactionID(ctx context.Context, transactionID string) (*domain.InterfaceException, error)

	// Create inserts a new exception and fills in its generated ID and version.
	Create(ctx context.Context, exc *domain.InterfaceException) error

	// SaveWithVersion writes the exception if and only if the stored version
	// equals expectedVersion, then increments the version. Returns
	// ErrVersionConflict when the check fails.
	SaveWithVersion(ctx context.Context, exc *domain.InterfaceException, expectedVersion int64) error

	// CountByStatus returns exception counts grouped by status.
	CountByStatus(ctx context.Context) (map[domain.ExceptionStatus]int64, error)

	// CountBySeverity returns exception counts grouped by severity.
	CountBySeverity(ctx context.Context) (map[domain.Severity]int64, error)

	// CountByInterfaceType returns exception counts grouped by interface type.
	CountByInterfaceType(ctx context.Context) (map[domain.InterfaceType]int64, error)
}

// AttemptRepository handles retry attempt persistence. An attempt belongs to
// exactly one exception.
type AttemptRepository interface {
	// Create inserts a new attempt and fills in its generated ID. Returns
	// ErrPendingAttemptExists when a PENDING attempt already exists for the
	// exception, regardless of what the caller validated earlier.
	Create(ctx context.Context, attempt *domain.RetryAttempt) error

	// FindLatest retrieves the attempt with the highest attempt number for an
	// exception. Returns ErrNoAttempts when none exist.
	FindLatest(ctx context.Context, exceptionID int64) (*domain.RetryAttempt, error)

	// Complete transitions a PENDING attempt to a terminal status and records
	// the outcome. Returns ErrNotFound when the attempt does not exist or is
	// already terminal.
	Complete(ctx context.Context, attemptID int64, status domain.RetryStatus, success bool, message string) error

	// ListByException returns all attempts for an exception ordered by
	// attempt number ascending.
	ListByException(ctx context.Context, exceptionID int64) ([]*domain.RetryAttempt, error)

	// CountRetries returns total and succeeded attempt counts across all
	// exceptions, for dashboard aggregation.
	CountRetries(ctx context.Context) (total int64, succeeded int64, err error)
}
