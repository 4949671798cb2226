package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mjones3/exception-collector/internal/core/domain"
	"github.com/mjones3/exception-collector/internal/infra/storage"
)

// AttemptRepo implements storage.AttemptRepository using PostgreSQL.
type AttemptRepo struct {
	db *DB
}

// NewAttemptRepo creates a new PostgreSQL retry attempt repository.
func NewAttemptRepo(db *DB) *AttemptRepo {
	return &AttemptRepo{db: db}
}

type attemptRow struct {
	ID            int64          `db:"id"`
	ExceptionID   int64          `db:"exception_id"`
	AttemptNumber int            `db:"attempt_number"`
	Status        string         `db:"status"`
	InitiatedBy   string         `db:"initiated_by"`
	InitiatedAt   time.Time      `db:"initiated_at"`
	CompletedAt   *time.Time     `db:"completed_at"`
	ResultSuccess sql.NullBool   `db:"result_success"`
	ResultMessage sql.NullString `db:"result_message"`
}

func (r attemptRow) toDomain() *domain.RetryAttempt {
	return &domain.RetryAttempt{
		ID:            r.ID,
		ExceptionID:   r.ExceptionID,
		AttemptNumber: r.AttemptNumber,
		Status:        domain.RetryStatus(r.Status),
		InitiatedBy:   r.InitiatedBy,
		InitiatedAt:   r.InitiatedAt,
		CompletedAt:   r.CompletedAt,
		ResultSuccess: r.ResultSuccess.Bool,
		ResultMessage: r.ResultMessage.String,
	}
}

// Create inserts a new attempt. The partial unique index on
// (exception_id) WHERE status = 'PENDING' is the commit-time guard for the
// single-pending-retry invariant: the losing writer of a validation race gets
// a unique violation here, mapped to ErrPendingAttemptExists.
func (r *AttemptRepo) Create(ctx context.Context, attempt *domain.RetryAttempt) error {
	query := `
		INSERT INTO retry_attempts (
			exception_id, attempt_number, status, initiated_by, initiated_at
		) VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := r.db.QueryRowxContext(ctx, query,
		attempt.ExceptionID, attempt.AttemptNumber, string(attempt.Status),
		attempt.InitiatedBy, attempt.InitiatedAt,
	).Scan(&attempt.ID)
	if err != nil {
		if isPendingUniqueViolation(err) {
			return storage.ErrPendingAttemptExists
		}
		return fmt.Errorf("failed to create retry attempt: %w", err)
	}
	return nil
}

// isPendingUniqueViolation matches only the partial PENDING index; the table
// also has UNIQUE (exception_id, attempt_number), and a collision there is a
// different failure that must not masquerade as a pending retry.
func isPendingUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" &&
		pgErr.ConstraintName == "uq_retry_attempts_pending"
}

// FindLatest retrieves the attempt with the highest attempt number.
func (r *AttemptRepo) FindLatest(ctx context.Context, exceptionID int64) (*domain.RetryAttempt, error) {
	query := `
		SELECT id, exception_id, attempt_number, status, initiated_by, initiated_at,
		       completed_at, result_success, result_message
		FROM retry_attempts
		WHERE exception_id = $1
		ORDER BY attempt_number DESC
		LIMIT 1
	`
	var row attemptRow
	if err := r.db.GetContext(ctx, &row, query, exceptionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNoAttempts
		}
		return nil, fmt.Errorf("failed to find latest attempt: %w", err)
	}
	return row.toDomain(), nil
}

// Complete closes a PENDING attempt with a terminal status. The status guard
// in the WHERE clause makes terminal states sticky.
func (r *AttemptRepo) Complete(ctx context.Context, attemptID int64, status domain.RetryStatus, success bool, message string) error {
	query := `
		UPDATE retry_attempts
		SET status = $1, completed_at = NOW(), result_success = $2, result_message = $3
		WHERE id = $4 AND status = 'PENDING'
	`
	res, err := r.db.ExecContext(ctx, query, string(status), success, nullable(message), attemptID)
	if err != nil {
		return fmt.Errorf("failed to complete retry attempt: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListByException returns all attempts ordered by attempt number.
func (r *AttemptRepo) ListByException(ctx context.Context, exceptionID int64) ([]*domain.RetryAttempt, error) {
	query := `
		SELECT id, exception_id, attempt_number, status, initiated_by, initiated_at,
		       completed_at, result_success, result_message
		FROM retry_attempts
		WHERE exception_id = $1
		ORDER BY attempt_number ASC
	`
	var rows []attemptRow
	if err := r.db.SelectContext(ctx, &rows, query, exceptionID); err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	out := make([]*domain.RetryAttempt, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// CountRetries returns total and succeeded attempt counts.
func (r *AttemptRepo) CountRetries(ctx context.Context) (int64, int64, error) {
	query := `
		SELECT COUNT(*) AS total,
		       COUNT(*) FILTER (WHERE status = 'SUCCESS') AS succeeded
		FROM retry_attempts
	`
	var row struct {
		Total     int64 `db:"total"`
		Succeeded int64 `db:"succeeded"`
	}
	if err := r.db.GetContext(ctx, &row, query); err != nil {
		return 0, 0, fmt.Errorf("failed to count retries: %w", err)
	}
	return row.Total, row.Succeeded, nil
}
