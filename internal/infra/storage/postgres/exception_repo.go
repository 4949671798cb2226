package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mjones3/exception-collector/internal/core/domain"
	"github.com/mjones3/exception-collector/internal/infra/storage"
)

// ExceptionRepo implements storage.ExceptionRepository using PostgreSQL.
type ExceptionRepo struct {
	db *DB
}

// NewExceptionRepo creates a new PostgreSQL exception repository.
func NewExceptionRepo(db *DB) *ExceptionRepo {
	return &ExceptionRepo{db: db}
}

type exceptionRow struct {
	ID               int64          `db:"id"`
	TransactionID    string         `db:"transaction_id"`
	ExternalID       sql.NullString `db:"external_id"`
	InterfaceType    string         `db:"interface_type"`
	Operation        sql.NullString `db:"operation"`
	ExceptionReason  sql.NullString `db:"exception_reason"`
	Status           string         `db:"status"`
	Severity         string         `db:"severity"`
	Category         sql.NullString `db:"category"`
	CustomerID       sql.NullString `db:"customer_id"`
	LocationCode     sql.NullString `db:"location_code"`
	Timestamp        time.Time      `db:"occurred_at"`
	ProcessedAt      time.Time      `db:"processed_at"`
	Retryable        bool           `db:"retryable"`
	RetryCount       int            `db:"retry_count"`
	MaxRetries       int            `db:"max_retries"`
	LastRetryAt      *time.Time     `db:"last_retry_at"`
	AcknowledgedBy   sql.NullString `db:"acknowledged_by"`
	AcknowledgedAt   *time.Time     `db:"acknowledged_at"`
	ResolvedBy       sql.NullString `db:"resolved_by"`
	ResolvedAt       *time.Time     `db:"resolved_at"`
	ResolutionMethod sql.NullString `db:"resolution_method"`
	ResolutionNotes  sql.NullString `db:"resolution_notes"`
	Version          int64          `db:"version"`
}

func (r exceptionRow) toDomain() *domain.InterfaceException {
	return &domain.InterfaceException{
		ID:               r.ID,
		TransactionID:    r.TransactionID,
		ExternalID:       r.ExternalID.String,
		InterfaceType:    domain.InterfaceType(r.InterfaceType),
		Operation:        r.Operation.String,
		ExceptionReason:  r.ExceptionReason.String,
		Status:           domain.ExceptionStatus(r.Status),
		Severity:         domain.Severity(r.Severity),
		Category:         r.Category.String,
		CustomerID:       r.CustomerID.String,
		LocationCode:     r.LocationCode.String,
		Timestamp:        r.Timestamp,
		ProcessedAt:      r.ProcessedAt,
		Retryable:        r.Retryable,
		RetryCount:       r.RetryCount,
		MaxRetries:       r.MaxRetries,
		LastRetryAt:      r.LastRetryAt,
		AcknowledgedBy:   r.AcknowledgedBy.String,
		AcknowledgedAt:   r.AcknowledgedAt,
		ResolvedBy:       r.ResolvedBy.String,
		ResolvedAt:       r.ResolvedAt,
		ResolutionMethod: domain.ResolutionMethod(r.ResolutionMethod.String),
		ResolutionNotes:  r.ResolutionNotes.String,
		Version:          r.Version,
	}
}

const exceptionColumns = `
	id, transaction_id, external_id, interface_type, operation, exception_reason,
	status, severity, category, customer_id, location_code, occurred_at, processed_at,
	retryable, retry_count, max_retries, last_retry_at,
	acknowledged_by, acknowledged_at, resolved_by, resolved_at,
	resolution_method, resolution_notes, version`

// FindByTransactionID retrieves an exception by its correlation key.
func (r *ExceptionRepo) FindByTransactionID(ctx context.Context, transactionID string) (*domain.InterfaceException, error) {
	query := `SELECT` + exceptionColumns + ` FROM interface_exceptions WHERE transaction_id = $1`

	var row exceptionRow
	if err := r.db.GetContext(ctx, &row, query, transactionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find exception: %w", err)
	}
	return row.toDomain(), nil
}

// Create inserts a new exception with version 1.
func (r *ExceptionRepo) Create(ctx context.Context, exc *domain.InterfaceException) error {
	query := `
		INSERT INTO interface_exceptions (
			transaction_id, external_id, interface_type, operation, exception_reason,
			status, severity, category, customer_id, location_code, occurred_at, processed_at,
			retryable, retry_count, max_retries, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), $12, $13, $14, 1)
		RETURNING id, version
	`
	err := r.db.QueryRowxContext(ctx, query,
		exc.TransactionID, nullable(exc.ExternalID), string(exc.InterfaceType),
		nullable(exc.Operation), nullable(exc.ExceptionReason),
		string(exc.Status), string(exc.Severity), nullable(exc.Category),
		nullable(exc.CustomerID), nullable(exc.LocationCode), exc.Timestamp,
		exc.Retryable, exc.RetryCount, exc.MaxRetries,
	).Scan(&exc.ID, &exc.Version)
	if err != nil {
		return fmt.Errorf("failed to create exception: %w", err)
	}
	return nil
}

// SaveWithVersion compare-and-swaps the exception row on its version column.
// Zero rows affected means either a version conflict or a missing row; the
// two are distinguished with a follow-up existence probe.
func (r *ExceptionRepo) SaveWithVersion(ctx context.Context, exc *domain.InterfaceException, expectedVersion int64) error {
	query := `
		UPDATE interface_exceptions SET
			status = $1,
			retry_count = $2,
			last_retry_at = $3,
			acknowledged_by = $4,
			acknowledged_at = $5,
			resolved_by = $6,
			resolved_at = $7,
			resolution_method = $8,
			resolution_notes = $9,
			version = version + 1
		WHERE transaction_id = $10 AND version = $11
	`
	res, err := r.db.ExecContext(ctx, query,
		string(exc.Status), exc.RetryCount, exc.LastRetryAt,
		nullable(exc.AcknowledgedBy), exc.AcknowledgedAt,
		nullable(exc.ResolvedBy), exc.ResolvedAt,
		nullable(string(exc.ResolutionMethod)), nullable(exc.ResolutionNotes),
		exc.TransactionID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to save exception: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		var exists bool
		probe := `SELECT EXISTS(SELECT 1 FROM interface_exceptions WHERE transaction_id = $1)`
		if err := r.db.GetContext(ctx, &exists, probe, exc.TransactionID); err != nil {
			return fmt.Errorf("failed to probe exception existence: %w", err)
		}
		if !exists {
			return storage.ErrNotFound
		}
		return storage.ErrVersionConflict
	}

	exc.Version = expectedVersion + 1
	return nil
}

type countRow struct {
	Key   string `db:"key"`
	Count int64  `db:"count"`
}

func (r *ExceptionRepo) countBy(ctx context.Context, column string) ([]countRow, error) {
	query := fmt.Sprintf(
		`SELECT %s AS key, COUNT(*) AS count FROM interface_exceptions GROUP BY %s`,
		column, column)

	var rows []countRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to count by %s: %w", column, err)
	}
	return rows, nil
}

// CountByStatus returns exception counts grouped by status.
func (r *ExceptionRepo) CountByStatus(ctx context.Context) (map[domain.ExceptionStatus]int64, error) {
	rows, err := r.countBy(ctx, "status")
	if err != nil {
		return nil, err
	}
	counts := make(map[domain.ExceptionStatus]int64, len(rows))
	for _, row := range rows {
		counts[domain.ExceptionStatus(row.Key)] = row.Count
	}
	return counts, nil
}

// CountBySeverity returns exception counts grouped by severity.
func (r *ExceptionRepo) CountBySeverity(ctx context.Context) (map[domain.Severity]int64, error) {
	rows, err := r.countBy(ctx, "severity")
	if err != nil {
		return nil, err
	}
	counts := make(map[domain.Severity]int64, len(rows))
	for _, row := range rows {
		counts[domain.Severity(row.Key)] = row.Count
	}
	return counts, nil
}

// CountByInterfaceType returns exception counts grouped by interface type.
func (r *ExceptionRepo) CountByInterfaceType(ctx context.Context) (map[domain.InterfaceType]int64, error) {
	rows, err := r.countBy(ctx, "interface_type")
	if err != nil {
		return nil, err
	}
	counts := make(map[domain.InterfaceType]int64, len(rows))
	for _, row := range rows {
		counts[domain.InterfaceType(row.Key)] = row.Count
	}
	return counts, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
