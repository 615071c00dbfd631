package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/templeobijnr/easy-islanders/internal/domain"
)

type IdempotencyRepository struct {
	pool *pgxpool.Pool
}

func NewIdempotencyRepository(pool *pgxpool.Pool) *IdempotencyRepository {
	return &IdempotencyRepository{pool: pool}
}

func (r *IdempotencyRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

const recordColumns = `
operation, key, status, attempts, max_attempts, last_attempt_id,
payload, last_error, created_at, updated_at, expires_at`

// GetRecordForUpdate row-locks the record so concurrent claimants of the same
// key serialize on it. A missing record returns (nil, nil).
func (r *IdempotencyRepository) GetRecordForUpdate(ctx context.Context, operation, key string) (*domain.IdempotencyRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM idempotency_records WHERE operation = $1 AND key = $2 FOR UPDATE`

	var rec domain.IdempotencyRecord
	err := r.queryRow(ctx, query, operation, key).Scan(
		&rec.Operation,
		&rec.Key,
		&rec.Status,
		&rec.Attempts,
		&rec.MaxAttempts,
		&rec.LastAttemptID,
		&rec.Payload,
		&rec.LastError,
		&rec.CreatedAt,
		&rec.UpdatedAt,
		&rec.ExpiresAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get idempotency record: %w", err)
	}
	return &rec, nil
}

func (r *IdempotencyRepository) InsertRecord(ctx context.Context, rec domain.IdempotencyRecord) error {
	const stmt = `
INSERT INTO idempotency_records (
	operation, key, status, attempts, max_attempts, last_attempt_id,
	payload, last_error, created_at, updated_at, expires_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.exec(ctx, stmt,
		rec.Operation,
		rec.Key,
		rec.Status,
		rec.Attempts,
		rec.MaxAttempts,
		rec.LastAttemptID,
		rec.Payload,
		rec.LastError,
		rec.CreatedAt,
		rec.UpdatedAt,
		rec.ExpiresAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrIdempotencyConflict
		}
		return fmt.Errorf("insert idempotency record: %w", err)
	}
	return nil
}

func (r *IdempotencyRepository) UpdateRecord(ctx context.Context, rec domain.IdempotencyRecord) error {
	const stmt = `
UPDATE idempotency_records
SET status = $3, attempts = $4, last_attempt_id = $5, payload = $6,
    last_error = $7, updated_at = $8, expires_at = $9
WHERE operation = $1 AND key = $2`

	tag, err := r.exec(ctx, stmt,
		rec.Operation,
		rec.Key,
		rec.Status,
		rec.Attempts,
		rec.LastAttemptID,
		rec.Payload,
		rec.LastError,
		rec.UpdatedAt,
		rec.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("update idempotency record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update idempotency record %s/%s: no row", rec.Operation, rec.Key)
	}
	return nil
}

func (r *IdempotencyRepository) DeleteExpiredRecords(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.exec(ctx, `DELETE FROM idempotency_records WHERE expires_at IS NOT NULL AND expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired records: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *IdempotencyRepository) ListRecords(ctx context.Context, operation string, limit int) ([]domain.IdempotencyRecord, error) {
	query := `SELECT ` + recordColumns + `
FROM idempotency_records
WHERE operation = $1
ORDER BY updated_at DESC
LIMIT $2`

	rows, err := r.query(ctx, query, operation, limit)
	if err != nil {
		return nil, fmt.Errorf("list idempotency records: %w", err)
	}
	defer rows.Close()

	out := make([]domain.IdempotencyRecord, 0)
	for rows.Next() {
		var rec domain.IdempotencyRecord
		if err := rows.Scan(
			&rec.Operation,
			&rec.Key,
			&rec.Status,
			&rec.Attempts,
			&rec.MaxAttempts,
			&rec.LastAttemptID,
			&rec.Payload,
			&rec.LastError,
			&rec.CreatedAt,
			&rec.UpdatedAt,
			&rec.ExpiresAt,
		); err != nil {
			return nil, fmt.Errorf("scan idempotency record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list idempotency records: %w", err)
	}
	return out, nil
}

func (r *IdempotencyRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *IdempotencyRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}

func (r *IdempotencyRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}
