package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/templeobijnr/easy-islanders/internal/domain"
)

type LedgerRepository struct {
	pool *pgxpool.Pool
}

func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

func (r *LedgerRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

const transactionColumns = `
id, resource_owner_id, offering_id, status, hold_expires_at,
user_id, user_name, user_phone, slot_date, slot_time, party_size, notes,
confirmation_code, confirmed_by, release_reason, created_at, updated_at`

func (r *LedgerRepository) GetTransactionForUpdate(ctx context.Context, txID string) (domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 FOR UPDATE`

	txn, err := scanTransaction(r.queryRow(ctx, query, txID))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Transaction{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Transaction{}, domain.ErrHoldNotFound
		}
		return domain.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return txn, nil
}

func (r *LedgerRepository) CreateTransaction(ctx context.Context, txn domain.Transaction) error {
	const stmt = `
INSERT INTO transactions (
	id, resource_owner_id, offering_id, status, hold_expires_at,
	user_id, user_name, user_phone, slot_date, slot_time, party_size, notes,
	confirmation_code, confirmed_by, release_reason, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err := r.exec(ctx, stmt,
		txn.ID,
		txn.ResourceOwnerID,
		txn.OfferingID,
		txn.Status,
		txn.HoldExpiresAt,
		txn.UserID,
		txn.UserName,
		txn.UserPhone,
		txn.Date,
		txn.Time,
		txn.PartySize,
		txn.Notes,
		txn.ConfirmationCode,
		txn.ConfirmedBy,
		txn.ReleaseReason,
		txn.CreatedAt,
		txn.UpdatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

func (r *LedgerRepository) UpdateTransaction(ctx context.Context, txn domain.Transaction) error {
	const stmt = `
UPDATE transactions
SET status = $2, hold_expires_at = $3, confirmation_code = $4, confirmed_by = $5,
    release_reason = $6, updated_at = $7
WHERE id = $1`

	tag, err := r.exec(ctx, stmt,
		txn.ID,
		txn.Status,
		txn.HoldExpiresAt,
		txn.ConfirmationCode,
		txn.ConfirmedBy,
		txn.ReleaseReason,
		txn.UpdatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("update transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrHoldNotFound
	}
	return nil
}

// AcquireLock claims a slot. The primary key on resource_locks.key is the
// mutual exclusion: a second claim hits the unique violation and surfaces as
// ErrResourceUnavailable.
func (r *LedgerRepository) AcquireLock(ctx context.Context, lock domain.ResourceLock) error {
	const stmt = `INSERT INTO resource_locks (key, tx_id, acquired_at) VALUES ($1, $2, $3)`

	_, err := r.exec(ctx, stmt, lock.Key, lock.TxID, lock.AcquiredAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrResourceUnavailable
		}
		return fmt.Errorf("acquire lock: %w", err)
	}
	return nil
}

func (r *LedgerRepository) ReleaseLock(ctx context.Context, key string) error {
	if _, err := r.exec(ctx, `DELETE FROM resource_locks WHERE key = $1`, key); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

func (r *LedgerRepository) ListTransactionsByOwner(ctx context.Context, resourceOwnerID string, limit int) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
FROM transactions
WHERE resource_owner_id = $1
ORDER BY created_at DESC
LIMIT $2`

	rows, err := r.query(ctx, query, resourceOwnerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Transaction, 0)
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return out, nil
}

func scanTransaction(row pgx.Row) (domain.Transaction, error) {
	var txn domain.Transaction
	err := row.Scan(
		&txn.ID,
		&txn.ResourceOwnerID,
		&txn.OfferingID,
		&txn.Status,
		&txn.HoldExpiresAt,
		&txn.UserID,
		&txn.UserName,
		&txn.UserPhone,
		&txn.Date,
		&txn.Time,
		&txn.PartySize,
		&txn.Notes,
		&txn.ConfirmationCode,
		&txn.ConfirmedBy,
		&txn.ReleaseReason,
		&txn.CreatedAt,
		&txn.UpdatedAt,
	)
	return txn, err
}

func (r *LedgerRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *LedgerRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}

func (r *LedgerRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}
