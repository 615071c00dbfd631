package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/templeobijnr/easy-islanders/internal/domain"
)

// GateRepository persists the single pending action per session. The primary
// key on session_id plus the upsert keeps the slot last-writer-wins.
type GateRepository struct {
	pool *pgxpool.Pool
}

func NewGateRepository(pool *pgxpool.Pool) *GateRepository {
	return &GateRepository{pool: pool}
}

func (r *GateRepository) UpsertPendingAction(ctx context.Context, action domain.PendingAction) error {
	const stmt = `
INSERT INTO pending_actions (
	session_id, kind, tx_id, resource_owner_id, summary,
	hold_expires_at, expected_user_id, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (session_id) DO UPDATE SET
	kind = EXCLUDED.kind,
	tx_id = EXCLUDED.tx_id,
	resource_owner_id = EXCLUDED.resource_owner_id,
	summary = EXCLUDED.summary,
	hold_expires_at = EXCLUDED.hold_expires_at,
	expected_user_id = EXCLUDED.expected_user_id,
	created_at = EXCLUDED.created_at`

	_, err := r.pool.Exec(ctx, stmt,
		action.SessionID,
		action.Kind,
		action.TxID,
		action.ResourceOwnerID,
		action.Summary,
		action.HoldExpiresAt,
		action.ExpectedUserID,
		action.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert pending action: %w", err)
	}
	return nil
}

func (r *GateRepository) GetPendingAction(ctx context.Context, sessionID string) (*domain.PendingAction, error) {
	const query = `
SELECT session_id, kind, tx_id, resource_owner_id, summary,
       hold_expires_at, expected_user_id, created_at
FROM pending_actions
WHERE session_id = $1`

	var action domain.PendingAction
	err := r.pool.QueryRow(ctx, query, sessionID).Scan(
		&action.SessionID,
		&action.Kind,
		&action.TxID,
		&action.ResourceOwnerID,
		&action.Summary,
		&action.HoldExpiresAt,
		&action.ExpectedUserID,
		&action.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get pending action: %w", err)
	}
	return &action, nil
}

func (r *GateRepository) DeletePendingAction(ctx context.Context, sessionID string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM pending_actions WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("delete pending action: %w", err)
	}
	return nil
}
