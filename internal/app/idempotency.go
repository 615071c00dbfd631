package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/templeobijnr/easy-islanders/internal/clock"
	"github.com/templeobijnr/easy-islanders/internal/domain"
)

// IdempotencyRepository persists dedup records. GetRecordForUpdate must take
// a row lock so that Reserve is one atomic read-modify-write inside WithTx.
type IdempotencyRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetRecordForUpdate(ctx context.Context, operation, key string) (*domain.IdempotencyRecord, error)
	InsertRecord(ctx context.Context, rec domain.IdempotencyRecord) error
	UpdateRecord(ctx context.Context, rec domain.IdempotencyRecord) error
	DeleteExpiredRecords(ctx context.Context, now time.Time) (int64, error)
	ListRecords(ctx context.Context, operation string, limit int) ([]domain.IdempotencyRecord, error)
}

// IdempotencyLedger executes a state transition at most once per
// (operation, key). Replays observe the first writer's payload.
type IdempotencyLedger struct {
	repo  IdempotencyRepository
	clock clock.Clock
	ttl   time.Duration
}

const defaultRecordTTL = 24 * time.Hour

func NewIdempotencyLedger(repo IdempotencyRepository, clk clock.Clock, opts ...IdempotencyOption) *IdempotencyLedger {
	l := &IdempotencyLedger{
		repo:  repo,
		clock: clk,
		ttl:   defaultRecordTTL,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

type IdempotencyOption func(*IdempotencyLedger)

// WithRecordTTL overrides how long terminal records are kept before purge.
func WithRecordTTL(d time.Duration) IdempotencyOption {
	return func(l *IdempotencyLedger) {
		if d > 0 {
			l.ttl = d
		}
	}
}

type ReserveInput struct {
	Operation   string
	Key         string
	AttemptID   string
	MaxAttempts int
	Payload     json.RawMessage
}

type ReserveOutcome struct {
	// CanProceed is true when this caller won the right to run the guarded
	// side effect. False means "already done or already claimed" and the
	// caller must treat Record as the result, not as an error.
	CanProceed bool
	Record     domain.IdempotencyRecord
}

// Reserve claims (operation, key) for one attempt. Any failure to even
// perform the claim surfaces as a RetryableError: callers must not run the
// guarded side effect after an indeterminate reservation (fail-closed).
func (l *IdempotencyLedger) Reserve(ctx context.Context, in ReserveInput) (ReserveOutcome, error) {
	if in.Key == "" {
		return ReserveOutcome{}, domain.ErrIdempotencyKeyRequired
	}
	if in.MaxAttempts <= 0 {
		in.MaxAttempts = 1
	}

	now := l.clock.Now()
	var out ReserveOutcome

	err := l.repo.WithTx(ctx, func(txCtx context.Context) error {
		existing, err := l.repo.GetRecordForUpdate(txCtx, in.Operation, in.Key)
		if err != nil {
			return err
		}

		if existing == nil {
			expires := now.Add(l.ttl)
			rec := domain.IdempotencyRecord{
				Operation:     in.Operation,
				Key:           in.Key,
				Status:        domain.IdempotencyPending,
				Attempts:      1,
				MaxAttempts:   in.MaxAttempts,
				LastAttemptID: in.AttemptID,
				Payload:       in.Payload,
				CreatedAt:     now,
				UpdatedAt:     now,
				ExpiresAt:     &expires,
			}
			if err := l.repo.InsertRecord(txCtx, rec); err != nil {
				return err
			}
			out = ReserveOutcome{CanProceed: true, Record: rec}
			return nil
		}

		rec := *existing
		if rec.Terminal() {
			out = ReserveOutcome{CanProceed: false, Record: rec}
			return nil
		}
		if rec.LastAttemptID != "" && rec.LastAttemptID == in.AttemptID {
			// The exact same logical attempt retried: already claimed.
			out = ReserveOutcome{CanProceed: false, Record: rec}
			return nil
		}
		if rec.Attempts >= rec.MaxAttempts {
			rec.Status = domain.IdempotencyFailed
			if rec.LastError == "" {
				rec.LastError = domain.ErrMaxAttemptsExceeded.Error()
			}
			rec.UpdatedAt = now
			if err := l.repo.UpdateRecord(txCtx, rec); err != nil {
				return err
			}
			out = ReserveOutcome{CanProceed: false, Record: rec}
			return nil
		}

		rec.Attempts++
		rec.LastAttemptID = in.AttemptID
		rec.UpdatedAt = now
		if err := l.repo.UpdateRecord(txCtx, rec); err != nil {
			return err
		}
		out = ReserveOutcome{CanProceed: true, Record: rec}
		return nil
	})
	if err != nil {
		return ReserveOutcome{}, domain.Retryable("reserve "+in.Operation, err)
	}
	return out, nil
}

// Complete marks the record succeeded and stores the payload replays will see.
func (l *IdempotencyLedger) Complete(ctx context.Context, operation, key string, payload json.RawMessage) error {
	now := l.clock.Now()
	err := l.repo.WithTx(ctx, func(txCtx context.Context) error {
		rec, err := l.repo.GetRecordForUpdate(txCtx, operation, key)
		if err != nil {
			return err
		}
		if rec == nil {
			return fmt.Errorf("idempotency record missing: %s/%s", operation, key)
		}
		if rec.Status == domain.IdempotencySucceeded {
			return nil
		}
		rec.Status = domain.IdempotencySucceeded
		rec.Payload = payload
		rec.LastError = ""
		rec.UpdatedAt = now
		return l.repo.UpdateRecord(txCtx, *rec)
	})
	if err != nil {
		return domain.Retryable("complete "+operation, err)
	}
	return nil
}

// RecordFailure stores the last error while leaving the record claimable by a
// later attempt. Terminal failure happens only inside Reserve when attempts
// reach the ceiling.
func (l *IdempotencyLedger) RecordFailure(ctx context.Context, operation, key, lastError string) error {
	now := l.clock.Now()
	err := l.repo.WithTx(ctx, func(txCtx context.Context) error {
		rec, err := l.repo.GetRecordForUpdate(txCtx, operation, key)
		if err != nil {
			return err
		}
		if rec == nil {
			return fmt.Errorf("idempotency record missing: %s/%s", operation, key)
		}
		if rec.Terminal() {
			return nil
		}
		rec.LastError = lastError
		rec.UpdatedAt = now
		return l.repo.UpdateRecord(txCtx, *rec)
	})
	if err != nil {
		return domain.Retryable("record failure "+operation, err)
	}
	return nil
}

// PurgeExpired deletes records past their TTL and returns how many went away.
func (l *IdempotencyLedger) PurgeExpired(ctx context.Context) (int64, error) {
	return l.repo.DeleteExpiredRecords(ctx, l.clock.Now())
}
