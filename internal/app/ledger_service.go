package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/templeobijnr/easy-islanders/internal/clock"
	"github.com/templeobijnr/easy-islanders/internal/domain"
)

// LedgerRepository persists transactions and resource locks. AcquireLock must
// return domain.ErrResourceUnavailable when the slot is already held.
type LedgerRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetTransactionForUpdate(ctx context.Context, txID string) (domain.Transaction, error)
	CreateTransaction(ctx context.Context, txn domain.Transaction) error
	UpdateTransaction(ctx context.Context, txn domain.Transaction) error
	AcquireLock(ctx context.Context, lock domain.ResourceLock) error
	ReleaseLock(ctx context.Context, key string) error
	ListTransactionsByOwner(ctx context.Context, resourceOwnerID string, limit int) ([]domain.Transaction, error)
}

// LedgerService turns a conversational "book it" into a durable, race-free,
// idempotent state transition. Every operation runs inside one repository
// transaction and is guarded by the idempotency ledger, so a retried call
// replays the original result instead of repeating side effects.
type LedgerService struct {
	repo          LedgerRepository
	idem          *IdempotencyLedger
	clock         clock.Clock
	holdTTL       time.Duration
	opMaxAttempts int
}

const (
	opHold    = "hold"
	opConfirm = "confirm"
	opRelease = "release"
)

const (
	defaultHoldTTL       = 15 * time.Minute
	defaultOpMaxAttempts = 10
)

func NewLedgerService(repo LedgerRepository, idem *IdempotencyLedger, clk clock.Clock, opts ...LedgerOption) *LedgerService {
	svc := &LedgerService{
		repo:          repo,
		idem:          idem,
		clock:         clk,
		holdTTL:       defaultHoldTTL,
		opMaxAttempts: defaultOpMaxAttempts,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type LedgerOption func(*LedgerService)

// WithHoldTTL overrides how long a new hold stays claimable.
func WithHoldTTL(d time.Duration) LedgerOption {
	return func(s *LedgerService) {
		if d > 0 {
			s.holdTTL = d
		}
	}
}

type CreateHoldInput struct {
	ResourceOwnerID string
	OfferingID      string
	Date            string
	Time            string
	PartySize       int
	UserID          string
	UserName        string
	UserPhone       string
	Notes           string
	IdempotencyKey  string
}

type HoldResult struct {
	TxID          string    `json:"tx_id"`
	HoldExpiresAt time.Time `json:"hold_expires_at"`
	Summary       string    `json:"summary"`
}

// CreateHold acquires the slot's resource lock and writes a held transaction.
// A second hold on the same (offering, date, time) observes
// ErrResourceUnavailable; a retry with the same idempotency key replays the
// original HoldResult without taking a second lock.
func (s *LedgerService) CreateHold(ctx context.Context, in CreateHoldInput) (HoldResult, error) {
	if in.IdempotencyKey == "" {
		return HoldResult{}, domain.ErrIdempotencyKeyRequired
	}
	if in.PartySize <= 0 {
		return HoldResult{}, domain.ErrInvalidPartySize
	}
	if in.OfferingID == "" || in.Date == "" || in.Time == "" {
		return HoldResult{}, domain.ErrHoldNotFound
	}

	now := s.clock.Now()
	var result HoldResult

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		out, err := s.idem.Reserve(txCtx, ReserveInput{
			Operation:   opHold,
			Key:         in.IdempotencyKey,
			AttemptID:   newID(),
			MaxAttempts: s.opMaxAttempts,
		})
		if err != nil {
			return err
		}
		if !out.CanProceed {
			return replayInto(out.Record, &result)
		}

		txID := newID()
		if err := s.repo.AcquireLock(txCtx, domain.ResourceLock{
			Key:        domain.SlotKey(in.OfferingID, in.Date, in.Time),
			TxID:       txID,
			AcquiredAt: now,
		}); err != nil {
			return err
		}

		txn := domain.Transaction{
			ID:              txID,
			ResourceOwnerID: in.ResourceOwnerID,
			OfferingID:      in.OfferingID,
			Status:          domain.TxStatusHeld,
			HoldExpiresAt:   now.Add(s.holdTTL),
			UserID:          in.UserID,
			UserName:        in.UserName,
			UserPhone:       in.UserPhone,
			Date:            in.Date,
			Time:            in.Time,
			PartySize:       in.PartySize,
			Notes:           in.Notes,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.repo.CreateTransaction(txCtx, txn); err != nil {
			return err
		}

		result = HoldResult{
			TxID:          txID,
			HoldExpiresAt: txn.HoldExpiresAt,
			Summary:       holdSummary(in),
		}
		payload, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("marshal hold result: %w", err)
		}
		return s.idem.Complete(txCtx, opHold, in.IdempotencyKey, payload)
	})
	if err != nil {
		return HoldResult{}, err
	}
	return result, nil
}

type ConfirmInput struct {
	TxID            string
	ResourceOwnerID string
	ActorType       string
	ActorID         string
	IdempotencyKey  string
}

type ConfirmResult struct {
	TxID             string    `json:"tx_id"`
	ConfirmationCode string    `json:"confirmation_code"`
	ConfirmedAt      time.Time `json:"confirmed_at"`
}

// Confirm promotes a held transaction to confirmed, mints the confirmation
// code and frees the slot lock. A hold read past its expiry is committed as
// expired before ErrHoldExpired is reported, so storage converges even on the
// failure path.
func (s *LedgerService) Confirm(ctx context.Context, in ConfirmInput) (ConfirmResult, error) {
	if in.IdempotencyKey == "" {
		return ConfirmResult{}, domain.ErrIdempotencyKeyRequired
	}

	var result ConfirmResult
	var opErr error

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		out, err := s.idem.Reserve(txCtx, ReserveInput{
			Operation:   opConfirm,
			Key:         in.IdempotencyKey,
			AttemptID:   newID(),
			MaxAttempts: s.opMaxAttempts,
		})
		if err != nil {
			return err
		}
		if !out.CanProceed {
			return replayInto(out.Record, &result)
		}

		txn, err := s.repo.GetTransactionForUpdate(txCtx, in.TxID)
		if err != nil {
			return err
		}
		if txn.ResourceOwnerID != in.ResourceOwnerID {
			return domain.ErrHoldNotFound
		}

		switch txn.Status {
		case domain.TxStatusConfirmed:
			return domain.ErrAlreadyConfirmed
		case domain.TxStatusReleased:
			return domain.ErrHoldReleased
		case domain.TxStatusExpired:
			return domain.ErrHoldExpired
		}

		now := s.clock.Now()
		if now.After(txn.HoldExpiresAt) {
			// Lazy expiry: commit the transition, then report expiry.
			txn.Status = domain.TxStatusExpired
			txn.UpdatedAt = now
			if err := s.repo.UpdateTransaction(txCtx, txn); err != nil {
				return err
			}
			if err := s.repo.ReleaseLock(txCtx, txn.SlotKey()); err != nil {
				return err
			}
			opErr = domain.ErrHoldExpired
			return nil
		}

		txn.Status = domain.TxStatusConfirmed
		txn.ConfirmationCode = newConfirmationCode()
		txn.ConfirmedBy = in.ActorType + ":" + in.ActorID
		txn.UpdatedAt = now
		if err := s.repo.UpdateTransaction(txCtx, txn); err != nil {
			return err
		}
		if err := s.repo.ReleaseLock(txCtx, txn.SlotKey()); err != nil {
			return err
		}

		result = ConfirmResult{
			TxID:             txn.ID,
			ConfirmationCode: txn.ConfirmationCode,
			ConfirmedAt:      now,
		}
		payload, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("marshal confirm result: %w", err)
		}
		return s.idem.Complete(txCtx, opConfirm, in.IdempotencyKey, payload)
	})
	if err != nil {
		return ConfirmResult{}, err
	}
	if opErr != nil {
		return ConfirmResult{}, opErr
	}
	return result, nil
}

type ReleaseInput struct {
	ResourceOwnerID string
	TxID            string
	Reason          string
	IdempotencyKey  string
}

type ReleaseResult struct {
	TxID   string                   `json:"tx_id"`
	Status domain.TransactionStatus `json:"status"`
}

// Release lets go of a hold and its slot lock. Releasing a transaction that
// already left held is a no-op success; a confirmed transaction is never
// demoted by this path.
func (s *LedgerService) Release(ctx context.Context, in ReleaseInput) (ReleaseResult, error) {
	if in.IdempotencyKey == "" {
		return ReleaseResult{}, domain.ErrIdempotencyKeyRequired
	}

	var result ReleaseResult

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		out, err := s.idem.Reserve(txCtx, ReserveInput{
			Operation:   opRelease,
			Key:         in.IdempotencyKey,
			AttemptID:   newID(),
			MaxAttempts: s.opMaxAttempts,
		})
		if err != nil {
			return err
		}
		if !out.CanProceed {
			return replayInto(out.Record, &result)
		}

		txn, err := s.repo.GetTransactionForUpdate(txCtx, in.TxID)
		if err != nil {
			return err
		}
		if txn.ResourceOwnerID != in.ResourceOwnerID {
			return domain.ErrHoldNotFound
		}

		now := s.clock.Now()
		if txn.Status == domain.TxStatusHeld {
			if now.After(txn.HoldExpiresAt) {
				txn.Status = domain.TxStatusExpired
			} else {
				txn.Status = domain.TxStatusReleased
				txn.ReleaseReason = in.Reason
			}
			txn.UpdatedAt = now
			if err := s.repo.UpdateTransaction(txCtx, txn); err != nil {
				return err
			}
			if err := s.repo.ReleaseLock(txCtx, txn.SlotKey()); err != nil {
				return err
			}
		}

		result = ReleaseResult{TxID: txn.ID, Status: txn.Status}
		payload, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("marshal release result: %w", err)
		}
		return s.idem.Complete(txCtx, opRelease, in.IdempotencyKey, payload)
	})
	if err != nil {
		return ReleaseResult{}, err
	}
	return result, nil
}

// replayInto decodes a replayed record's payload. A terminally failed record
// has no payload to replay and surfaces as ErrMaxAttemptsExceeded.
func replayInto(rec domain.IdempotencyRecord, target any) error {
	if rec.Status != domain.IdempotencySucceeded {
		return domain.ErrMaxAttemptsExceeded
	}
	if err := json.Unmarshal(rec.Payload, target); err != nil {
		return fmt.Errorf("replay %s/%s: %w", rec.Operation, rec.Key, err)
	}
	return nil
}

func holdSummary(in CreateHoldInput) string {
	return fmt.Sprintf("%s on %s at %s, party of %d", in.OfferingID, in.Date, in.Time, in.PartySize)
}
