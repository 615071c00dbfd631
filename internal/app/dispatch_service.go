package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"

	"github.com/templeobijnr/easy-islanders/internal/clock"
	"github.com/templeobijnr/easy-islanders/internal/domain"
)

// MessagingProvider is the external best-effort send capability. It is not
// exactly-once on its own; DispatchService wraps it so it effectively is.
type MessagingProvider interface {
	Send(ctx context.Context, to, body string) (providerMessageID string, err error)
}

// DispatchService delivers outbound notifications at most once per
// idempotency key. The reservation is persisted before the provider is
// called (write-before-send); when even that persist fails the send is
// refused and the caller gets a retryable error (fail-closed).
type DispatchService struct {
	idem        *IdempotencyLedger
	provider    MessagingProvider
	clock       clock.Clock
	maxAttempts int
	logger      *log.Logger
}

const opDispatch = "dispatch"

const defaultDispatchMaxAttempts = 5

func NewDispatchService(idem *IdempotencyLedger, provider MessagingProvider, clk clock.Clock, opts ...DispatchOption) *DispatchService {
	svc := &DispatchService{
		idem:        idem,
		provider:    provider,
		clock:       clk,
		maxAttempts: defaultDispatchMaxAttempts,
		logger:      log.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type DispatchOption func(*DispatchService)

// WithDispatchMaxAttempts overrides how many sends a key may consume before
// the record is terminally failed.
func WithDispatchMaxAttempts(n int) DispatchOption {
	return func(s *DispatchService) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithDispatchLogger overrides the logger used for best-effort failure marks.
func WithDispatchLogger(logger *log.Logger) DispatchOption {
	return func(s *DispatchService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

type SendInput struct {
	To             string
	Body           string
	CorrelationID  string
	IdempotencyKey string
	TraceID        string
}

// Send delivers one notification. Replays with the same idempotency key
// return the stored record without touching the provider; a key whose
// attempts are exhausted returns the failed record plus
// ErrMaxAttemptsExceeded.
func (s *DispatchService) Send(ctx context.Context, in SendInput) (domain.DispatchMessage, error) {
	if in.IdempotencyKey == "" {
		return domain.DispatchMessage{}, domain.ErrIdempotencyKeyRequired
	}
	if in.To == "" || in.Body == "" {
		return domain.DispatchMessage{}, fmt.Errorf("dispatch: to and body are required")
	}

	now := s.clock.Now()
	attemptID := in.TraceID + ":" + strconv.FormatInt(now.UnixNano(), 10)

	msg := domain.DispatchMessage{
		ID:            in.IdempotencyKey,
		Status:        domain.DispatchSending,
		LastAttemptID: attemptID,
		To:            in.To,
		Body:          in.Body,
		CorrelationID: in.CorrelationID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return domain.DispatchMessage{}, fmt.Errorf("marshal dispatch record: %w", err)
	}

	out, err := s.idem.Reserve(ctx, ReserveInput{
		Operation:   opDispatch,
		Key:         in.IdempotencyKey,
		AttemptID:   attemptID,
		MaxAttempts: s.maxAttempts,
		Payload:     payload,
	})
	if err != nil {
		// Could not persist "I am about to send": refuse to send.
		return domain.DispatchMessage{}, err
	}
	if !out.CanProceed {
		stored, err := messageFromRecord(out.Record)
		if err != nil {
			return domain.DispatchMessage{}, err
		}
		if stored.Status == domain.DispatchFailed {
			return stored, domain.ErrMaxAttemptsExceeded
		}
		return stored, nil
	}

	providerMessageID, sendErr := s.provider.Send(ctx, in.To, in.Body)
	if sendErr != nil {
		// Best-effort failure marker; its own failure must not mask sendErr.
		if markErr := s.idem.RecordFailure(ctx, opDispatch, in.IdempotencyKey, sendErr.Error()); markErr != nil {
			s.logger.Printf("dispatch: failed to persist failure marker key=%s: %v", in.IdempotencyKey, markErr)
		}
		return domain.DispatchMessage{}, domain.Retryable("dispatch send", sendErr)
	}

	msg.Status = domain.DispatchSent
	msg.ProviderMessageID = providerMessageID
	msg.Attempts = out.Record.Attempts
	msg.UpdatedAt = s.clock.Now()
	sentPayload, err := json.Marshal(msg)
	if err != nil {
		return domain.DispatchMessage{}, fmt.Errorf("marshal sent record: %w", err)
	}
	if err := s.idem.Complete(ctx, opDispatch, in.IdempotencyKey, sentPayload); err != nil {
		return domain.DispatchMessage{}, err
	}
	return msg, nil
}

// messageFromRecord rebuilds the caller-facing view of a dispatch record,
// overlaying the ledger's attempt bookkeeping on the stored payload.
func messageFromRecord(rec domain.IdempotencyRecord) (domain.DispatchMessage, error) {
	var msg domain.DispatchMessage
	if err := json.Unmarshal(rec.Payload, &msg); err != nil {
		return domain.DispatchMessage{}, fmt.Errorf("decode dispatch record %s: %w", rec.Key, err)
	}
	msg.Attempts = rec.Attempts
	msg.LastAttemptID = rec.LastAttemptID
	msg.UpdatedAt = rec.UpdatedAt
	switch rec.Status {
	case domain.IdempotencySucceeded:
		msg.Status = domain.DispatchSent
	case domain.IdempotencyFailed:
		msg.Status = domain.DispatchFailed
		msg.LastError = rec.LastError
	default:
		msg.Status = domain.DispatchSending
		msg.LastError = rec.LastError
	}
	return msg, nil
}
