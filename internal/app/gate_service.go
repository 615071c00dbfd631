package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/templeobijnr/easy-islanders/internal/clock"
	"github.com/templeobijnr/easy-islanders/internal/domain"
)

// GateRepository stores the single confirmation slot of each session.
type GateRepository interface {
	UpsertPendingAction(ctx context.Context, action domain.PendingAction) error
	GetPendingAction(ctx context.Context, sessionID string) (*domain.PendingAction, error)
	DeletePendingAction(ctx context.Context, sessionID string) error
}

// TransactionLedger is the slice of LedgerService the gate drives.
type TransactionLedger interface {
	Confirm(ctx context.Context, in ConfirmInput) (ConfirmResult, error)
	Release(ctx context.Context, in ReleaseInput) (ReleaseResult, error)
}

// GateService blocks further agent action until a human affirms or declines
// the session's pending hold. It owns the yes/no vocabulary and the expiry
// buffer that keeps the gate from confirming a hold the ledger is about to
// reject as expired.
type GateService struct {
	repo         GateRepository
	ledger       TransactionLedger
	clock        clock.Clock
	expiryBuffer time.Duration
}

const defaultExpiryBuffer = 30 * time.Second

func NewGateService(repo GateRepository, ledger TransactionLedger, clk clock.Clock, opts ...GateOption) *GateService {
	svc := &GateService{
		repo:         repo,
		ledger:       ledger,
		clock:        clk,
		expiryBuffer: defaultExpiryBuffer,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type GateOption func(*GateService)

// WithExpiryBuffer overrides the margin under which a pending hold is treated
// as already expired.
func WithExpiryBuffer(d time.Duration) GateOption {
	return func(s *GateService) {
		if d > 0 {
			s.expiryBuffer = d
		}
	}
}

// SetPendingAction stores the session's pending action, superseding any prior
// entry. Callers propose at most one action per turn.
func (s *GateService) SetPendingAction(ctx context.Context, action domain.PendingAction) error {
	if action.SessionID == "" || action.ExpectedUserID == "" {
		return domain.ErrUnauthorized
	}
	if action.CreatedAt.IsZero() {
		action.CreatedAt = s.clock.Now()
	}
	return s.repo.UpsertPendingAction(ctx, action)
}

// GetPendingAction returns the entry only to the user who created it; anyone
// else reads the slot as absent.
func (s *GateService) GetPendingAction(ctx context.Context, sessionID, requestingUserID string) (*domain.PendingAction, error) {
	action, err := s.repo.GetPendingAction(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if action == nil || action.ExpectedUserID != requestingUserID {
		return nil, nil
	}
	return action, nil
}

func (s *GateService) ClearPendingAction(ctx context.Context, sessionID string) error {
	return s.repo.DeletePendingAction(ctx, sessionID)
}

type ResolutionOutcome string

const (
	// OutcomeNone: no pending action visible to this user; treat the message
	// as a fresh request.
	OutcomeNone ResolutionOutcome = "none"
	// OutcomeConfirmed: ledger confirm succeeded; ConfirmationCode is set.
	OutcomeConfirmed ResolutionOutcome = "confirmed"
	// OutcomeDeclined: user said no; the hold was released.
	OutcomeDeclined ResolutionOutcome = "declined"
	// OutcomeExpired: the hold ran out before it could be confirmed.
	// RetrySuggested is set when the user had affirmed and may want to rebook.
	OutcomeExpired ResolutionOutcome = "expired"
	// OutcomeUnrecognized: reply matched neither vocabulary; the action stays
	// pending and Action.Summary should be shown again.
	OutcomeUnrecognized ResolutionOutcome = "unrecognized"
	// OutcomeDeferred: the action kind is not ledger-wired; Intent carries the
	// classification and resolution belongs to the orchestrator.
	OutcomeDeferred ResolutionOutcome = "deferred"
	// OutcomeFailed: the ledger rejected the confirm terminally.
	OutcomeFailed ResolutionOutcome = "failed"
)

type ReplyIntent string

const (
	IntentAffirm  ReplyIntent = "affirm"
	IntentNegate  ReplyIntent = "negate"
	IntentUnknown ReplyIntent = "unknown"
)

type Resolution struct {
	Outcome          ResolutionOutcome
	Intent           ReplyIntent
	Action           *domain.PendingAction
	ConfirmationCode string
	RetrySuggested   bool
}

// Resolve classifies a raw user reply against the pending action. The pending
// slot is cleared on every terminal path; it survives only an unrecognized
// reply on a still-live hold.
func (s *GateService) Resolve(ctx context.Context, sessionID, userID, text string) (Resolution, error) {
	action, err := s.GetPendingAction(ctx, sessionID, userID)
	if err != nil {
		return Resolution{}, err
	}
	if action == nil {
		return Resolution{Outcome: OutcomeNone, Intent: classifyReply(text)}, nil
	}

	intent := classifyReply(text)

	// Too close to expiry: the ledger would reject the confirm by the time
	// the call lands, whatever the reply says.
	remaining := action.HoldExpiresAt.Sub(s.clock.Now())
	if remaining < s.expiryBuffer {
		if err := s.repo.DeletePendingAction(ctx, sessionID); err != nil {
			return Resolution{}, err
		}
		return Resolution{Outcome: OutcomeExpired, Intent: intent, Action: action}, nil
	}

	if intent == IntentUnknown {
		return Resolution{Outcome: OutcomeUnrecognized, Intent: intent, Action: action}, nil
	}

	if action.Kind != domain.KindConfirmTransaction {
		if err := s.repo.DeletePendingAction(ctx, sessionID); err != nil {
			return Resolution{}, err
		}
		return Resolution{Outcome: OutcomeDeferred, Intent: intent, Action: action}, nil
	}

	switch intent {
	case IntentAffirm:
		res, confirmErr := s.ledger.Confirm(ctx, ConfirmInput{
			TxID:            action.TxID,
			ResourceOwnerID: action.ResourceOwnerID,
			ActorType:       "user",
			ActorID:         userID,
			IdempotencyKey:  gateKey(sessionID, action.TxID),
		})
		if confirmErr != nil && domain.IsRetryable(confirmErr) {
			// Leave the slot intact: the orchestrator retries the whole turn.
			return Resolution{}, confirmErr
		}
		if err := s.repo.DeletePendingAction(ctx, sessionID); err != nil {
			return Resolution{}, err
		}
		switch {
		case confirmErr == nil:
			return Resolution{
				Outcome:          OutcomeConfirmed,
				Intent:           intent,
				Action:           action,
				ConfirmationCode: res.ConfirmationCode,
			}, nil
		case errors.Is(confirmErr, domain.ErrHoldExpired):
			return Resolution{Outcome: OutcomeExpired, Intent: intent, Action: action, RetrySuggested: true}, nil
		default:
			return Resolution{Outcome: OutcomeFailed, Intent: intent, Action: action}, confirmErr
		}

	case IntentNegate:
		_, releaseErr := s.ledger.Release(ctx, ReleaseInput{
			ResourceOwnerID: action.ResourceOwnerID,
			TxID:            action.TxID,
			Reason:          "declined by user",
			IdempotencyKey:  gateKey(sessionID, action.TxID),
		})
		if releaseErr != nil && domain.IsRetryable(releaseErr) {
			return Resolution{}, releaseErr
		}
		if err := s.repo.DeletePendingAction(ctx, sessionID); err != nil {
			return Resolution{}, err
		}
		if releaseErr != nil {
			return Resolution{Outcome: OutcomeFailed, Intent: intent, Action: action}, releaseErr
		}
		return Resolution{Outcome: OutcomeDeclined, Intent: intent, Action: action}, nil
	}

	return Resolution{Outcome: OutcomeUnrecognized, Intent: intent, Action: action}, nil
}

func gateKey(sessionID, txID string) string {
	return sessionID + ":" + txID
}

var affirmations = map[string]struct{}{
	"yes":     {},
	"y":       {},
	"yeah":    {},
	"yep":     {},
	"yup":     {},
	"sure":    {},
	"ok":      {},
	"okay":    {},
	"confirm": {},
	"evet":    {}, // Turkish
	"si":      {}, // Spanish
	"sí":      {},
	"oui":     {}, // French
}

var negations = map[string]struct{}{
	"no":         {},
	"n":          {},
	"nope":       {},
	"nah":        {},
	"cancel":     {},
	"stop":       {},
	"nevermind":  {},
	"never mind": {},
	"decline":    {},
	"hayır":      {}, // Turkish
	"hayir":      {},
	"non":        {}, // French
}

func classifyReply(text string) ReplyIntent {
	normalized := strings.ToLower(strings.TrimSpace(text))
	normalized = strings.TrimRight(normalized, "!.?,")
	normalized = strings.TrimSpace(normalized)

	if _, ok := affirmations[normalized]; ok {
		return IntentAffirm
	}
	if _, ok := negations[normalized]; ok {
		return IntentNegate
	}
	return IntentUnknown
}
