package domain

import "time"

// ActionKind names what a pending action will do once affirmed. Only
// KindConfirmTransaction is resolved against the ledger directly; other kinds
// are stored and cleared identically but resolved by the orchestrator.
type ActionKind string

const (
	KindConfirmTransaction ActionKind = "confirm_transaction"
)

// PendingAction is the single confirmation slot of one conversation session.
// It is owned by ExpectedUserID; any other caller reads it as absent.
type PendingAction struct {
	SessionID       string
	Kind            ActionKind
	TxID            string
	ResourceOwnerID string
	Summary         string
	HoldExpiresAt   time.Time
	ExpectedUserID  string
	CreatedAt       time.Time
}
