package domain

import "time"

type TransactionStatus string

const (
	TxStatusDraft     TransactionStatus = "draft"
	TxStatusHeld      TransactionStatus = "held"
	TxStatusConfirmed TransactionStatus = "confirmed"
	TxStatusReleased  TransactionStatus = "released"
	TxStatusExpired   TransactionStatus = "expired"
)

// Transaction is the ledger entry for one reservation attempt against an
// offering slot. Transitions are monotonic: held -> confirmed|released|expired.
type Transaction struct {
	ID               string
	ResourceOwnerID  string
	OfferingID       string
	Status           TransactionStatus
	HoldExpiresAt    time.Time
	UserID           string
	UserName         string
	UserPhone        string
	Date             string
	Time             string
	PartySize        int
	Notes            string
	ConfirmationCode string
	ConfirmedBy      string
	ReleaseReason    string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// SlotKey identifies the exclusive resource a held transaction occupies.
func (t Transaction) SlotKey() string {
	return SlotKey(t.OfferingID, t.Date, t.Time)
}

func SlotKey(offeringID, date, timeOfDay string) string {
	return offeringID + "|" + date + "|" + timeOfDay
}

// ResourceLock is the exclusivity token for one (offering, date, time) slot.
// At most one row exists per key; it is deleted when the owning transaction
// leaves held.
type ResourceLock struct {
	Key        string
	TxID       string
	AcquiredAt time.Time
}
