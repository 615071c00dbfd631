package domain

import (
	"encoding/json"
	"time"
)

type IdempotencyStatus string

const (
	IdempotencyPending   IdempotencyStatus = "pending"
	IdempotencySucceeded IdempotencyStatus = "succeeded"
	IdempotencyFailed    IdempotencyStatus = "failed"
)

// IdempotencyRecord is the generic dedup record scoped by (operation, key).
// First writer wins; replayers observe the first writer's payload without
// re-executing side effects. A pending record with attempts below MaxAttempts
// may be re-claimed by a new attempt; reaching MaxAttempts flips it to failed.
type IdempotencyRecord struct {
	Operation     string
	Key           string
	Status        IdempotencyStatus
	Attempts      int
	MaxAttempts   int
	LastAttemptID string
	Payload       json.RawMessage
	LastError     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ExpiresAt     *time.Time
}

// Terminal reports whether the record can never be claimed again.
func (r IdempotencyRecord) Terminal() bool {
	return r.Status == IdempotencySucceeded || r.Status == IdempotencyFailed
}
