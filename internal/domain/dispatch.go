package domain

import "time"

type DispatchStatus string

const (
	DispatchSending DispatchStatus = "sending"
	DispatchSent    DispatchStatus = "sent"
	DispatchFailed  DispatchStatus = "failed"
)

// DispatchMessage is the persisted state of one outbound notification,
// keyed by the caller-supplied idempotency key. Attempts only increase;
// once Status is sent it never changes.
type DispatchMessage struct {
	ID                string         `json:"id"`
	Status            DispatchStatus `json:"status"`
	Attempts          int            `json:"attempts"`
	LastAttemptID     string         `json:"last_attempt_id"`
	ProviderMessageID string         `json:"provider_message_id,omitempty"`
	LastError         string         `json:"last_error,omitempty"`
	To                string         `json:"to"`
	Body              string         `json:"body"`
	CorrelationID     string         `json:"correlation_id,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}
