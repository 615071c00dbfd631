package domain

import "errors"

var (
	ErrResourceUnavailable    = errors.New("resource unavailable")
	ErrHoldNotFound           = errors.New("hold not found")
	ErrHoldExpired            = errors.New("hold expired")
	ErrHoldReleased           = errors.New("hold released")
	ErrAlreadyConfirmed       = errors.New("hold already confirmed")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrMaxAttemptsExceeded    = errors.New("max attempts exceeded")
	ErrIdempotencyKeyRequired = errors.New("idempotency key required")
	ErrIdempotencyConflict    = errors.New("idempotency conflict")
	ErrInvalidPartySize       = errors.New("invalid party size")
	ErrInvalidID              = errors.New("invalid id")
)
