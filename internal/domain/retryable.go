package domain

import "errors"

// RetryableError signals a transient store or provider failure that is safe
// to retry end to end: the guarded side effect either did not run or is
// deduplicated by the idempotency key on the next attempt.
type RetryableError struct {
	Op  string
	Err error
}

func (e *RetryableError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error { return e.Err }

func (e *RetryableError) Retryable() bool { return true }

// Retryable wraps err as a RetryableError under op.
func Retryable(op string, err error) error {
	return &RetryableError{Op: op, Err: err}
}

// IsRetryable reports whether err is (or wraps) a RetryableError.
func IsRetryable(err error) bool {
	var r *RetryableError
	return errors.As(err, &r)
}
