package sync

import (
	"errors"
	"fmt"

	"github.com/arden/fieldsync/internal/syncclient"
)

// ConflictError means the remote rejected a push because its copy changed
// since this device last saw it. Conflicts are parked for operator
// resolution and never retried automatically.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("conflict: %s", e.Message)
	}
	return "conflict"
}

// RetryableError means the push failed transiently (server-side error or
// transport failure) and should be retried with backoff.
type RetryableError struct {
	Message string
	Err     error
}

func (e *RetryableError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "retryable failure"
}

func (e *RetryableError) Unwrap() error { return e.Err }

// PermanentError means the push can never succeed as-is (validation, size,
// permission). The entry's retry budget is spent immediately and the server
// message is surfaced verbatim.
type PermanentError struct {
	Message string
}

func (e *PermanentError) Error() string { return e.Message }

// Classify maps an error from a handler's remote call onto the retry
// taxonomy: 409 is a conflict, 5xx and transport failures are retryable,
// every other 4xx is permanent. Errors already classified pass through.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var conflict *ConflictError
	var retryable *RetryableError
	var permanent *PermanentError
	if errors.As(err, &conflict) || errors.As(err, &retryable) || errors.As(err, &permanent) {
		return err
	}

	var serr *syncclient.StatusError
	if errors.As(err, &serr) {
		switch {
		case serr.StatusCode == 409:
			return &ConflictError{Message: serr.Message}
		case serr.StatusCode >= 500:
			return &RetryableError{Message: serr.Error(), Err: err}
		default:
			msg := serr.Message
			if msg == "" {
				msg = serr.Error()
			}
			return &PermanentError{Message: msg}
		}
	}
	if errors.Is(err, syncclient.ErrUnauthorized) || errors.Is(err, syncclient.ErrForbidden) {
		return &PermanentError{Message: err.Error()}
	}

	// Transport-level failure, no HTTP status to go on
	return &RetryableError{Message: err.Error(), Err: err}
}
