// Package errs defines the error taxonomy shared by the matchmaker's store
// and service layers. The first four are user-facing and returned
// synchronously; ErrStoreConflict is transient and must be retried by the
// caller, never surfaced.
package errs

import "errors"

var (
	// ErrNotFound means the referenced queue, chat or membership does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden means the caller is not authorized for the operation,
	// e.g. a non-creator cancelling a queue or a non-member posting.
	ErrForbidden = errors.New("forbidden")

	// ErrQueueFull means the queue already holds MaxParticipants members.
	ErrQueueFull = errors.New("queue is full")

	// ErrAlreadyClosed means the queue is cancelled or already realized.
	ErrAlreadyClosed = errors.New("queue already closed")

	// ErrInvalidArgument means the request itself is malformed, e.g. a
	// minimum below 2 or an empty message body.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrStoreConflict means the store detected a concurrent modification
	// (serialization failure or deadlock). Callers retry the whole unit of
	// work; exhausting retries escalates to a generic internal failure.
	ErrStoreConflict = errors.New("store conflict")
)
