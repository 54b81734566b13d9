package model

import "errors"

// Error kinds shared across components. Callers classify with errors.Is; the
// HTTP layer maps each kind to a status code.
var (
	// ErrUnauthenticated is returned when the caller identity is missing or
	// could not be verified.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrInvalidArgument is returned when a required field is missing or
	// empty after trimming.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrConflict is returned when a uniqueness constraint would be violated,
	// e.g. registering an already-used email.
	ErrConflict = errors.New("conflict")

	// ErrNotFound is returned when a referenced user or post doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable is returned when the underlying store or transport
	// failed; the operation is eligible for retry or event redelivery.
	ErrUnavailable = errors.New("unavailable")
)
