// Package common defines shared constants and sentinel errors used across
// the server, the engines and the vaultctl client. Callers should use
// errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// ErrorInvalidState is returned when acting on a request that is no longer
	// pending, or when a single-use token or pass code is presented again.
	ErrorInvalidState = errors.New("invalid state")

	// ErrorConfiguration means an engine was built without one of its
	// dependencies. It is never retryable.
	ErrorConfiguration = errors.New("engine is not configured")

	// ErrorTransactionFailure wraps any failure inside a cascading write.
	// The transaction has been rolled back when this is returned.
	ErrorTransactionFailure = errors.New("transaction failed")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("forbidden")
	ErrorValidation   = errors.New("validation error")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
