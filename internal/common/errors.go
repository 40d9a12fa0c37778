// Package common defines shared sentinel errors used across the notebook
// pipeline, the chat handlers and the web viewer. Callers should use
// errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// ErrorStorageUnavailable means the database could not be reached at all;
	// nothing was written.
	ErrorStorageUnavailable = errors.New("storage unavailable")

	// ErrorValidation: a required submission field is missing. Callers must
	// reject the record before the writer runs.
	ErrorValidation = errors.New("validation error")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
)
