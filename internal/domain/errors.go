package domain

import "errors"

// Sentinel errors for storage and account operations
var (
	// ErrQuotaExceeded indicates a write would exceed the storage byte
	// budget. The caller should prompt for smaller files or deletions.
	ErrQuotaExceeded = errors.New("storage quota exceeded")

	// ErrStorage indicates a generic storage failure (transaction
	// aborted, store unreachable, malformed key)
	ErrStorage = errors.New("storage operation failed")

	// ErrNotFound indicates the requested catalog entry does not exist
	ErrNotFound = errors.New("catalog entry not found")

	// ErrInvalidCredentials indicates a failed login
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrUserExists indicates a registration with a taken username
	ErrUserExists = errors.New("username already registered")

	// ErrCodeInvalid indicates a premium code that is unknown or already
	// redeemed
	ErrCodeInvalid = errors.New("premium code is invalid or used")
)
