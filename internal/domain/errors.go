package domain

import "errors"

// Error taxonomy for the sync layer. Call sites wrap these with
// fmt.Errorf("...: %w", ...) so callers match with errors.Is while the
// message keeps the identifying key.
var (
	// ErrAuthRequired means an operation needing a bearer token was called
	// without one. Never retried; the caller must obtain a token first.
	ErrAuthRequired = errors.New("authentication token is missing")

	// ErrRemote means the server declared a failure or answered with a
	// non-success status.
	ErrRemote = errors.New("remote error")

	// ErrNetwork means the transport failed or timed out before a usable
	// response arrived.
	ErrNetwork = errors.New("network error")

	// ErrNotFound is the store's read-miss sentinel.
	ErrNotFound = errors.New("not found")

	// ErrNotFoundOffline means an offline read found nothing cached.
	ErrNotFoundOffline = errors.New("story not found in offline storage")

	// ErrOffline means an online-only operation was attempted while offline.
	ErrOffline = errors.New("network unavailable")

	ErrStoreUnavailable = errors.New("local store unavailable")
	ErrWriteFailed      = errors.New("store write failed")
	ErrReadFailed       = errors.New("store read failed")
)
