package services

import (
	"errors"
	"time"
)

// Classified remote errors. Every non-success response from the remote
// system is translated into exactly one of these kinds before any caller
// sees it; the retry policy and the orchestrator branch on the kind.

// AuthError is a 401/403 from the remote system. Not transient.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return "remote auth error: " + e.Message
}

// RateLimitError is a 429, optionally carrying the server's retry-after hint.
type RateLimitError struct {
	Message    string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return "remote rate limit: " + e.Message
}

// NotFoundError is a 404. On updates it signals an orphan (the remote
// entry was deleted out-of-band); on creates it signals a dead remote
// project.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	return "remote not found: " + e.Message
}

// ValidationError is a 400/422, with the remote system's field-level
// detail flattened into the message. Not transient.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return "remote validation error: " + e.Message
}

// NetworkError covers 5xx, unexpected status codes, transport failures
// and unparseable success bodies.
type NetworkError struct {
	Message    string
	StatusCode int
}

func (e *NetworkError) Error() string {
	return "remote network error: " + e.Message
}

var (
	// ErrConnectionMissing is returned when a sync is requested for a
	// user with no remote connection configured.
	ErrConnectionMissing = errors.New("no remote connection configured for user")

	// ErrSyncInProgress is returned when the single-flight run slot for
	// the connection is already taken. Callers retry later; nothing queues.
	ErrSyncInProgress = errors.New("a sync is already running for this connection")
)
