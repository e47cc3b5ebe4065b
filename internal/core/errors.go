package core

import "errors"

// Error taxonomy for the engine. Handlers map these to status codes;
// anything else coming out of an operation is treated as ErrUnavailable.
var (
	// ErrInvalidInput marks malformed or empty caller data. Client error,
	// never retried server-side.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound marks an absent or expired room or round.
	ErrNotFound = errors.New("not found")

	// ErrRateLimited marks a caller over the room-creation quota.
	ErrRateLimited = errors.New("rate limited")

	// ErrConflict is reserved for allocator exhaustion. The allocator
	// resolves it internally via the timestamp fallback, so it never
	// reaches a caller.
	ErrConflict = errors.New("conflict")

	// ErrUnavailable marks a store or transport failure.
	ErrUnavailable = errors.New("unavailable")
)

// Delivery errors returned by PushConnection.TrySend. A closed connection
// is permanently gone and gets pruned from the registry; backpressure is
// transient and only drops the single message.
var (
	ErrConnClosed   = errors.New("connection closed")
	ErrBackpressure = errors.New("backpressure")
)
