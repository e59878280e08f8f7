package constants

import "errors"

// Error taxonomy for the sync/pairing/hold core. Handlers map these to HTTP
// status codes; everything else is treated as a storage failure.
var (
	// ErrUnauthorized means the tenant/key pair failed verification. The
	// whole call is rejected before any write happens.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrConflict covers "no change made" outcomes: duplicate idempotency
	// key, already-consumed pairing code, capacity exceeded on a hold.
	// Retrying the same request unchanged will not help.
	ErrConflict = errors.New("conflict")

	// ErrNotFound is returned for unknown tenants, codes and records.
	ErrNotFound = errors.New("not found")

	// ErrInvalid marks malformed input caught after decoding, like an
	// unparseable slot time or a non-positive quantity.
	ErrInvalid = errors.New("invalid request")
)
