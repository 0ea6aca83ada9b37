// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across storage/gateway/session layers.
var (
	// ErrNotFound indicates the requested entity (storage key, remote resource) does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates the server rejected the credential (HTTP 401).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNoCredential indicates an operation needs a credential but none is stored.
	ErrNoCredential = errors.New("no credential")

	// ErrPositionNotFound indicates a lesson position that is not part of the course tree.
	ErrPositionNotFound = errors.New("position not found")

	// ErrEnvelope indicates a response body that matches neither {data: T} nor T.
	ErrEnvelope = errors.New("unexpected response envelope")

	// ErrInvalidInput indicates a caller supplied an unusable argument.
	ErrInvalidInput = errors.New("invalid input")
)
