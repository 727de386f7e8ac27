package models

import "errors"

var (
	// ErrUnresolvedSymbol means a ticker has no active alias of the requested
	// symbol type. Never fall back to the canonical ID itself.
	ErrUnresolvedSymbol = errors.New("unresolved symbol")

	// ErrUnknownSymbol means no ticker owns the given alias value.
	ErrUnknownSymbol = errors.New("unknown symbol")

	// ErrInvalidTransition means an artifact row was not in pending state when
	// a terminal transition was attempted. Indicates a logic bug, not a
	// retryable condition.
	ErrInvalidTransition = errors.New("invalid artifact status transition")

	// ErrNoData means no raw price rows exist for the requested window.
	ErrNoData = errors.New("no raw data")
)
