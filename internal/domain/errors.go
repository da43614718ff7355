package domain

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// state machine
	ErrOutOfOrder   = errors.New("attribute out of order")
	ErrInvalidValue = errors.New("invalid value")
	ErrInvariant    = errors.New("invariant violated")

	// storage
	ErrConflict = errors.New("session changed concurrently")
	ErrLocked   = errors.New("chat is busy")

	// remote provider
	ErrRemoteRequest   = errors.New("remote request failed")
	ErrRemoteMalformed = errors.New("remote response malformed")
)
