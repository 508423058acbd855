package sentinel

import "errors"

// Store-boundary facts. Stores return these wrapped with context
// (fmt.Errorf("...: %w", sentinel.ErrNotFound)); services translate them into
// domain errors. They describe the state of a record, never request validity.
var (
	ErrNotFound     = errors.New("not found")
	ErrExpired      = errors.New("expired")
	ErrAlreadyUsed  = errors.New("already used")
	ErrMismatch     = errors.New("binding mismatch")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
