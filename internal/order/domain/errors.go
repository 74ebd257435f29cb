package domain

import "errors"

var (
	// ErrValidation is returned for malformed input, always before any
	// mutation happens.
	ErrValidation = errors.New("validation error")
	// ErrOrderNotFound is returned when no order matches the given ID.
	ErrOrderNotFound = errors.New("order not found")
	// ErrInvalidStateTransition is returned for edges outside the state
	// table; the order is left untouched.
	ErrInvalidStateTransition = errors.New("invalid state transition")
	// ErrNotOrderOwner is returned when the acting user does not own the
	// order it tries to mutate.
	ErrNotOrderOwner = errors.New("actor does not own this order")
)
