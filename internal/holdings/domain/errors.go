package domain

import "errors"

var (
	// ErrInsufficientHoldings is returned when a sell or reversal asks for
	// more shares than the position holds.
	ErrInsufficientHoldings = errors.New("insufficient holdings")
	// ErrHoldingNotFound is returned when no position exists for the
	// (user, listing) pair.
	ErrHoldingNotFound = errors.New("holding not found")
)
