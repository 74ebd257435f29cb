package domain

import "errors"

var (
	// ErrValidation is returned for malformed input, always before any
	// mutation happens.
	ErrValidation = errors.New("validation error")
	// ErrListingNotFound is returned when no listing matches the given ID.
	ErrListingNotFound = errors.New("listing not found")
	// ErrListingNotActive is returned when an order targets a draft or
	// closed listing.
	ErrListingNotActive = errors.New("listing is not active")
	// ErrInsufficientInventory is returned when a reserve asks for more
	// shares than are available.
	ErrInsufficientInventory = errors.New("insufficient inventory")
	// ErrRestockExceedsTotal is returned when a restock would push the pool
	// above the listing's total shares.
	ErrRestockExceedsTotal = errors.New("restock exceeds total shares")
	// ErrReservationNotFound is returned when no reservation matches the
	// given ID.
	ErrReservationNotFound = errors.New("reservation not found")
	// ErrReservationNotHeld is returned when commit or release targets a
	// reservation that is no longer held.
	ErrReservationNotHeld = errors.New("reservation is not held")
	// ErrReservationExpired is returned when commit targets a reservation
	// already released by the expiry sweep.
	ErrReservationExpired = errors.New("reservation expired")
)
