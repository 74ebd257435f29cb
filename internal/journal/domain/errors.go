package domain

import "errors"

var (
	// ErrTamperDetected means a stored hash disagrees with its
	// recomputation. Fatal for the chain; never auto-corrected.
	ErrTamperDetected = errors.New("journal tamper detected")
	// ErrJournalHalted means appends are refused because a tamper was
	// detected and not yet resolved by an operator.
	ErrJournalHalted = errors.New("journal halted after tamper detection")
	// ErrEmptyAppend means Append was called with no entries.
	ErrEmptyAppend = errors.New("append requires at least one entry")
	// ErrInvalidRange means verify was called with to < from.
	ErrInvalidRange = errors.New("invalid sequence range")
)
