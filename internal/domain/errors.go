package domain

import "errors"

// Domain errors represent error conditions in the paneld domain.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrRegistryFull is returned when registering a panel beyond capacity.
	ErrRegistryFull = errors.New("paneld: panel registry full")

	// ErrInvalidRotation is returned for rotation values outside 0..3.
	ErrInvalidRotation = errors.New("paneld: invalid rotation")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("paneld: invalid configuration")
)
