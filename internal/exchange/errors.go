package exchange

import "errors"

var (
	// ErrInvalidAmount is returned when an execution has a non-positive amount or price.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInsufficientClose is returned when a close exceeds the held leg size.
	// The account never clamps; callers must.
	ErrInsufficientClose = errors.New("insufficient position to close")
	// ErrInvalidParams is returned by NewAccount for out-of-range parameters.
	ErrInvalidParams = errors.New("invalid account params")
)
