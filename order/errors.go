package order

import "errors"

// Error kinds for the order state machine, spec.md §4.2/§7.
var (
	ErrInvalidStateTransition = errors.New("order: invalid state transition")
	ErrAmendNotSupported      = errors.New("order: amend not supported on market orders")
	ErrQuantityBelowFilled    = errors.New("order: amended quantity below filled quantity")
	ErrTimeInForceInvalid     = errors.New("order: time in force invalid for order type")
	ErrQuantityNonPositive    = errors.New("order: quantity must be positive")
)
