package inventory

import "errors"

// Sentinel errors returned by the ledger.  Handlers map ErrCapacityExceeded
// and ErrSlotInactive to 409, ErrSlotNotFound to 404 and ErrInvalidQuantity
// to 400.
var (
	ErrSlotNotFound     = errors.New("time slot not found")
	ErrSlotInactive     = errors.New("time slot is not bookable")
	ErrCapacityExceeded = errors.New("not enough capacity left in time slot")
	ErrInvalidQuantity  = errors.New("ticket quantity must be positive")
	ErrCapacityBelowUse = errors.New("capacity cannot drop below tickets already reserved")
)
