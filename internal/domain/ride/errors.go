package ride

import "errors"

var (
	ErrRideNotFound  = errors.New("ride not found")
	ErrStaleState    = errors.New("ride state changed since it was read")
	ErrNotEligible   = errors.New("driver is not eligible for this ride")
	ErrNoDriverFound = errors.New("no driver accepted within the match window")
)
