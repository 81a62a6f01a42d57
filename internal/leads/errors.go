package leads

import "errors"

var (
	// ErrInvalidIntent is returned when an intent label is not one of the known values
	ErrInvalidIntent = errors.New("leads: invalid intent")
)
