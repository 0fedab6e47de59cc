package forecast

import "errors"

var (
	// ErrInsufficientHistory is returned when a tenant has fewer complete
	// periods of history than the minimum the trend fit requires.
	ErrInsufficientHistory = errors.New("forecast: insufficient history")

	// ErrInvalidHorizon is returned for a non-positive forecast horizon.
	ErrInvalidHorizon = errors.New("forecast: invalid horizon")
)
