package consent

import "errors"

// Sentinel errors for the consent gate.
var (
	// ErrConsentRequired means the tenant has not granted the requested
	// category. Always recoverable by the user; never silently bypassed.
	ErrConsentRequired = errors.New("consent required")

	// ErrInvalidCategory means the category is not one of the closed set.
	ErrInvalidCategory = errors.New("invalid consent category")
)
