package privacy

import "errors"

// Sentinel errors for the privacy layer.
var (
	// ErrBudgetExhausted is a hard stop for the (tenant, category) pair until
	// an administrative reset. It is never downgraded to a zero-noise release.
	ErrBudgetExhausted = errors.New("privacy budget exhausted")

	// ErrInvalidParameter covers non-positive epsilon or sensitivity. The
	// Laplace scale is always sensitivity/epsilon; there is no silent
	// special-casing of degenerate parameters.
	ErrInvalidParameter = errors.New("invalid privacy parameter")
)
