package anonymize

import (
	"sort"

	"github.com/bookwell/insights/internal/domain"
)

// percentile computes the p-th percentile (0-100) of sorted values using
// linear interpolation between the two nearest order statistics. Ties resolve
// to the lower-indexed value because rank falls exactly on it.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(n-1)
	lo := int(rank)
	if lo >= n-1 {
		return sorted[n-1]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

// ladder computes the fixed 10/25/50/75/90 percentile ladder over values.
// The input slice is sorted in place.
func ladder(values []float64) domain.PercentileLadder {
	sort.Float64s(values)
	return domain.PercentileLadder{
		P10: percentile(values, 10),
		P25: percentile(values, 25),
		P50: percentile(values, 50),
		P75: percentile(values, 75),
		P90: percentile(values, 90),
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
