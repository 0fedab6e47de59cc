package domain

import "strings"

// GroupKey identifies an anonymized group by the ordered values of its
// quasi-identifier tuple. Keys are opaque to callers; they exist so groups
// can be cached and compared without re-deriving the tuple.
type GroupKey string

// MakeGroupKey builds the key for an ordered list of quasi-identifier values.
func MakeGroupKey(values []string) GroupKey {
	return GroupKey(strings.Join(values, "|"))
}

// PercentileLadder holds the released order statistics for one metric within
// a group, at the fixed 10/25/50/75/90 rungs.
type PercentileLadder struct {
	P10 float64 `json:"p10"`
	P25 float64 `json:"p25"`
	P50 float64 `json:"p50"`
	P75 float64 `json:"p75"`
	P90 float64 `json:"p90"`
}

// Rungs returns the ladder as parallel (percentile, value) slices, ascending.
func (l PercentileLadder) Rungs() ([]float64, []float64) {
	return []float64{10, 25, 50, 75, 90},
		[]float64{l.P10, l.P25, l.P50, l.P75, l.P90}
}

// GroupStats holds the aggregate statistics released for one metric within a
// group.
type GroupStats struct {
	Mean        float64          `json:"mean"`
	Percentiles PercentileLadder `json:"percentiles"`
}

// AnonymizedGroup is a cross-tenant derived artifact: the quasi-identifier
// tuple defining the group, its membership count, and per-metric aggregates.
// Invariant: MemberCount >= the aggregation threshold k, or the group was
// suppressed and does not exist at all. A group is owned by the aggregation
// process and is never attributable to a single tenant.
type AnonymizedGroup struct {
	Key         GroupKey              `json:"key"`
	Identifiers []QuasiIdentifier     `json:"identifiers"`
	Values      []string              `json:"values"`
	MemberCount int                   `json:"member_count"`
	Stats       map[Metric]GroupStats `json:"stats"`
}
