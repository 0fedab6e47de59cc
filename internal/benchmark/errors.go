package benchmark

import "errors"

// Sentinel errors for the benchmarking engine.
var (
	// ErrGroupUnavailable means the tenant's peer group was suppressed by
	// the aggregator. Statistical absence, not a failure: the caller should
	// message "not enough peers yet", never retry with looser anonymity.
	ErrGroupUnavailable = errors.New("benchmark group unavailable")

	// ErrUnknownMetric means the requested metric is not in the closed set.
	ErrUnknownMetric = errors.New("unknown metric")
)
