// Package benchmark converts a tenant's own metric value into an industry
// percentile rank against its anonymized peer group.
//
// The engine only ever sees AnonymizedGroup aggregates that already passed
// the k-anonymity threshold, and every group scalar it uses is released
// through the differential-privacy injector. When the aggregator suppressed
// the relevant group the engine propagates "no disclosable benchmark" as
// ErrGroupUnavailable instead of fabricating a comparison from too-small
// data.
package benchmark
