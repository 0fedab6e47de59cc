// Package anonymize implements the k-anonymity aggregation layer.
//
// Snapshots are partitioned by the exact tuple of quasi-identifier values.
// Partitions with fewer than k members are suppressed outright: they do not
// appear in the output, are not merged into neighbors, and no reason for
// their absence is reported (a reason would itself leak membership size).
package anonymize
