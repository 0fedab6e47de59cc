// Package metricsource reduces raw per-tenant records (appointments,
// payments, client visits) into tenant-level metric snapshots for a
// reporting window.
//
// The raw store is behind the RawSource read contract: deterministic for a
// fixed window, and a missing tenant yields zero metrics rather than an
// error, because a tenant with no appointments still participates in group
// sizing. Extraction is a pure read + reduction with no side effects.
package metricsource
