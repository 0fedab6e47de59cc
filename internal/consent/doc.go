// Package consent implements the per-tenant, per-category consent gate.
//
// Every public entry point of the engine checks consent here before touching
// tenant data; a missing grant is a hard ErrConsentRequired, never a
// best-effort response. Consent transitions are append-only (the current
// state is the most recent record) and each transition lands in the
// immutable audit trail. Withdrawal fans out to registered invalidators so
// no cached derived result survives it.
package consent
