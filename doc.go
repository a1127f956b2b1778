// Package arenax is the token lifecycle and session management core of the
// ArenaX platform: issuance, validation, single-use refresh, revocation,
// signing-key rotation, and abuse detection for the bearer credentials that
// authorize API calls.
//
// The package is designed for concurrent server workloads: Engine methods
// are safe to call from many goroutines after initialization through
// [Builder.Build]. All cross-process coordination happens through Redis,
// which must provide per-key TTL and atomic SETNX; the engine itself caches
// nothing across calls, so every decision observes the store's current view.
//
// # Architecture boundaries
//
// arenax is the public surface. It exposes [Engine], [Builder], [Config],
// the sentinel error taxonomy, and value types ([TokenPair],
// [AnalyticsSnapshot], [MetricsSnapshot]). Flow orchestration and audit
// dispatch live under internal/ and are never exported. The HTTP transport
// that extracts bearer tokens and maps errors to status codes is an
// external collaborator, as are registration, password, and payment flows.
//
// # Failure isolation
//
// Credential outcomes (ErrInvalidToken through ErrSuspiciousActivity) are
// final: retrying a rejected credential changes nothing, so the engine
// never retries internally. ErrStoreUnavailable is the one transient kind;
// callers decide whether to retry or degrade.
package arenax
