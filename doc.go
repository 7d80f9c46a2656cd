// Package forumauth is the authentication core of the forum backend: HS256
// access credentials, Redis-tracked renewal credentials, and a keyed critical
// section that serializes every change to a principal's active renewal entry.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Credentials
//
// An access credential is short-lived and stateless; its validity depends only
// on signature, issuer and expiry. A renewal credential is long-lived and is
// valid only while it is byte-equal to the value stored for its principal.
// Issuing a new renewal credential overwrites the stored one, so at most one
// renewal credential per principal is active at any time.
//
// # Architecture boundaries
//
// forumauth is the public surface. It exposes [Engine], [Builder], [Config] and
// value types (Identity, TokenPair, MetricsSnapshot). Flow orchestration, rate
// limiting and audit dispatch live under internal/. HTTP adapters live in the
// middleware package.
//
// # What this package must NOT do
//
//   - Expose Redis clients or key layouts in its public API.
//   - Cache the active renewal value locally. Redis is the single source of truth.
//   - Import any sub-package that re-imports forumauth (no import cycles).
package forumauth
