// Package session persists the single active renewal credential per principal
// in Redis.
//
// # Storage model
//
// One key per principal holds the renewal credential string with a Redis TTL
// equal to the credential's validity window. Put overwrites unconditionally;
// overwriting is how a superseded credential stops being active.
//
// # Architecture boundaries
//
// This package owns the [Store] and nothing else. It does NOT interpret
// credentials, take locks, or retry: serialization and retry policy belong to
// the Engine.
//
// # What this package must NOT do
//
//   - Import forumauth, jwt, or lock (no upward imports).
//   - Cache values locally; Redis is the source of truth.
//   - Mask a Redis failure as a missing entry.
package session
