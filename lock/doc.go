// Package lock provides process-local keyed mutual exclusion and a retrying
// critical-section guard built on top of it.
//
// # Registry
//
// [Registry] maps arbitrary string keys to lock handles. Handles are created
// on first use and evicted once nobody holds or waits on them, so the map stays
// bounded by the number of keys currently in contention.
//
// # Guard
//
// [Guard] acquires a handle with a bounded wait per attempt, runs a unit of
// work, and always releases. Only lock acquisition is retried; errors returned
// by the unit of work propagate unchanged.
//
// # What this package must NOT do
//
//   - Import forumauth, jwt, or session.
//   - Retry business-logic failures.
//   - Hold a handle after Run returns.
package lock
