// Package flows contains pure-function orchestrators for the mutating Engine
// operations: login, renewal rotation, renewal issuance and revocation.
//
// Each flow function (RunLogin, RunRotate, RunIssueRenewal, RunRevoke) accepts
// a typed dependency struct and returns a result carrying either the payload or
// a classified failure. The Engine maps failure kinds onto its public errors,
// audit events and metrics.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the token codec, the session store, the
// rate limiter and the critical-section guard. They do NOT own any of these
// resources; ownership stays with the Engine. Store reads that decide whether
// a renewal credential is active always happen inside the section supplied by
// the WithinSection dependency.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import forumauth (to avoid import cycles).
//   - Perform I/O directly. All I/O is mediated through dependency interfaces.
package flows
