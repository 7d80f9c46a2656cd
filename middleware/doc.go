// Package middleware adapts a forumauth.Engine to net/http.
//
// # Handlers
//
//   - [Authenticate] resolves `Authorization: Bearer` into a request identity.
//   - [RequireIdentity] rejects requests that carry none.
//   - [Login] exchanges a username and password for an access credential and
//     a renewal cookie.
//   - [Refresh] rotates the renewal credential found by the [Extractor] chain.
//   - [Logout] revokes it and clears the cookie.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. Every credential
// decision is made by the Engine; handlers only pick status codes.
//
// # What this package must NOT do
//
//   - Parse or create credentials directly.
//   - Access Redis.
//   - Echo internal error text to clients.
package middleware
