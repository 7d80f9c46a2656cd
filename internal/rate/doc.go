// Package rate provides Redis-backed fixed-window throttles for the login and
// renewal exchanges.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes:
//   - fl:u:  failed logins per username
//   - fl:ip: failed logins per client IP
//   - fr:    renewals per principal
//
// # What this package must NOT do
//
//   - Decide what a throttled request looks like to the client.
//   - Be imported outside the forumauth module.
package rate
