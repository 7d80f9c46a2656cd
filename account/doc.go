// Package account is the in-memory account directory used by the forumauth
// server. It verifies username/password pairs against argon2id hashes and
// resolves principals into identities.
//
// A Directory satisfies both [forumauth.AccountVerifier] and
// [forumauth.IdentityLoader]. Accounts live for the lifetime of the process.
package account
