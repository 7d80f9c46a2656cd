// Package password hashes and verifies account passwords with argon2id.
//
// Hashes are PHC strings:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Verify reads the cost parameters from the stored string, so hashes made
// with older settings keep verifying. [Argon2.NeedsUpgrade] reports when a
// stored hash should be recomputed after the next successful login.
//
// This package never stores passwords and never logs them.
package password
