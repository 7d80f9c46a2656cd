// Package jwt encodes and decodes the signed, expiring credentials used for
// access and renewal. A single shared HMAC secret signs every credential.
//
// Decode verifies algorithm, signature and issuer and fails closed; expiry is
// a separate check so callers can tell a stale credential from a forged one.
package jwt
