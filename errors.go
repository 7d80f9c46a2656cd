package forumauth

import (
	"errors"

	"github.com/MrEthical07/forumauth/jwt"
	"github.com/MrEthical07/forumauth/lock"
)

var (
	// ErrTokenMalformed is returned for input that is not a structurally valid credential.
	ErrTokenMalformed = jwt.ErrMalformed
	// ErrTokenInvalidSignature is returned when a credential's signature or algorithm does not verify.
	ErrTokenInvalidSignature = jwt.ErrInvalidSignature
	// ErrTokenInvalidIssuer is returned for a correctly signed credential from another issuer.
	ErrTokenInvalidIssuer = jwt.ErrInvalidIssuer
	// ErrTokenExpired is returned when a credential's expiry has been reached.
	ErrTokenExpired = jwt.ErrExpired
	// ErrTokenWrongKind is returned when an access credential is presented as a renewal credential or vice versa.
	ErrTokenWrongKind = errors.New("wrong token kind")
	// ErrPrincipalMismatch is returned when a credential belongs to another principal than expected.
	ErrPrincipalMismatch = errors.New("principal mismatch")

	// ErrInvalidRenewalToken is returned when the renewal credential is not the
	// active one for its principal: revoked, superseded or unknown.
	ErrInvalidRenewalToken = errors.New("invalid renewal token")
	// ErrRenewalRateLimited is returned when a principal renews too often.
	ErrRenewalRateLimited = errors.New("renewal rate limited")

	// ErrInvalidCredentials covers both unknown accounts and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountUnverified is returned when the account exists but is not verified yet.
	ErrAccountUnverified = errors.New("account unverified")
	// ErrLoginRateLimited is returned once a username or IP exhausted its login budget.
	ErrLoginRateLimited = errors.New("login rate limited")

	// ErrLockAcquisitionFailed is a transient contention failure. Callers should retry later.
	ErrLockAcquisitionFailed = lock.ErrAcquisitionFailed
	// ErrStoreUnavailable wraps session store and rate limiter I/O failures.
	ErrStoreUnavailable = errors.New("session store unavailable")
	// ErrIdentityNotFound is returned by an IdentityLoader for an unknown principal.
	ErrIdentityNotFound = errors.New("identity not found")
	// ErrEngineNotReady is returned by methods called on a nil or closed Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

