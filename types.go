package forumauth

import (
	"context"
	"time"
)

// Identity is the caller identity resolved from a valid access credential.
// It lives for one request and is never persisted.
type Identity struct {
	ID       string
	Username string
	Roles    []string
	Verified bool
}

// HasRole reports whether the identity carries role.
func (i *Identity) HasRole(role string) bool {
	if i == nil {
		return false
	}
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// AuthFailureKind classifies why account verification failed. The kind is
// for logs and audit only; clients see one message for BadCredentials and
// UnknownAccount.
type AuthFailureKind int

const (
	BadCredentials AuthFailureKind = iota + 1
	UnknownAccount
	NotVerified
)

func (k AuthFailureKind) String() string {
	switch k {
	case BadCredentials:
		return "bad_credentials"
	case UnknownAccount:
		return "unknown_account"
	case NotVerified:
		return "not_verified"
	default:
		return "unknown"
	}
}

// AuthFailure is the error an AccountVerifier returns for a rejected login.
// Any other error from a verifier is treated as a backend failure.
type AuthFailure struct {
	Kind AuthFailureKind
}

func (f *AuthFailure) Error() string {
	return "authentication failed: " + f.Kind.String()
}

// Is maps the failure onto the public sentinels so callers can use errors.Is.
func (f *AuthFailure) Is(target error) bool {
	switch target {
	case ErrInvalidCredentials:
		return f.Kind == BadCredentials || f.Kind == UnknownAccount
	case ErrAccountUnverified:
		return f.Kind == NotVerified
	}
	return false
}

// AccountVerifier checks a username/password pair and returns the principal
// identifier the credentials are issued for.
type AccountVerifier interface {
	Verify(ctx context.Context, username, password string) (principal string, err error)
}

// AccountVerifierFunc adapts a function to [AccountVerifier].
type AccountVerifierFunc func(ctx context.Context, username, password string) (string, error)

func (f AccountVerifierFunc) Verify(ctx context.Context, username, password string) (string, error) {
	return f(ctx, username, password)
}

// IdentityLoader resolves a principal into its full identity. Implementations
// return [ErrIdentityNotFound] for unknown principals.
type IdentityLoader interface {
	LoadByPrincipal(ctx context.Context, principal string) (*Identity, error)
}

// TokenPair is the result of Login and Refresh.
type TokenPair struct {
	Principal    string
	AccessToken  string
	RenewalToken string

	// AccessExpiresIn and RenewalExpiresIn are whole seconds left at issue time.
	AccessExpiresIn  time.Duration
	RenewalExpiresIn time.Duration
}
