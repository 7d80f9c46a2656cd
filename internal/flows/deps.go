package flows

import (
	"context"
	"time"
)

// Deps groups flow dependency sets. Root engine builds this once and delegates
// request methods to the matching flow implementation.
type Deps struct {
	Login  LoginDeps
	Rotate RotateDeps
	Issue  IssueRenewalDeps
	Revoke RevokeDeps
}

// SectionFunc runs fn inside the critical section for principal.
type SectionFunc func(ctx context.Context, principal string, fn func(context.Context) error) error

// RenewalStore is the slice of the session store the renewal flows touch.
type RenewalStore interface {
	Get(ctx context.Context, principal string) (string, error)
	Put(ctx context.Context, principal, token string, ttl time.Duration) error
	Delete(ctx context.Context, principal string) error
}

// storeRenewal mints a renewal credential and records it as the single active
// one for principal. Callers must already hold the principal's section.
func storeRenewal(
	ctx context.Context,
	principal string,
	encode func(string) (string, error),
	store RenewalStore,
	ttl time.Duration,
) (string, IssueFailureKind, error) {
	token, err := encode(principal)
	if err != nil {
		return "", IssueFailureEncode, err
	}
	if err := store.Put(ctx, principal, token, ttl); err != nil {
		return "", IssueFailureStore, err
	}
	return token, IssueFailureNone, nil
}
