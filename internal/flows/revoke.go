package flows

import (
	"context"

	"github.com/MrEthical07/forumauth/jwt"
)

// RevokeFailureKind classifies revocation failures.
type RevokeFailureKind int

const (
	RevokeFailureNone RevokeFailureKind = iota
	RevokeFailureDecode
	RevokeFailureWrongKind
	RevokeFailureStore
	RevokeFailureSection
)

type RevokeResult struct {
	Failure   RevokeFailureKind
	Err       error
	Principal string
}

// RevokeDeps captures revocation dependencies.
type RevokeDeps struct {
	DecodeRenewal func(string) (*jwt.Claims, error)
	WithinSection SectionFunc
	Store         RenewalStore
}

// RunRevoke deletes the active renewal entry of the credential's principal.
// Expired credentials are still accepted, and a missing entry is not an error.
func RunRevoke(ctx context.Context, renewalToken string, deps RevokeDeps) RevokeResult {
	claims, err := deps.DecodeRenewal(renewalToken)
	if err != nil {
		return RevokeResult{Failure: RevokeFailureDecode, Err: err}
	}
	principal := claims.Subject
	if claims.Kind != jwt.KindRenewal {
		return RevokeResult{Failure: RevokeFailureWrongKind, Principal: principal}
	}

	var storeErr error
	err = deps.WithinSection(ctx, principal, func(ctx context.Context) error {
		storeErr = deps.Store.Delete(ctx, principal)
		return storeErr
	})
	switch {
	case storeErr != nil:
		return RevokeResult{Failure: RevokeFailureStore, Err: storeErr, Principal: principal}
	case err != nil:
		return RevokeResult{Failure: RevokeFailureSection, Err: err, Principal: principal}
	}
	return RevokeResult{Principal: principal}
}
