package flows

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/MrEthical07/forumauth/jwt"
)

// RotateFailureKind classifies rotation failures for root-level mapping.
type RotateFailureKind int

const (
	RotateFailureNone RotateFailureKind = iota
	RotateFailureDecode
	RotateFailureWrongKind
	RotateFailureExpired
	RotateFailurePrincipalMismatch
	RotateFailureRateLimited
	RotateFailureNotActive
	RotateFailureSuperseded
	RotateFailureStore
	RotateFailureIssueAccess
	RotateFailureIssueRenewal
	RotateFailureSection
)

// RotateResult carries the new access credential (and renewal credential when
// requested) or failure metadata.
type RotateResult struct {
	Failure      RotateFailureKind
	Err          error
	Principal    string
	AccessToken  string
	RenewalToken string
}

type RenewalRateLimiter interface {
	CheckRenewal(ctx context.Context, principal string) error
}

// RotateDeps captures rotation dependencies.
type RotateDeps struct {
	DecodeRenewal func(string) (*jwt.Claims, error)
	IsExpired     func(*jwt.Claims) bool
	WithinSection SectionFunc
	RateLimiter   RenewalRateLimiter
	Store         RenewalStore
	NotFound      error
	IssueAccess   func(principal string) (string, error)
	EncodeRenewal func(principal string) (string, error)
	RenewalTTL    time.Duration
}

// RunRotate exchanges an active renewal credential for a new access
// credential. With renew set, a fresh renewal credential replaces the presented
// one inside the same critical section, so no other rotation or revocation for
// the principal can interleave between the check and the overwrite.
//
// expectedPrincipal is optional; when non-empty the credential must belong to it.
func RunRotate(ctx context.Context, renewalToken, expectedPrincipal string, renew bool, deps RotateDeps) RotateResult {
	claims, err := deps.DecodeRenewal(renewalToken)
	if err != nil {
		return RotateResult{Failure: RotateFailureDecode, Err: err}
	}
	principal := claims.Subject
	if claims.Kind != jwt.KindRenewal {
		return RotateResult{Failure: RotateFailureWrongKind, Principal: principal}
	}
	if deps.IsExpired(claims) {
		return RotateResult{Failure: RotateFailureExpired, Err: jwt.ErrExpired, Principal: principal}
	}
	if expectedPrincipal != "" && expectedPrincipal != principal {
		return RotateResult{Failure: RotateFailurePrincipalMismatch, Principal: principal}
	}

	if deps.RateLimiter != nil {
		if err := deps.RateLimiter.CheckRenewal(ctx, principal); err != nil {
			return RotateResult{Failure: RotateFailureRateLimited, Err: err, Principal: principal}
		}
	}

	result := RotateResult{Principal: principal}
	err = deps.WithinSection(ctx, principal, func(ctx context.Context) error {
		stored, err := deps.Store.Get(ctx, principal)
		if err != nil {
			if deps.NotFound != nil && errors.Is(err, deps.NotFound) {
				result.Failure = RotateFailureNotActive
			} else {
				result.Failure = RotateFailureStore
			}
			result.Err = err
			return err
		}
		if subtle.ConstantTimeCompare([]byte(stored), []byte(renewalToken)) != 1 {
			result.Failure = RotateFailureSuperseded
			return errSuperseded
		}

		access, err := deps.IssueAccess(principal)
		if err != nil {
			result.Failure = RotateFailureIssueAccess
			result.Err = err
			return err
		}

		if renew {
			token, failure, err := storeRenewal(ctx, principal, deps.EncodeRenewal, deps.Store, deps.RenewalTTL)
			if err != nil {
				result.Failure = RotateFailureIssueRenewal
				if failure == IssueFailureStore {
					result.Failure = RotateFailureStore
				}
				result.Err = err
				return err
			}
			result.RenewalToken = token
		}

		result.AccessToken = access
		return nil
	})
	if err != nil && result.Failure == RotateFailureNone {
		return RotateResult{Failure: RotateFailureSection, Err: err, Principal: principal}
	}
	return result
}

var errSuperseded = errors.New("renewal credential is not the active one")
