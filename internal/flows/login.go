package flows

import (
	"context"
	"errors"
)

// LoginFailureKind classifies login failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureRateLimited
	LoginFailureLimiter
	LoginFailureCredentials
	LoginFailureVerifier
	LoginFailureIssueAccess
	LoginFailureIssueRenewal
)

// LoginResult carries the issued credential pair or failure metadata.
type LoginResult struct {
	Failure      LoginFailureKind
	IssueFailure IssueFailureKind
	Err          error
	Principal    string
	AccessToken  string
	RenewalToken string
}

type LoginRateLimiter interface {
	CheckLogin(ctx context.Context, username, ip string) error
	IncrementLogin(ctx context.Context, username, ip string) error
	ResetLogin(ctx context.Context, username, ip string) error
}

// LoginDeps captures login flow dependencies.
type LoginDeps struct {
	ClientIPFromContext func(context.Context) string
	RateLimiter         LoginRateLimiter
	RateLimited         error
	Verify              func(ctx context.Context, username, password string) (string, error)
	IsAuthFailure       func(error) bool
	IssueAccess         func(principal string) (string, error)
	IssueRenewal        func(ctx context.Context, principal string) IssueResult
	Warn                func(string, ...any)
}

// RunLogin verifies the credentials and mints an access and a renewal
// credential for the resulting principal.
func RunLogin(ctx context.Context, username, password string, deps LoginDeps) LoginResult {
	ip := ""
	if deps.ClientIPFromContext != nil {
		ip = deps.ClientIPFromContext(ctx)
	}

	if deps.RateLimiter != nil {
		if err := deps.RateLimiter.CheckLogin(ctx, username, ip); err != nil {
			if deps.RateLimited != nil && errors.Is(err, deps.RateLimited) {
				return LoginResult{Failure: LoginFailureRateLimited, Err: err}
			}
			return LoginResult{Failure: LoginFailureLimiter, Err: err}
		}
	}

	principal, err := deps.Verify(ctx, username, password)
	if err != nil {
		if deps.IsAuthFailure == nil || !deps.IsAuthFailure(err) {
			return LoginResult{Failure: LoginFailureVerifier, Err: err}
		}
		if deps.RateLimiter != nil {
			if incErr := deps.RateLimiter.IncrementLogin(ctx, username, ip); incErr != nil &&
				(deps.RateLimited == nil || !errors.Is(incErr, deps.RateLimited)) && deps.Warn != nil {
				deps.Warn("forumauth: login failure counter update failed", "error", incErr)
			}
		}
		return LoginResult{Failure: LoginFailureCredentials, Err: err}
	}

	if deps.RateLimiter != nil {
		if err := deps.RateLimiter.ResetLogin(ctx, username, ip); err != nil && deps.Warn != nil {
			deps.Warn("forumauth: login failure counter reset failed", "error", err)
		}
	}

	access, err := deps.IssueAccess(principal)
	if err != nil {
		return LoginResult{Failure: LoginFailureIssueAccess, Err: err, Principal: principal}
	}

	issued := deps.IssueRenewal(ctx, principal)
	if issued.Failure != IssueFailureNone {
		return LoginResult{
			Failure:      LoginFailureIssueRenewal,
			IssueFailure: issued.Failure,
			Err:          issued.Err,
			Principal:    principal,
		}
	}

	return LoginResult{
		Principal:    principal,
		AccessToken:  access,
		RenewalToken: issued.Token,
	}
}
