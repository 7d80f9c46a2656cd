package forumauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/forumauth/internal/flows"
)

// Login verifies username and password through the AccountVerifier and, on
// success, issues an access credential and a renewal credential.
//
// Unknown accounts and wrong passwords both return [ErrInvalidCredentials].
// The precise reason is recorded in the audit event only.
func (e *Engine) Login(ctx context.Context, username, password string) (*TokenPair, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	res := flows.RunLogin(ctx, username, password, e.flowDeps.Login)
	if res.Failure == flows.LoginFailureNone {
		e.metricInc(MetricLoginSuccess)
		e.metricInc(MetricRenewalIssued)
		e.emitAudit(ctx, auditEventLoginSuccess, true, res.Principal, nil, nil)
		e.emitAudit(ctx, auditEventRenewalIssued, true, res.Principal, nil, nil)
		return e.tokenPair(res.Principal, res.AccessToken, res.RenewalToken), nil
	}

	switch res.Failure {
	case flows.LoginFailureRateLimited:
		e.metricInc(MetricLoginRateLimited)
		e.emitAudit(ctx, auditEventLoginRateLimited, false, "", ErrLoginRateLimited, func() map[string]string {
			return map[string]string{"username": username}
		})
		return nil, ErrLoginRateLimited

	case flows.LoginFailureLimiter:
		e.metricInc(MetricLoginFailure)
		e.metricInc(MetricStoreError)
		e.logger.Error("forumauth: login limiter unavailable", "error", res.Err)
		err := fmt.Errorf("%w: %v", ErrStoreUnavailable, res.Err)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", err, nil)
		return nil, err

	case flows.LoginFailureCredentials:
		e.metricInc(MetricLoginFailure)
		err := ErrInvalidCredentials
		reason := "unknown"
		var failure *AuthFailure
		if errors.As(res.Err, &failure) {
			reason = failure.Kind.String()
			if failure.Kind == NotVerified {
				err = ErrAccountUnverified
			}
		}
		e.logger.Info("forumauth: login rejected", "username", username, "reason", reason)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", err, func() map[string]string {
			return map[string]string{"username": username, "reason": reason}
		})
		return nil, err

	case flows.LoginFailureVerifier:
		e.metricInc(MetricLoginFailure)
		e.logger.Error("forumauth: account verifier failed", "error", res.Err)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", res.Err, nil)
		return nil, fmt.Errorf("account verification: %w", res.Err)

	case flows.LoginFailureIssueRenewal:
		e.metricInc(MetricLoginFailure)
		if res.IssueFailure == flows.IssueFailureSection {
			return nil, res.Err
		}
		return nil, e.issueFailureError(ctx, res.Principal, res.IssueFailure, res.Err)

	default:
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, res.Principal, res.Err, nil)
		return nil, res.Err
	}
}
