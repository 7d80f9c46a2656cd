package forumauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/forumauth/internal/audit"
	"github.com/MrEthical07/forumauth/internal/flows"
	"github.com/MrEthical07/forumauth/internal/rate"
	"github.com/MrEthical07/forumauth/jwt"
	"github.com/MrEthical07/forumauth/lock"
	"github.com/MrEthical07/forumauth/session"
)

// Engine is the token service. It issues and validates access credentials,
// keeps exactly one active renewal credential per principal in Redis, and
// serializes every change to that entry through a keyed critical section.
//
// An Engine is safe for concurrent use.
type Engine struct {
	config       Config
	jwtManager   *jwt.Manager
	sessionStore *session.Store
	guard        *lock.Guard
	rateLimiter  *rate.Limiter
	verifier     AccountVerifier
	identities   IdentityLoader
	audit        *audit.Dispatcher
	metrics      *Metrics
	logger       *slog.Logger
	flowDeps     flows.Deps
}

// Close drains the audit dispatcher. The Redis client is owned by the caller.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// AuditDropped reports how many audit events were dropped because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// CookieConfig returns the renewal cookie settings for HTTP adapters.
func (e *Engine) CookieConfig() CookieConfig {
	return e.config.Cookie
}

// AccessTTL returns the configured access credential lifetime.
func (e *Engine) AccessTTL() time.Duration {
	return e.config.JWT.AccessTTL
}

// Logger returns the engine's logger for adapters that want to share it.
func (e *Engine) Logger() *slog.Logger {
	return e.logger
}

// LockRegistry exposes the registry behind the critical section.
func (e *Engine) LockRegistry() *lock.Registry {
	return e.guard.Registry()
}

// Ping checks the session store round trip.
func (e *Engine) Ping(ctx context.Context) (time.Duration, error) {
	if e == nil {
		return 0, ErrEngineNotReady
	}
	d, err := e.sessionStore.Ping(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return d, nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) sectionKey(principal string) string {
	if e.config.Lock.GlobalSection {
		return lock.GlobalKey
	}
	return "renewal:" + principal
}

func (e *Engine) withinSection(ctx context.Context, principal string, fn func(context.Context) error) error {
	err := e.guard.Run(ctx, e.sectionKey(principal), fn)
	if errors.Is(err, lock.ErrAcquisitionFailed) {
		e.metricInc(MetricLockExhausted)
		e.logger.Warn("forumauth: critical section unavailable", "principal", principal, "error", err)
		e.emitAudit(ctx, auditEventLockContention, false, principal, err, nil)
	}
	return err
}

func (e *Engine) onLockContention(key string, attempt int) {
	e.metricInc(MetricLockContention)
	e.logger.Debug("forumauth: lock contention", "key", key, "attempt", attempt)
}

func (e *Engine) buildFlowDeps() flows.Deps {
	var loginLimiter flows.LoginRateLimiter
	var renewalLimiter flows.RenewalRateLimiter
	if e.rateLimiter != nil {
		loginLimiter = e.rateLimiter
		renewalLimiter = e.rateLimiter
	}

	issue := flows.IssueRenewalDeps{
		WithinSection: e.withinSection,
		EncodeRenewal: e.encodeRenewal,
		Store:         e.sessionStore,
		RenewalTTL:    e.config.JWT.RefreshTTL,
	}

	return flows.Deps{
		Login: flows.LoginDeps{
			ClientIPFromContext: clientIPFromContext,
			RateLimiter:         loginLimiter,
			RateLimited:         rate.ErrRateLimited,
			Verify:              e.verifier.Verify,
			IsAuthFailure: func(err error) bool {
				var failure *AuthFailure
				return errors.As(err, &failure)
			},
			IssueAccess: e.IssueAccessToken,
			IssueRenewal: func(ctx context.Context, principal string) flows.IssueResult {
				return flows.RunIssueRenewal(ctx, principal, issue)
			},
			Warn: e.logger.Warn,
		},
		Rotate: flows.RotateDeps{
			DecodeRenewal: e.jwtManager.Decode,
			IsExpired:     e.jwtManager.IsExpired,
			WithinSection: e.withinSection,
			RateLimiter:   renewalLimiter,
			Store:         e.sessionStore,
			NotFound:      session.ErrNotFound,
			IssueAccess:   e.IssueAccessToken,
			EncodeRenewal: e.encodeRenewal,
			RenewalTTL:    e.config.JWT.RefreshTTL,
		},
		Issue: issue,
		Revoke: flows.RevokeDeps{
			DecodeRenewal: e.jwtManager.Decode,
			WithinSection: e.withinSection,
			Store:         e.sessionStore,
		},
	}
}

func (e *Engine) encodeRenewal(principal string) (string, error) {
	return e.jwtManager.Encode(jwt.KindRenewal, principal, e.config.JWT.RefreshTTL)
}

// IssueAccessToken mints a short-lived access credential. It touches neither
// the store nor the lock.
func (e *Engine) IssueAccessToken(principal string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}
	return e.jwtManager.Encode(jwt.KindAccess, principal, e.config.JWT.AccessTTL)
}

// IssueRenewalToken mints a renewal credential and makes it the single active
// one for principal, replacing any previous one.
func (e *Engine) IssueRenewalToken(ctx context.Context, principal string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}
	res := flows.RunIssueRenewal(ctx, principal, e.flowDeps.Issue)
	if res.Failure != flows.IssueFailureNone {
		return "", e.issueFailureError(ctx, principal, res.Failure, res.Err)
	}

	e.metricInc(MetricRenewalIssued)
	e.emitAudit(ctx, auditEventRenewalIssued, true, principal, nil, nil)
	return res.Token, nil
}

func (e *Engine) issueFailureError(ctx context.Context, principal string, failure flows.IssueFailureKind, err error) error {
	switch failure {
	case flows.IssueFailureStore:
		e.metricInc(MetricStoreError)
		e.logger.Error("forumauth: storing renewal credential failed", "principal", principal, "error", err)
		e.emitAudit(ctx, auditEventStoreUnavailable, false, principal, ErrStoreUnavailable, nil)
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	default:
		return err
	}
}

// ParseAccessToken decodes and fully validates an access credential:
// signature, issuer, kind and expiry.
func (e *Engine) ParseAccessToken(token string) (*jwt.Claims, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { e.metrics.Observe(MetricValidateLatency, time.Since(start)) }()
	}

	claims, err := e.jwtManager.Decode(token)
	if err != nil {
		e.metricInc(MetricAccessRejected)
		return nil, err
	}
	if claims.Kind != jwt.KindAccess {
		e.metricInc(MetricAccessRejected)
		return nil, ErrTokenWrongKind
	}
	if e.jwtManager.IsExpired(claims) {
		e.metricInc(MetricAccessRejected)
		return nil, ErrTokenExpired
	}

	e.metricInc(MetricAccessValidated)
	return claims, nil
}

// ValidateAccessToken reports whether token is a valid, unexpired access
// credential. When expectedPrincipal is non-empty the credential must also
// belong to it. The session store is never consulted.
func (e *Engine) ValidateAccessToken(token, expectedPrincipal string) bool {
	claims, err := e.ParseAccessToken(token)
	if err != nil {
		return false
	}
	return expectedPrincipal == "" || claims.Subject == expectedPrincipal
}

// ExpiryRemaining returns the whole seconds left before token expires, never
// negative. Either credential kind is accepted.
func (e *Engine) ExpiryRemaining(token string) (time.Duration, error) {
	if e == nil {
		return 0, ErrEngineNotReady
	}
	claims, err := e.jwtManager.Decode(token)
	if err != nil {
		return 0, err
	}
	return e.jwtManager.Remaining(claims), nil
}

// Rotate exchanges the active renewal credential for a new access credential.
// The renewal credential itself stays active. A credential that is not the
// stored one for its principal fails with [ErrInvalidRenewalToken].
func (e *Engine) Rotate(ctx context.Context, renewalToken, expectedPrincipal string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}
	res := flows.RunRotate(ctx, renewalToken, expectedPrincipal, false, e.flowDeps.Rotate)
	if res.Failure != flows.RotateFailureNone {
		return "", e.rotateFailureError(ctx, res)
	}

	e.metricInc(MetricRotateSuccess)
	e.emitAudit(ctx, auditEventRotateSuccess, true, res.Principal, nil, nil)
	return res.AccessToken, nil
}

// Refresh rotates renewalToken and replaces it with a fresh renewal
// credential inside one critical section. The presented credential stops
// validating as soon as Refresh returns successfully.
func (e *Engine) Refresh(ctx context.Context, renewalToken string) (*TokenPair, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	res := flows.RunRotate(ctx, renewalToken, "", true, e.flowDeps.Rotate)
	if res.Failure != flows.RotateFailureNone {
		return nil, e.rotateFailureError(ctx, res)
	}

	e.metricInc(MetricRotateSuccess)
	e.metricInc(MetricRenewalIssued)
	e.emitAudit(ctx, auditEventRotateSuccess, true, res.Principal, nil, func() map[string]string {
		return map[string]string{"renewed": "true"}
	})
	e.emitAudit(ctx, auditEventRenewalIssued, true, res.Principal, nil, nil)
	return e.tokenPair(res.Principal, res.AccessToken, res.RenewalToken), nil
}

func (e *Engine) rotateFailureError(ctx context.Context, res flows.RotateResult) error {
	var err error
	event := auditEventRotateInvalid
	reason := ""

	switch res.Failure {
	case flows.RotateFailureDecode:
		err, reason = res.Err, "decode_failed"
	case flows.RotateFailureWrongKind:
		err, reason = ErrTokenWrongKind, "wrong_kind"
	case flows.RotateFailureExpired:
		err, reason = ErrTokenExpired, "expired"
	case flows.RotateFailurePrincipalMismatch:
		err, reason = ErrPrincipalMismatch, "principal_mismatch"
	case flows.RotateFailureRateLimited:
		if errors.Is(res.Err, rate.ErrRateLimited) {
			e.metricInc(MetricRenewalRateLimited)
			e.emitAudit(ctx, auditEventRenewalRateLimited, false, res.Principal, ErrRenewalRateLimited, nil)
			return ErrRenewalRateLimited
		}
		err, reason = fmt.Errorf("%w: %v", ErrStoreUnavailable, res.Err), "limiter_unavailable"
	case flows.RotateFailureNotActive:
		err, reason = ErrInvalidRenewalToken, "not_active"
	case flows.RotateFailureSuperseded:
		e.metricInc(MetricRotateSuperseded)
		err, reason, event = ErrInvalidRenewalToken, "superseded", auditEventRotateSuperseded
	case flows.RotateFailureStore:
		e.metricInc(MetricStoreError)
		e.logger.Error("forumauth: session store failure during rotation", "principal", res.Principal, "error", res.Err)
		err, reason = fmt.Errorf("%w: %v", ErrStoreUnavailable, res.Err), "store_unavailable"
	case flows.RotateFailureSection:
		// Lock exhaustion is already counted and audited by withinSection.
		e.metricInc(MetricRotateFailure)
		return res.Err
	default:
		err, reason = res.Err, "issue_failed"
	}

	e.metricInc(MetricRotateFailure)
	e.emitAudit(ctx, event, false, res.Principal, err, func() map[string]string {
		return map[string]string{"reason": reason}
	})
	return err
}

// Revoke deletes the active renewal entry of the credential's principal.
// Signature and issuer must verify; expiry is not checked. Revoking an
// already absent entry succeeds.
func (e *Engine) Revoke(ctx context.Context, renewalToken string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	res := flows.RunRevoke(ctx, renewalToken, e.flowDeps.Revoke)
	switch res.Failure {
	case flows.RevokeFailureNone:
		e.metricInc(MetricRevoke)
		e.emitAudit(ctx, auditEventLogout, true, res.Principal, nil, nil)
		return nil
	case flows.RevokeFailureDecode:
		e.emitAudit(ctx, auditEventLogout, false, "", res.Err, nil)
		return res.Err
	case flows.RevokeFailureWrongKind:
		e.emitAudit(ctx, auditEventLogout, false, res.Principal, ErrTokenWrongKind, nil)
		return ErrTokenWrongKind
	case flows.RevokeFailureStore:
		e.metricInc(MetricStoreError)
		e.logger.Error("forumauth: session store failure during revoke", "principal", res.Principal, "error", res.Err)
		err := fmt.Errorf("%w: %v", ErrStoreUnavailable, res.Err)
		e.emitAudit(ctx, auditEventLogout, false, res.Principal, err, nil)
		return err
	default:
		return res.Err
	}
}

// Logout revokes the renewal credential presented by the client.
func (e *Engine) Logout(ctx context.Context, renewalToken string) error {
	return e.Revoke(ctx, renewalToken)
}

// ResolveIdentity validates an access credential and loads the identity of
// its principal.
func (e *Engine) ResolveIdentity(ctx context.Context, accessToken string) (*Identity, error) {
	claims, err := e.ParseAccessToken(accessToken)
	if err != nil {
		return nil, err
	}
	if e.identities == nil {
		return &Identity{ID: claims.Subject, Username: claims.Subject}, nil
	}

	identity, err := e.identities.LoadByPrincipal(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return nil, ErrIdentityNotFound
	}
	return identity, nil
}

func (e *Engine) tokenPair(principal, access, renewal string) *TokenPair {
	pair := &TokenPair{
		Principal:    principal,
		AccessToken:  access,
		RenewalToken: renewal,
	}
	if d, err := e.ExpiryRemaining(access); err == nil {
		pair.AccessExpiresIn = d
	}
	if d, err := e.ExpiryRemaining(renewal); err == nil {
		pair.RenewalExpiresIn = d
	}
	return pair
}
