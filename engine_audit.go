package forumauth

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventLoginSuccess       = "login_success"
	auditEventLoginFailure       = "login_failure"
	auditEventLoginRateLimited   = "login_rate_limited"
	auditEventRenewalIssued      = "renewal_issued"
	auditEventRotateSuccess      = "rotate_success"
	auditEventRotateInvalid      = "rotate_invalid"
	auditEventRotateSuperseded   = "rotate_superseded"
	auditEventRenewalRateLimited = "renewal_rate_limited"
	auditEventLogout             = "logout"
	auditEventLockContention     = "lock_contention"
	auditEventStoreUnavailable   = "store_unavailable"
)

// AuditErrorCode is the stable error classification written into
// AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrAccountUnverified  AuditErrorCode = "account_unverified"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrExpiredToken       AuditErrorCode = "expired_token"
	auditErrInvalidRenewal     AuditErrorCode = "invalid_renewal_token"
	auditErrPrincipalMismatch  AuditErrorCode = "principal_mismatch"
	auditErrLockContention     AuditErrorCode = "lock_contention"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	principal string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Principal: principal,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrAccountUnverified):
		return auditErrAccountUnverified
	case errors.Is(err, ErrLoginRateLimited),
		errors.Is(err, ErrRenewalRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrTokenExpired):
		return auditErrExpiredToken
	case errors.Is(err, ErrTokenMalformed),
		errors.Is(err, ErrTokenInvalidSignature),
		errors.Is(err, ErrTokenInvalidIssuer),
		errors.Is(err, ErrTokenWrongKind):
		return auditErrInvalidToken
	case errors.Is(err, ErrInvalidRenewalToken):
		return auditErrInvalidRenewal
	case errors.Is(err, ErrPrincipalMismatch):
		return auditErrPrincipalMismatch
	case errors.Is(err, ErrLockAcquisitionFailed):
		return auditErrLockContention
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
