package forumauth

import "time"

// SecurityReport summarizes the effective security posture of an Engine for
// operators. It contains no secrets.
type SecurityReport struct {
	ProductionMode        bool
	SigningAlgorithm      string
	Issuer                string
	SecretBits            int
	AccessTTL             time.Duration
	RefreshTTL            time.Duration
	LockScope             string
	LockWaitBudget        time.Duration
	LoginThrottleActive   bool
	IPThrottleActive      bool
	RenewalThrottleActive bool
	SecureCookies         bool
	AuditEnabled          bool
	LintWarnings          []string
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	scope := "principal"
	if e.config.Lock.GlobalSection {
		scope = "global"
	}

	return SecurityReport{
		ProductionMode:        e.config.Security.ProductionMode,
		SigningAlgorithm:      "HS256",
		Issuer:                e.config.JWT.Issuer,
		SecretBits:            len(e.config.JWT.Secret) * 8,
		AccessTTL:             e.config.JWT.AccessTTL,
		RefreshTTL:            e.config.JWT.RefreshTTL,
		LockScope:             scope,
		LockWaitBudget:        time.Duration(e.config.Lock.MaxAttempts) * (e.config.Lock.AttemptTimeout + e.config.Lock.Backoff),
		LoginThrottleActive:   e.config.Security.EnableLoginThrottle && e.config.Security.MaxLoginAttempts > 0,
		IPThrottleActive:      e.config.Security.EnableIPThrottle,
		RenewalThrottleActive: e.config.Security.EnableRenewalThrottle,
		SecureCookies:         e.config.Cookie.Secure,
		AuditEnabled:          e.config.Audit.Enabled,
		LintWarnings:          e.config.Lint().Codes(),
	}
}
