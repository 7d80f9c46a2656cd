package forumauth

import (
	"fmt"
	"time"
)

// LintSeverity ranks a lint warning.
type LintSeverity int

const (
	LintInfo LintSeverity = iota
	LintWarn
	LintHigh
)

// LintWarning is one advisory finding about a configuration that passes
// Validate but is probably not what an operator wants.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintWarnings is the result of [Config.Lint].
type LintWarnings []LintWarning

// Codes returns the warning codes in order.
func (ws LintWarnings) Codes() []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Code)
	}
	return out
}

// AtLeast filters warnings with severity >= min.
func (ws LintWarnings) AtLeast(min LintSeverity) LintWarnings {
	var out LintWarnings
	for _, w := range ws {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// Lint returns advisory warnings. It never fails; use Validate for hard errors.
func (c Config) Lint() LintWarnings {
	var ws LintWarnings
	add := func(code string, sev LintSeverity, format string, args ...any) {
		ws = append(ws, LintWarning{Code: code, Severity: sev, Message: fmt.Sprintf(format, args...)})
	}

	if c.JWT.AccessTTL > 10*time.Minute {
		add("access_ttl_long", LintWarn, "access credential lifetime %s exceeds 10m", c.JWT.AccessTTL)
	}
	if c.JWT.RefreshTTL > 14*24*time.Hour {
		add("refresh_ttl_long", LintWarn, "renewal credential lifetime %s exceeds 14d", c.JWT.RefreshTTL)
	}
	if !c.Security.EnableLoginThrottle && !c.Security.EnableRenewalThrottle {
		add("rate_limits_disabled", LintHigh, "login and renewal throttling are both disabled")
	}
	if c.Security.EnableLoginThrottle && !c.Security.EnableIPThrottle {
		add("ip_throttle_disabled", LintInfo, "login throttling is keyed by username only")
	}
	if c.Lock.GlobalSection {
		add("global_lock", LintWarn, "all principals share one critical section")
	}
	if budget := time.Duration(c.Lock.MaxAttempts) * (c.Lock.AttemptTimeout + c.Lock.Backoff); budget > 0 && budget < 100*time.Millisecond {
		add("lock_budget_short", LintWarn, "lock wait budget %s is likely to fail under contention", budget)
	}
	if !c.Cookie.Secure {
		add("cookie_insecure", LintHigh, "renewal cookie is sent over plain HTTP")
	}
	if !c.Audit.Enabled {
		add("audit_disabled", LintInfo, "audit events are not emitted")
	}
	if !c.Security.ProductionMode {
		add("production_mode_off", LintInfo, "production hardening checks are not enforced")
	}

	return ws
}
