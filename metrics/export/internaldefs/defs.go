package internaldefs

import (
	forumauth "github.com/MrEthical07/forumauth"
)

// CounterDef names one engine counter.
type CounterDef struct {
	ID   forumauth.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram.
type HistogramDef struct {
	ID   forumauth.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter for events dropped by the audit dispatcher.
const AuditDroppedName = "forumauth_audit_dropped_total"

var CounterDefs = []CounterDef{
	{ID: forumauth.MetricLoginSuccess, Name: "forumauth_login_success_total", Help: "Successful logins."},
	{ID: forumauth.MetricLoginFailure, Name: "forumauth_login_failure_total", Help: "Failed logins."},
	{ID: forumauth.MetricLoginRateLimited, Name: "forumauth_login_rate_limited_total", Help: "Logins refused by the login throttle."},
	{ID: forumauth.MetricRenewalIssued, Name: "forumauth_renewal_issued_total", Help: "Renewal credentials made active."},
	{ID: forumauth.MetricRotateSuccess, Name: "forumauth_rotate_success_total", Help: "Successful rotations and refreshes."},
	{ID: forumauth.MetricRotateFailure, Name: "forumauth_rotate_failure_total", Help: "Failed rotations and refreshes."},
	{ID: forumauth.MetricRotateSuperseded, Name: "forumauth_rotate_superseded_total", Help: "Rotations presenting a replaced renewal credential."},
	{ID: forumauth.MetricRenewalRateLimited, Name: "forumauth_renewal_rate_limited_total", Help: "Rotations refused by the renewal throttle."},
	{ID: forumauth.MetricRevoke, Name: "forumauth_revoke_total", Help: "Revoked renewal credentials."},
	{ID: forumauth.MetricAccessValidated, Name: "forumauth_access_validated_total", Help: "Accepted access credentials."},
	{ID: forumauth.MetricAccessRejected, Name: "forumauth_access_rejected_total", Help: "Rejected access credentials."},
	{ID: forumauth.MetricLockContention, Name: "forumauth_lock_contention_total", Help: "Critical-section attempts that timed out waiting."},
	{ID: forumauth.MetricLockExhausted, Name: "forumauth_lock_exhausted_total", Help: "Critical sections abandoned after all attempts."},
	{ID: forumauth.MetricStoreError, Name: "forumauth_store_error_total", Help: "Session store failures."},
}

var HistogramDefs = []HistogramDef{
	{ID: forumauth.MetricValidateLatency, Name: "forumauth_validate_latency_seconds", Help: "Access credential validation latency."},
}

// HistogramBounds are the bucket upper bounds in seconds; the last bucket is +Inf.
var HistogramBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix is used where a bound must appear in an instrument name.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed array, padding missing buckets
// with zero.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	copy(out[:], raw)
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i, v := range raw {
		running += v
		out[i] = running
	}
	return out
}
