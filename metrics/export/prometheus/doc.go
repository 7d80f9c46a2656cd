// Package prometheus exposes forumauth engine metrics through
// prometheus/client_golang.
//
// [Collector] reads one [forumauth.MetricsSnapshot] per scrape and emits
// constant metrics, so engine counters stay lock-free atomics. Counter names
// are forumauth_*_total; the single histogram is
// forumauth_validate_latency_seconds.
//
// Nothing is registered globally; callers register the Collector or mount
// [Handler].
package prometheus
