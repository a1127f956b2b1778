// Package internaldefs holds the metric name and help-text table shared by
// the Prometheus and OpenTelemetry exporters.
package internaldefs

import (
	arenax "github.com/Sandijigs/ArenaX"
)

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   arenax.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for export.
type HistogramDef struct {
	ID   arenax.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: arenax.MetricTokensIssued, Name: "arenax_tokens_issued_total", Help: "Token pairs minted."},
	{ID: arenax.MetricIssueFailure, Name: "arenax_issue_failure_total", Help: "Failed issuance attempts."},
	{ID: arenax.MetricValidateSuccess, Name: "arenax_validate_success_total", Help: "Tokens that passed validation."},
	{ID: arenax.MetricValidateFailure, Name: "arenax_validate_failure_total", Help: "Tokens rejected by validation."},
	{ID: arenax.MetricRefreshSuccess, Name: "arenax_refresh_success_total", Help: "Successful refresh operations."},
	{ID: arenax.MetricRefreshFailure, Name: "arenax_refresh_failure_total", Help: "Failed refresh operations."},
	{ID: arenax.MetricRefreshReuseDetected, Name: "arenax_refresh_reuse_detected_total", Help: "Refresh tokens presented after consumption."},
	{ID: arenax.MetricRefreshLimitExceeded, Name: "arenax_refresh_limit_exceeded_total", Help: "Sessions invalidated at the refresh ceiling."},
	{ID: arenax.MetricTokenBlacklisted, Name: "arenax_token_blacklisted_total", Help: "Explicit token revocations."},
	{ID: arenax.MetricSessionCreated, Name: "arenax_session_created_total", Help: "Created sessions."},
	{ID: arenax.MetricSessionInvalidated, Name: "arenax_session_invalidated_total", Help: "Sessions removed before natural expiry."},
	{ID: arenax.MetricKeyRotation, Name: "arenax_key_rotation_total", Help: "Successful signing-key rotations."},
	{ID: arenax.MetricSuspiciousFlagged, Name: "arenax_suspicious_flagged_total", Help: "Anomaly flags raised on users."},
	{ID: arenax.MetricStoreUnavailable, Name: "arenax_store_unavailable_total", Help: "Operations failed on store trouble."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: arenax.MetricValidateLatency, Name: "arenax_validate_latency_seconds", Help: "Validate latency histogram."},
}

// HistogramBounds are the upper bucket bounds in seconds, Prometheus le
// label form.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix are the bounds in identifier-safe form for backends
// without native histogram support.
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

// NormalizeBuckets pads or truncates raw snapshot buckets to the fixed
// exporter width.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to the cumulative counts
// Prometheus histograms expect.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
