package internaldefs

import (
	authsession "github.com/trackwise/authsession"
)

type CounterDef struct {
	ID   authsession.MetricID
	Name string
	Help string
}

type HistogramDef struct {
	ID   authsession.MetricID
	Name string
	Help string
}

// DroppedEventsName is the counter for events lost to dispatcher backpressure.
const DroppedEventsName = "authsession_events_dropped_total"

var CounterDefs = []CounterDef{
	{ID: authsession.MetricRegisterSuccess, Name: "authsession_register_success_total", Help: "Successful registrations."},
	{ID: authsession.MetricRegisterFailure, Name: "authsession_register_failure_total", Help: "Failed registrations."},
	{ID: authsession.MetricRegisterConflict, Name: "authsession_register_conflict_total", Help: "Registrations rejected because the account exists."},
	{ID: authsession.MetricLoginSuccess, Name: "authsession_login_success_total", Help: "Successful logins."},
	{ID: authsession.MetricLoginFailure, Name: "authsession_login_failure_total", Help: "Failed logins."},
	{ID: authsession.MetricAutoLoginFailure, Name: "authsession_auto_login_failure_total", Help: "Logins that failed right after a successful registration."},
	{ID: authsession.MetricLogout, Name: "authsession_logout_total", Help: "Logouts."},
	{ID: authsession.MetricSessionPersistFailure, Name: "authsession_persist_failure_total", Help: "Tokens that could not be written to durable storage."},
	{ID: authsession.MetricSessionClearFailure, Name: "authsession_clear_failure_total", Help: "Logouts whose durable delete failed."},
	{ID: authsession.MetricCacheWarmHit, Name: "authsession_cache_warm_hit_total", Help: "Startups that restored a session from durable storage."},
	{ID: authsession.MetricCacheWarmMiss, Name: "authsession_cache_warm_miss_total", Help: "Startups without a restorable session."},
	{ID: authsession.MetricFailureTimeout, Name: "authsession_failure_timeout_total", Help: "Calls that timed out."},
	{ID: authsession.MetricFailureNetworkUnavailable, Name: "authsession_failure_network_unavailable_total", Help: "Calls that could not connect."},
	{ID: authsession.MetricFailureServerError, Name: "authsession_failure_server_error_total", Help: "Calls answered with a 5xx status."},
	{ID: authsession.MetricFailureUnauthorized, Name: "authsession_failure_unauthorized_total", Help: "Calls answered with 401."},
	{ID: authsession.MetricFailureForbidden, Name: "authsession_failure_forbidden_total", Help: "Calls answered with 403."},
	{ID: authsession.MetricFailureNotFound, Name: "authsession_failure_not_found_total", Help: "Calls answered with 404."},
	{ID: authsession.MetricFailureValidation, Name: "authsession_failure_validation_total", Help: "Calls answered with 422."},
	{ID: authsession.MetricFailureUnknown, Name: "authsession_failure_unknown_total", Help: "Calls that failed without a specific classification."},
}

var HistogramDefs = []HistogramDef{
	{ID: authsession.MetricLoginLatency, Name: "authsession_login_latency_seconds", Help: "Login round-trip latency."},
}

// HistogramBounds are the upper bounds, in seconds, of the eight latency
// buckets.
var HistogramBounds = []string{
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"1",
	"2.5",
	"+Inf",
}

// HistogramBoundSuffix renders HistogramBounds as instrument-name suffixes.
var HistogramBoundSuffix = []string{
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"2_5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to eight buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	copy(out[:], raw)
	return out
}

// CumulativeBuckets converts per-bucket counts to running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i, v := range raw {
		running += v
		out[i] = running
	}
	return out
}
