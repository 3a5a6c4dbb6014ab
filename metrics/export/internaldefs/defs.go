package internaldefs

import (
	goSession "github.com/MrEthical07/goSession"
)

// CounterDef names one store counter.
type CounterDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// HistogramDef names one store histogram.
type HistogramDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: goSession.MetricLogin, Name: "gosession_login_total", Help: "Login calls."},
	{ID: goSession.MetricLogout, Name: "gosession_logout_total", Help: "Logout calls."},
	{ID: goSession.MetricSetUser, Name: "gosession_set_user_total", Help: "SetUser calls."},
	{ID: goSession.MetricSetToken, Name: "gosession_set_token_total", Help: "SetToken and ClearToken calls."},
	{ID: goSession.MetricUpdateUser, Name: "gosession_update_user_total", Help: "UpdateUser calls that merged fields."},
	{ID: goSession.MetricUpdateUserNoop, Name: "gosession_update_user_noop_total", Help: "UpdateUser calls ignored because no user was present."},
	{ID: goSession.MetricPersistWriteSuccess, Name: "gosession_persist_write_success_total", Help: "Token snapshot writes that completed."},
	{ID: goSession.MetricPersistWriteFailure, Name: "gosession_persist_write_failure_total", Help: "Token snapshot writes that failed."},
	{ID: goSession.MetricPersistReadFailure, Name: "gosession_persist_read_failure_total", Help: "Startup restores that failed."},
	{ID: goSession.MetricTokenRestored, Name: "gosession_token_restored_total", Help: "Startups that restored a token."},
	{ID: goSession.MetricGateNavigateLogin, Name: "gosession_gate_navigate_login_total", Help: "Gate navigations to the login route."},
	{ID: goSession.MetricGateNavigateAuthenticated, Name: "gosession_gate_navigate_authenticated_total", Help: "Gate navigations to the authenticated landing route."},
}

var HistogramDefs = []HistogramDef{
	{ID: goSession.MetricPersistWriteLatency, Name: "gosession_persist_write_latency_seconds", Help: "Token snapshot write latency."},
}

// EventsDropped names the dispatcher drop counter, which lives outside the
// store's MetricID space.
var EventsDropped = CounterDef{
	Name: "gosession_events_dropped_total",
	Help: "Events dropped because the dispatcher buffer was full.",
}

// HistogramUpperBounds are the finite bucket bounds in seconds. The eighth
// bucket is +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

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

// NormalizeBuckets copies raw into a fixed eight-bucket array, padding with
// zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
