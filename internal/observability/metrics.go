package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Personaz1/openclaw-council/internal/llm"
)

// Metrics bundles Prometheus collectors for council runs and the daemon.
type Metrics struct {
	registry      *prometheus.Registry
	Runs          *prometheus.CounterVec
	RunDuration   prometheus.Histogram
	RoleCalls     *prometheus.CounterVec
	CallDuration  *prometheus.HistogramVec
	Retries       *prometheus.CounterVec
	Tokens        *prometheus.CounterVec
	StageResults  *prometheus.CounterVec
	ActiveSession *prometheus.GaugeVec
	TransportErrs *prometheus.CounterVec
}

// NewMetrics constructs a metrics registry with council collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "council_runs_total",
		Help: "Completed council runs by status (clean or degraded)",
	}, []string{"status"})

	runDur := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "council_run_duration_seconds",
		Help:    "Council run duration in seconds",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})

	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "council_role_calls_total",
		Help: "Provider calls by role, provider and result class",
	}, []string{"role", "provider", "result"})

	callDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "council_role_call_duration_seconds",
		Help:    "Provider call latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"role", "provider"})

	retries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "council_retries_total",
		Help: "Rate-limit retries by role",
	}, []string{"role"})

	tokens := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "council_tokens_total",
		Help: "Tokens reported by providers, by role",
	}, []string{"role"})

	stage := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "council_stage_results_total",
		Help: "Stage results by stage, role and outcome",
	}, []string{"stage", "role", "outcome"})

	active := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "council_transport_active_sessions",
		Help: "Active run sessions by transport",
	}, []string{"transport"})

	trErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "council_transport_errors_total",
		Help: "Transport-level errors (handler/streaming) by transport and reason",
	}, []string{"transport", "reason"})

	reg.MustRegister(runs, runDur, calls, callDur, retries, tokens, stage, active, trErrors)

	return &Metrics{
		registry:      reg,
		Runs:          runs,
		RunDuration:   runDur,
		RoleCalls:     calls,
		CallDuration:  callDur,
		Retries:       retries,
		Tokens:        tokens,
		StageResults:  stage,
		ActiveSession: active,
		TransportErrs: trErrors,
	}
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRoleCall records one provider attempt.
func (m *Metrics) RecordRoleCall(role, provider string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	role, provider = orUnknown(role), orUnknown(provider)
	m.RoleCalls.WithLabelValues(role, provider, callResult(err)).Inc()
	m.CallDuration.WithLabelValues(role, provider).Observe(duration.Seconds())
}

// RecordRetry counts a rate-limit retry.
func (m *Metrics) RecordRetry(role string) {
	if m == nil {
		return
	}
	m.Retries.WithLabelValues(orUnknown(role)).Inc()
}

// RecordTokens adds provider-reported token usage.
func (m *Metrics) RecordTokens(role string, tokens int) {
	if m == nil || tokens <= 0 {
		return
	}
	m.Tokens.WithLabelValues(orUnknown(role)).Add(float64(tokens))
}

// RecordStageResult counts a role's final outcome in a stage.
func (m *Metrics) RecordStageResult(stage, role, outcome string) {
	if m == nil {
		return
	}
	m.StageResults.WithLabelValues(orUnknown(stage), orUnknown(role), orUnknown(outcome)).Inc()
}

// RecordRun records a finished run and its duration.
func (m *Metrics) RecordRun(duration time.Duration, degraded int) {
	if m == nil {
		return
	}
	status := "clean"
	if degraded > 0 {
		status = "degraded"
	}
	m.Runs.WithLabelValues(status).Inc()
	m.RunDuration.Observe(duration.Seconds())
}

// IncActiveSessions increments the active session gauge.
func (m *Metrics) IncActiveSessions(transport string) {
	if m == nil {
		return
	}
	m.ActiveSession.WithLabelValues(transport).Inc()
}

// DecActiveSessions decrements the active session gauge.
func (m *Metrics) DecActiveSessions(transport string) {
	if m == nil {
		return
	}
	m.ActiveSession.WithLabelValues(transport).Dec()
}

// RecordTransportError records a transport-level error.
func (m *Metrics) RecordTransportError(transport, reason string) {
	if m == nil {
		return
	}
	m.TransportErrs.WithLabelValues(orUnknown(transport), orUnknown(reason)).Inc()
}

func callResult(err error) string {
	if err == nil {
		return "ok"
	}
	if llm.IsRateLimited(err) {
		return "rate_limited"
	}
	return "error"
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
