// Package metrics exposes Prometheus instrumentation for the settlement engine
// and the RPC surface. Every Metrics value owns its registry so tests can
// create isolated instances.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "housesplit"

// Metrics holds all collectors registered by the server.
type Metrics struct {
	registry *prometheus.Registry

	PlansComputed       prometheus.Counter
	TransfersEmitted    prometheus.Counter
	InvariantViolations *prometheus.CounterVec
	SettleSessions      prometheus.Counter
	ExpensesSettled     prometheus.Counter

	RPCRequests *prometheus.CounterVec
	RPCDuration *prometheus.HistogramVec
}

// New creates a Metrics with a fresh registry, including Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		PlansComputed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlement_plans_computed_total",
			Help:      "Number of settlement plans computed.",
		}),
		TransfersEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlement_transfers_emitted_total",
			Help:      "Number of transfers across all computed plans.",
		}),
		InvariantViolations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlement_invariant_violations_total",
			Help:      "Number of conservation or residual checks that failed.",
		}, []string{"check"}),
		SettleSessions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settle_sessions_recorded_total",
			Help:      "Number of settle-up actions recorded.",
		}),
		ExpensesSettled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expenses_settled_total",
			Help:      "Number of expenses archived by settle-up actions.",
		}),
		RPCRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_requests_total",
			Help:      "Number of RPCs handled, by procedure and status code.",
		}, []string{"procedure", "code"}),
		RPCDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_duration_seconds",
			Help:      "RPC latency by procedure.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"procedure"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.PlansComputed,
		m.TransfersEmitted,
		m.InvariantViolations,
		m.SettleSessions,
		m.ExpensesSettled,
		m.RPCRequests,
		m.RPCDuration,
	)

	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObservePlan records one computed plan with the given number of transfers.
func (m *Metrics) ObservePlan(transfers int) {
	m.PlansComputed.Inc()
	m.TransfersEmitted.Add(float64(transfers))
}

// ObserveInvariantViolation records a failed engine check.
func (m *Metrics) ObserveInvariantViolation(check string) {
	m.InvariantViolations.WithLabelValues(check).Inc()
}

// ObserveSettleSession records a settle-up that archived n expenses.
func (m *Metrics) ObserveSettleSession(n int) {
	m.SettleSessions.Inc()
	m.ExpensesSettled.Add(float64(n))
}
