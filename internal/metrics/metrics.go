// Package metrics wraps prometheus/client_golang for this module,
// adapted from the teacher's metrics.Metrics (a thin Registerer wrapper
// around prometheus.Registerer) into a fixed set of collectors for the
// switchboard and conductor's own operational signals: connected
// sessions, per-space membership, pending-validation queue depth, and
// bridge-call latency.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds every collector this module registers, plus the
// Registerer they were registered against, so callers can register
// additional ad-hoc collectors through the same registry.
type Metrics struct {
	Registry prometheus.Registerer

	Sessions          prometheus.Gauge
	SpaceMembers      *prometheus.GaugeVec
	PendingValidation *prometheus.GaugeVec
	BridgeCallLatency *prometheus.HistogramVec
	RPCRequests       *prometheus.CounterVec
	RPCLatency        *prometheus.HistogramVec
}

// New registers and returns the full collector set against reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Registry: reg,
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "switchboard",
			Name:      "sessions_connected",
			Help:      "Number of live WebSocket sessions held by the switchboard.",
		}),
		SpaceMembers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "switchboard",
			Name:      "space_members",
			Help:      "Number of joined agents per space.",
		}, []string{"space"}),
		PendingValidation: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "instance",
			Name:      "pending_validation_queue_depth",
			Help:      "Number of entries awaiting dependency resolution, per instance.",
		}, []string{"agent"}),
		BridgeCallLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "conductor",
			Name:      "bridge_call_latency_seconds",
			Help:      "Latency of synchronous bridge calls between instances.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"caller", "callee"}),
		RPCRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rpcserver",
			Name:      "requests_total",
			Help:      "JSON-RPC requests handled, by method and outcome.",
		}, []string{"method", "outcome"}),
		RPCLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rpcserver",
			Name:      "request_latency_seconds",
			Help:      "JSON-RPC request handling latency, by method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}

	m.Registry.MustRegister(m.Sessions, m.SpaceMembers, m.PendingValidation, m.BridgeCallLatency,
		m.RPCRequests, m.RPCLatency)
	return m
}

// Register registers an additional collector against the same registry,
// preserved from the teacher's Metrics.Register for callers that need to
// add collectors this constructor doesn't know about.
func (m *Metrics) Register(collector prometheus.Collector) error {
	return m.Registry.Register(collector)
}
