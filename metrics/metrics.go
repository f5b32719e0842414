// Package metrics defines the Prometheus collectors exported by the anchor
// store, the message bus and the RPC surface.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "xlbus"

// Metrics holds every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	anchorCommits   prometheus.Counter
	anchorRejected  *prometheus.CounterVec
	anchorLatest    prometheus.Gauge
	anchorEvictions prometheus.Counter
	anchorRetained  prometheus.Gauge

	busTransitions *prometheus.CounterVec
	busRejected    *prometheus.CounterVec
	proofDuration  *prometheus.HistogramVec

	eventsDropped *prometheus.CounterVec

	rpcRequests *prometheus.CounterVec
	rpcDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		anchorCommits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "anchor",
			Name:      "commits_total",
			Help:      "State roots committed.",
		}),
		anchorRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "anchor",
			Name:      "rejected_total",
			Help:      "State root commits rejected, by reason.",
		}, []string{"reason"}),
		anchorLatest: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "anchor",
			Name:      "latest_height",
			Help:      "Highest anchored remote block height.",
		}),
		anchorEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "anchor",
			Name:      "evictions_total",
			Help:      "Anchored state roots evicted from the history window.",
		}),
		anchorRetained: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "anchor",
			Name:      "retained_roots",
			Help:      "State roots currently retained.",
		}),
		busTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "transitions_total",
			Help:      "Message status transitions, by box and statuses.",
		}, []string{"box", "from", "to"}),
		busRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "rejected_total",
			Help:      "Rejected bus operations, by operation and reason.",
		}, []string{"op", "reason"}),
		proofDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "proof_verification_seconds",
			Help:      "Time spent verifying remote status proofs.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 12), // 50us to ~100ms
		}, []string{"result"}),
		eventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Event deliveries skipped because a subscriber's buffer was full, by source.",
		}, []string{"source"}),
		rpcRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests handled.",
		}, []string{"method", "path", "status"}),
		rpcDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"method", "path"}),
	}
	reg.MustRegister(
		m.anchorCommits, m.anchorRejected, m.anchorLatest, m.anchorEvictions, m.anchorRetained,
		m.busTransitions, m.busRejected, m.proofDuration,
		m.eventsDropped,
		m.rpcRequests, m.rpcDuration,
	)
	return m
}

// NewRegistry returns a registry preloaded with Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// AnchorCommitted records a successful commit.
func (m *Metrics) AnchorCommitted(height uint64, evicted, retained int) {
	if m == nil {
		return
	}
	m.anchorCommits.Inc()
	m.anchorLatest.Set(float64(height))
	m.anchorEvictions.Add(float64(evicted))
	m.anchorRetained.Set(float64(retained))
}

// AnchorLoaded records the anchor state found at startup.
func (m *Metrics) AnchorLoaded(height uint64, retained int) {
	if m == nil {
		return
	}
	m.anchorLatest.Set(float64(height))
	m.anchorRetained.Set(float64(retained))
}

// AnchorRejected records a failed commit.
func (m *Metrics) AnchorRejected(reason string) {
	if m == nil {
		return
	}
	m.anchorRejected.WithLabelValues(reason).Inc()
}

// Transition records a status change in box.
func (m *Metrics) Transition(box, from, to string) {
	if m == nil {
		return
	}
	m.busTransitions.WithLabelValues(box, from, to).Inc()
}

// Rejected records a failed bus operation.
func (m *Metrics) Rejected(op, reason string) {
	if m == nil {
		return
	}
	m.busRejected.WithLabelValues(op, reason).Inc()
}

// ProofVerified records the duration of one remote status verification.
func (m *Metrics) ProofVerified(start time.Time, ok bool) {
	if m == nil {
		return
	}
	result := "valid"
	if !ok {
		result = "invalid"
	}
	m.proofDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
}

// EventsDropped records n deliveries from source that subscribers missed.
func (m *Metrics) EventsDropped(source string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.eventsDropped.WithLabelValues(source).Add(float64(n))
}

// HTTPRequest records one served HTTP request.
func (m *Metrics) HTTPRequest(method, path string, status int, start time.Time) {
	if m == nil {
		return
	}
	m.rpcRequests.WithLabelValues(method, path, statusLabel(status)).Inc()
	m.rpcDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
