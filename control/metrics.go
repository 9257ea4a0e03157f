// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Prometheus collectors for the event loop.

package control

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Disconnect reasons used as the "reason" label.
const (
	ReasonPeer     = "peer"
	ReasonError    = "error"
	ReasonShutdown = "shutdown"
)

// MetricsConfig configures the collectors.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "hioload_tcp").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Registry receives the collectors. Default: a fresh prometheus.Registry,
	// so several servers in one process never collide.
	Registry prometheus.Registerer
}

// MetricsOption configures the collectors.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

// Metrics holds the event loop collectors.
type Metrics struct {
	ConnectionsActive prometheus.Gauge
	Accepted          prometheus.Counter
	Disconnects       *prometheus.CounterVec
	BytesReceived     prometheus.Counter
	BytesSent         prometheus.Counter
	ReceiveChunk      prometheus.Histogram
	WriteFailures     prometheus.Counter
	AcceptErrors      prometheus.Counter
	WaitFailures      prometheus.Counter
	Binds             *prometheus.CounterVec
	LoopIterations    prometheus.Counter

	gatherer prometheus.Gatherer
}

// NewMetrics registers the collectors and returns them.
func NewMetrics(opts ...MetricsOption) *Metrics {
	cfg := MetricsConfig{Namespace: "hioload_tcp"}
	for _, opt := range opts {
		opt(&cfg)
	}
	var gatherer prometheus.Gatherer
	if cfg.Registry == nil {
		reg := prometheus.NewRegistry()
		cfg.Registry, gatherer = reg, reg
	} else if g, ok := cfg.Registry.(prometheus.Gatherer); ok {
		gatherer = g
	}
	factory := promauto.With(cfg.Registry)

	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: cfg.ConstLabels,
		})
	}

	return &Metrics{
		ConnectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "connections_active",
			Help:        "Number of connections currently registered with the event loop",
			ConstLabels: cfg.ConstLabels,
		}),
		Accepted: counter("connections_accepted_total", "Total number of accepted connections"),
		Disconnects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "disconnects_total",
			Help:        "Total number of disconnects by reason",
			ConstLabels: cfg.ConstLabels,
		}, []string{"reason"}),
		BytesReceived: counter("bytes_received_total", "Total bytes delivered to the listener"),
		BytesSent:     counter("bytes_sent_total", "Total bytes written to peers"),
		ReceiveChunk: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "receive_chunk_bytes",
			Help:        "Size of each chunk delivered to the listener",
			ConstLabels: cfg.ConstLabels,
			Buckets:     prometheus.ExponentialBuckets(16, 4, 8),
		}),
		WriteFailures:  counter("write_failures_total", "Total number of failed sends"),
		AcceptErrors:   counter("accept_errors_total", "Total number of accept failures"),
		WaitFailures:   counter("wait_failures_total", "Total number of readiness wait failures that ended a run"),
		LoopIterations: counter("loop_iterations_total", "Total number of event loop iterations"),
		Binds: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "binds_total",
			Help:        "Total number of bind attempts by result",
			ConstLabels: cfg.ConstLabels,
		}, []string{"result"}),
		gatherer: gatherer,
	}
}

// Gatherer returns the registry the collectors were registered with, or nil
// when the configured Registerer cannot be gathered from.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.gatherer
}
