package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements placement.MetricsCollector backed by
// Prometheus. Metrics are registered on first use.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	migrations *prometheus.CounterVec
	rejected   *prometheus.CounterVec
	nodes      *prometheus.GaugeVec
	resources  *prometheus.GaugeVec
}

// NewPrometheus creates a new Prometheus-backed metrics collector.
//
// If reg is nil prometheus.DefaultRegisterer is used. If namespace is empty
// "placement" is used.
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "placement"
	}

	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.migrations = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "store",
			Name:      "migrations_total",
			Help:      "Total resources migrated between nodes by policy and operation.",
		}, []string{"policy", "op"})

		p.rejected = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "store",
			Name:      "rejected_total",
			Help:      "Total operations refused without change by policy, operation and reason.",
		}, []string{"policy", "op", "reason"})

		p.nodes = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "store",
			Name:      "nodes",
			Help:      "Current number of nodes.",
		}, []string{"policy"})

		p.resources = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "store",
			Name:      "resources",
			Help:      "Current number of stored resources.",
		}, []string{"policy"})

		p.reg.MustRegister(
			p.migrations,
			p.rejected,
			p.nodes,
			p.resources,
		)
	})
}

// RecordMigrations adds count to the migrations counter.
func (p *PrometheusCollector) RecordMigrations(policy, op string, count int) {
	p.ensureRegistered()
	p.migrations.WithLabelValues(policy, op).Add(float64(count))
}

// RecordRejected increments the rejected operations counter.
func (p *PrometheusCollector) RecordRejected(policy, op, reason string) {
	p.ensureRegistered()
	p.rejected.WithLabelValues(policy, op, reason).Inc()
}

// SetNodes sets the nodes gauge.
func (p *PrometheusCollector) SetNodes(policy string, count int) {
	p.ensureRegistered()
	p.nodes.WithLabelValues(policy).Set(float64(count))
}

// SetResources sets the resources gauge.
func (p *PrometheusCollector) SetResources(policy string, count int) {
	p.ensureRegistered()
	p.resources.WithLabelValues(policy).Set(float64(count))
}
