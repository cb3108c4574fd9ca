// Package metrics provides metrics collectors for placement.Store.
package metrics

// NopMetrics discards all metrics.
type NopMetrics struct{}

// NewNop creates a new no-op metrics collector.
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

// RecordMigrations discards the migrations metric.
func (n *NopMetrics) RecordMigrations(_ /* policy */, _ /* op */ string, _ /* count */ int) {
	// No-op
}

// RecordRejected discards the rejected operation metric.
func (n *NopMetrics) RecordRejected(_ /* policy */, _ /* op */, _ /* reason */ string) {
	// No-op
}

// SetNodes discards the nodes metric.
func (n *NopMetrics) SetNodes(_ /* policy */ string, _ /* count */ int) {
	// No-op
}

// SetResources discards the resources metric.
func (n *NopMetrics) SetResources(_ /* policy */ string, _ /* count */ int) {
	// No-op
}
