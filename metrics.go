package placement

// MetricsCollector receives Store statistics.
// The policy argument is the Policy.Name() of the Store.
type MetricsCollector interface {
	// RecordMigrations records n resources moved by a membership change op.
	RecordMigrations(policy, op string, n int)

	// RecordRejected records an operation refused without change.
	RecordRejected(policy, op, reason string)

	// SetNodes sets current number of nodes.
	SetNodes(policy string, n int)

	// SetResources sets current number of stored resources.
	SetResources(policy string, n int)
}

type nopMetrics struct{}

func (nopMetrics) RecordMigrations(string, string, int)  {}
func (nopMetrics) RecordRejected(string, string, string) {}
func (nopMetrics) SetNodes(string, int)                  {}
func (nopMetrics) SetResources(string, int)              {}
