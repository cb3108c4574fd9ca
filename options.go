package placement

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used by Store. Nil logger disables logging.
func WithLogger(l Logger) Option {
	return func(s *Store) {
		if l == nil {
			l = nopLogger{}
		}
		s.log = l
	}
}

// WithMetrics sets the metrics collector used by Store.
func WithMetrics(m MetricsCollector) Option {
	return func(s *Store) {
		if m == nil {
			m = nopMetrics{}
		}
		s.metrics = m
	}
}

// WithTrace adds hooks to be called by Store. It may be given more than once;
// hooks are composed in order.
func WithTrace(t StoreTrace) Option {
	return func(s *Store) {
		s.trace = s.trace.Compose(t)
	}
}
