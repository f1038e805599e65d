package observability

import "time"

// Tracker times a single operation.
type Tracker struct {
	metrics   *Metrics
	operation string
	start     time.Time
}

// Track starts timing operation. It is safe on a nil *Metrics.
func (m *Metrics) Track(operation string) *Tracker {
	return &Tracker{metrics: m, operation: operation, start: time.Now()}
}

// End records the duration under a success or failure status and returns err
// untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.operation == "" {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	t.metrics.operations.WithLabelValues(t.operation, status).Observe(time.Since(t.start).Seconds())
	return err
}
