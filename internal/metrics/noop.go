package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) IncAdminLookup(status string)                  {}
func (n *NoopRecorder) IncLockChange(action string)                   {}
func (n *NoopRecorder) IncUserUpdate(field string)                    {}
func (n *NoopRecorder) IncAuthRejected(reason string)                 {}
func (n *NoopRecorder) ObserveRequestDuration(duration time.Duration) {}
func (n *NoopRecorder) IncAuditEventPublished(status string)          {}
func (n *NoopRecorder) IncAuditEventProcessed(status string)          {}
func (n *NoopRecorder) ObserveAuditBatchSize(size int)                {}
func (n *NoopRecorder) SetAuditQueueDepth(depth int64)                {}
