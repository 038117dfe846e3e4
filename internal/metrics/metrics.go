// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
type Recorder interface {
	// Admin user management
	IncAdminLookup(status string) // "found" or "not_found"
	IncLockChange(action string)  // "lock" or "unlock"
	IncUserUpdate(field string)   // "email", "publish_notifications", "resend"

	// Authentication
	IncAuthRejected(reason string) // "missing", "invalid", "locked", "forbidden"

	// HTTP
	ObserveRequestDuration(duration time.Duration)

	// Moderation audit pipeline
	IncAuditEventPublished(status string) // "success" or "dropped"
	IncAuditEventProcessed(status string) // "success", "failed", "skipped"
	ObserveAuditBatchSize(size int)
	SetAuditQueueDepth(depth int64)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
