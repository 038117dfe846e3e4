package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	AdminLookups map[string]uint64
	LockChanges  map[string]uint64
	UserUpdates  map[string]uint64
	AuthRejected map[string]uint64
	AuditPublish map[string]uint64
	AuditProcess map[string]uint64

	RequestDurationCount   uint64
	RequestDurationTotalNs int64

	AuditBatchCount  uint64
	AuditBatchEvents uint64
	AuditQueueDepth  int64
}

// InMemoryRecorder keeps metrics in process memory. It backs /metrics.
type InMemoryRecorder struct {
	mu       sync.Mutex
	counters map[string]map[string]uint64

	requestDurationCount   atomic.Uint64
	requestDurationTotalNs atomic.Int64
	auditBatchCount        atomic.Uint64
	auditBatchEvents       atomic.Uint64
	auditQueueDepth        atomic.Int64
}

const (
	familyAdminLookup  = "admin_lookup"
	familyLockChange   = "lock_change"
	familyUserUpdate   = "user_update"
	familyAuthRejected = "auth_rejected"
	familyAuditPublish = "audit_publish"
	familyAuditProcess = "audit_process"
)

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{counters: make(map[string]map[string]uint64)}
}

func (m *InMemoryRecorder) inc(family, label string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.counters[family]
	if !ok {
		f = make(map[string]uint64)
		m.counters[family] = f
	}
	f[label]++
}

func (m *InMemoryRecorder) copyFamily(family string) map[string]uint64 {
	out := make(map[string]uint64, len(m.counters[family]))
	for k, v := range m.counters[family] {
		out[k] = v
	}
	return out
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	snap := Snapshot{
		AdminLookups: m.copyFamily(familyAdminLookup),
		LockChanges:  m.copyFamily(familyLockChange),
		UserUpdates:  m.copyFamily(familyUserUpdate),
		AuthRejected: m.copyFamily(familyAuthRejected),
		AuditPublish: m.copyFamily(familyAuditPublish),
		AuditProcess: m.copyFamily(familyAuditProcess),
	}
	m.mu.Unlock()

	snap.RequestDurationCount = m.requestDurationCount.Load()
	snap.RequestDurationTotalNs = m.requestDurationTotalNs.Load()
	snap.AuditBatchCount = m.auditBatchCount.Load()
	snap.AuditBatchEvents = m.auditBatchEvents.Load()
	snap.AuditQueueDepth = m.auditQueueDepth.Load()
	return snap
}

// IncAdminLookup counts admin user lookups by outcome.
func (m *InMemoryRecorder) IncAdminLookup(status string) { m.inc(familyAdminLookup, status) }

// IncLockChange counts lock and unlock actions.
func (m *InMemoryRecorder) IncLockChange(action string) { m.inc(familyLockChange, action) }

// IncUserUpdate counts profile updates by field.
func (m *InMemoryRecorder) IncUserUpdate(field string) { m.inc(familyUserUpdate, field) }

// IncAuthRejected counts rejected requests by reason.
func (m *InMemoryRecorder) IncAuthRejected(reason string) { m.inc(familyAuthRejected, reason) }

// IncAuditEventPublished counts audit events handed to the stream.
func (m *InMemoryRecorder) IncAuditEventPublished(status string) { m.inc(familyAuditPublish, status) }

// IncAuditEventProcessed counts audit events handled by the worker.
func (m *InMemoryRecorder) IncAuditEventProcessed(status string) { m.inc(familyAuditProcess, status) }

// ObserveRequestDuration records request duration.
func (m *InMemoryRecorder) ObserveRequestDuration(duration time.Duration) {
	m.requestDurationCount.Add(1)
	m.requestDurationTotalNs.Add(duration.Nanoseconds())
}

// ObserveAuditBatchSize records one persisted batch.
func (m *InMemoryRecorder) ObserveAuditBatchSize(size int) {
	m.auditBatchCount.Add(1)
	m.auditBatchEvents.Add(uint64(size))
}

// SetAuditQueueDepth records the current stream length.
func (m *InMemoryRecorder) SetAuditQueueDepth(depth int64) {
	m.auditQueueDepth.Store(depth)
}
