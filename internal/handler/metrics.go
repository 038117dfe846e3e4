package handler

import (
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/cargoyard/cargoyard/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus text exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeFamily(w, "cargoyard_admin_lookups_total", "status", snap.AdminLookups)
	writeFamily(w, "cargoyard_lock_changes_total", "action", snap.LockChanges)
	writeFamily(w, "cargoyard_user_updates_total", "field", snap.UserUpdates)
	writeFamily(w, "cargoyard_auth_rejected_total", "reason", snap.AuthRejected)
	writeFamily(w, "cargoyard_audit_events_published_total", "status", snap.AuditPublish)
	writeFamily(w, "cargoyard_audit_events_processed_total", "status", snap.AuditProcess)

	writeMetric(w, "cargoyard_http_request_duration_seconds_count %d\n", snap.RequestDurationCount)
	writeMetric(w, "cargoyard_http_request_duration_seconds_sum %.6f\n", float64(snap.RequestDurationTotalNs)/1e9)
	writeMetric(w, "cargoyard_audit_batches_total %d\n", snap.AuditBatchCount)
	writeMetric(w, "cargoyard_audit_batch_events_total %d\n", snap.AuditBatchEvents)
	writeMetric(w, "cargoyard_audit_queue_depth %d\n", snap.AuditQueueDepth)
}

// writeFamily writes one labelled counter per entry, in label order.
func writeFamily(w io.Writer, name, label string, values map[string]uint64) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeMetric(w, "%s{%s=%q} %d\n", name, label, k, values[k])
	}
}

func writeMetric(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
