// Package metrics provides a small, backend-agnostic abstraction for recording
// operational metrics from standardization runs.
//
// The package is intentionally minimal:
//
//   - It exposes a narrow interface (Backend) focused on counters and timing
//     data (histograms).
//   - It provides a global, pluggable backend that defaults to a no-op
//     implementation, so metrics are always safe to call even when no real
//     backend is configured.
//   - Concrete metric systems (Prometheus Pushgateway, DogStatsD) live in
//     subpackages, mirroring the storage.Repository registry.
package metrics

import "time"

// Metric names emitted by the helpers below.
const (
	RunsTotal           = "datestd_runs_total"
	RunDurationSeconds  = "datestd_run_duration_seconds"
	FieldsTotal         = "datestd_fields_total"
	BytesTotal          = "datestd_bytes_total"
	JournalBatchesTotal = "datestd_journal_batches_total"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

// nopBackend is used by default so metrics are optional.
type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
// Call it before any run starts.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordRun counts one run and its duration under the given outcome
// ("success", "bypass" or "failure").
func RecordRun(job, outcome string, d time.Duration) {
	lbls := Labels{
		"job":     job,
		"outcome": outcome,
	}
	backend.IncCounter(RunsTotal, 1, lbls)
	backend.ObserveHistogram(RunDurationSeconds, d.Seconds(), lbls)
}

// RecordFields counts rewritten date values. Kinds are "standardized" and
// "null".
func RecordFields(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(FieldsTotal, float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordBytes counts payload bytes in a direction ("in" or "out").
func RecordBytes(job, direction string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(BytesTotal, float64(delta), Labels{
		"job":       job,
		"direction": direction,
	})
}

// RecordJournalBatches increments the journal batch counter for the given job.
func RecordJournalBatches(job string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(JournalBatchesTotal, float64(delta), Labels{
		"job": job,
	})
}
