// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// This package adapts the generic metrics.Backend interface to Prometheus by:
//
//   - Using client_golang CounterVec and SummaryVec collectors.
//   - Mapping the run labels (outcome, kind, direction) onto Prometheus labels.
//   - Pushing collected metrics to a Prometheus Pushgateway instance instead of
//     exposing an HTTP scrape endpoint.
//
// The job label is carried by the Pushgateway grouping key, not by the
// collectors.
package prompush

import (
	"fmt"

	"datestd/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	runCounter   *prometheus.CounterVec // datestd_runs_total
	runDuration  *prometheus.SummaryVec // datestd_run_duration_seconds
	fieldCounter *prometheus.CounterVec // datestd_fields_total
	byteCounter  *prometheus.CounterVec // datestd_bytes_total
	batchCounter prometheus.Counter     // datestd_journal_batches_total
}

// NewBackend constructs a Prometheus Pushgateway backend.
// jobName: the Pushgateway "job" name (often same as pipeline job).
// gatewayURL: base URL of the Pushgateway server.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "datestd"
	}

	reg := prometheus.NewRegistry()

	runCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.RunsTotal,
			Help: "Total number of standardization runs, partitioned by outcome.",
		},
		[]string{"outcome"},
	)
	runDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       metrics.RunDurationSeconds,
			Help:       "Duration of standardization runs in seconds, partitioned by outcome.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"outcome"},
	)
	fieldCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.FieldsTotal,
			Help: "Date values rewritten, partitioned by kind (standardized, null).",
		},
		[]string{"kind"},
	)
	byteCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.BytesTotal,
			Help: "Payload bytes read and written, partitioned by direction.",
		},
		[]string{"direction"},
	)
	batchCounter := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: metrics.JournalBatchesTotal,
			Help: "Total number of journal batches flushed for this job.",
		},
	)

	for _, c := range []struct {
		name string
		col  prometheus.Collector
	}{
		{"run counter", runCounter},
		{"run summary", runDuration},
		{"field counter", fieldCounter},
		{"byte counter", byteCounter},
		{"batch counter", batchCounter},
	} {
		if err := reg.Register(c.col); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", c.name, err)
		}
	}

	return &Backend{
		gatewayURL:   gatewayURL,
		jobName:      jobName,
		reg:          reg,
		runCounter:   runCounter,
		runDuration:  runDuration,
		fieldCounter: fieldCounter,
		byteCounter:  byteCounter,
		batchCounter: batchCounter,
	}, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.RunsTotal:
		if b.runCounter == nil {
			return
		}
		b.runCounter.WithLabelValues(labels["outcome"]).Add(delta)

	case metrics.FieldsTotal:
		if b.fieldCounter == nil {
			return
		}
		b.fieldCounter.WithLabelValues(labels["kind"]).Add(delta)

	case metrics.BytesTotal:
		if b.byteCounter == nil {
			return
		}
		b.byteCounter.WithLabelValues(labels["direction"]).Add(delta)

	case metrics.JournalBatchesTotal:
		if b.batchCounter == nil {
			return
		}
		b.batchCounter.Add(delta)

	default:
		// unknown metric name: ignore
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.RunDurationSeconds || b.runDuration == nil {
		return
	}
	b.runDuration.WithLabelValues(labels["outcome"]).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
