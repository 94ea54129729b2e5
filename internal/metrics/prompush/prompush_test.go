package prompush

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"datestd/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// readCounterValue reads the current value of a Counter for assertions in tests.
func readCounterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()

	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		t.Fatalf("Counter.Write() error = %v", err)
	}
	if m.GetCounter() == nil {
		t.Fatalf("metric did not contain Counter value")
	}
	return m.GetCounter().GetValue()
}

// readSummaryCountSum reads sample count and sum from a SummaryVec for assertions in tests.
func readSummaryCountSum(t *testing.T, v *prometheus.SummaryVec, labels ...string) (uint64, float64) {
	t.Helper()

	m := &dto.Metric{}
	metric, ok := v.WithLabelValues(labels...).(prometheus.Metric)
	if !ok {
		t.Fatalf("SummaryVec.WithLabelValues(...) does not implement prometheus.Metric")
	}
	if err := metric.Write(m); err != nil {
		t.Fatalf("Summary.Write() error = %v", err)
	}
	if m.GetSummary() == nil {
		t.Fatalf("metric did not contain Summary value")
	}
	sum := m.GetSummary()
	return sum.GetSampleCount(), sum.GetSampleSum()
}

// TestNewBackend constructs backends with different inputs and validates
// field initialization and defaults.
func TestNewBackend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		jobName     string
		gatewayURL  string
		wantErr     bool
		wantJobName string
	}{
		{name: "missing gateway URL returns error", jobName: "orders", wantErr: true},
		{name: "empty job name uses default", gatewayURL: "http://pushgateway:9091", wantJobName: "datestd"},
		{name: "explicit job name is preserved", jobName: "orders", gatewayURL: "http://pushgateway:9091", wantJobName: "orders"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b, err := NewBackend(tt.jobName, tt.gatewayURL)
			if tt.wantErr {
				if err == nil || b != nil {
					t.Fatalf("NewBackend(%q, %q) = %v, %v; want nil, error", tt.jobName, tt.gatewayURL, b, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewBackend(%q, %q) error = %v, want nil", tt.jobName, tt.gatewayURL, err)
			}
			if b.jobName != tt.wantJobName {
				t.Fatalf("backend.jobName = %q, want %q", b.jobName, tt.wantJobName)
			}
			if b.runCounter == nil || b.runDuration == nil || b.fieldCounter == nil || b.byteCounter == nil || b.batchCounter == nil {
				t.Fatalf("collectors not initialized: %+v", b)
			}
		})
	}
}

// TestIncCounter verifies that IncCounter routes updates to the correct
// Prometheus collectors and ignores unknown metric names.
func TestIncCounter(t *testing.T) {
	t.Parallel()

	b, err := NewBackend("orders", "http://example.com")
	if err != nil {
		t.Fatalf("NewBackend() error = %v", err)
	}

	b.IncCounter(metrics.RunsTotal, 1, metrics.Labels{"job": "orders", "outcome": "success"})
	b.IncCounter(metrics.RunsTotal, 2, metrics.Labels{"job": "orders", "outcome": "success"})
	b.IncCounter(metrics.FieldsTotal, 5, metrics.Labels{"kind": "standardized"})
	b.IncCounter(metrics.BytesTotal, 64, metrics.Labels{"direction": "out"})
	b.IncCounter(metrics.JournalBatchesTotal, 0.5, metrics.Labels{})
	b.IncCounter("unknown_metric", 10, metrics.Labels{"foo": "bar"})

	checks := []struct {
		name string
		c    prometheus.Counter
		want float64
	}{
		{"runs success", b.runCounter.WithLabelValues("success"), 3},
		{"runs failure", b.runCounter.WithLabelValues("failure"), 0},
		{"fields", b.fieldCounter.WithLabelValues("standardized"), 5},
		{"bytes", b.byteCounter.WithLabelValues("out"), 64},
		{"batches", b.batchCounter, 0.5},
	}
	for _, c := range checks {
		if got := readCounterValue(t, c.c); got != c.want {
			t.Fatalf("%s = %v, want %v", c.name, got, c.want)
		}
	}
}

// TestIncCounterNilMetrics ensures that a zero-value backend ignores updates.
func TestIncCounterNilMetrics(t *testing.T) {
	t.Parallel()

	b := &Backend{}
	b.IncCounter(metrics.RunsTotal, 1, metrics.Labels{"outcome": "success"})
	b.IncCounter(metrics.FieldsTotal, 1, metrics.Labels{"kind": "null"})
	b.IncCounter(metrics.BytesTotal, 1, metrics.Labels{"direction": "in"})
	b.IncCounter(metrics.JournalBatchesTotal, 1, metrics.Labels{})
	b.ObserveHistogram(metrics.RunDurationSeconds, 1, metrics.Labels{"outcome": "success"})
}

// TestObserveHistogram verifies that run durations land in the summary.
func TestObserveHistogram(t *testing.T) {
	t.Parallel()

	b, err := NewBackend("orders", "http://example.com")
	if err != nil {
		t.Fatalf("NewBackend() error = %v", err)
	}

	b.ObserveHistogram(metrics.RunDurationSeconds, 1.5, metrics.Labels{"outcome": "bypass"})
	b.ObserveHistogram("other_metric", 2.0, metrics.Labels{"outcome": "bypass"})

	gotCount, gotSum := readSummaryCountSum(t, b.runDuration, "bypass")
	if gotCount != 1 || gotSum != 1.5 {
		t.Fatalf("summary = (%d, %v), want (1, 1.5)", gotCount, gotSum)
	}
}

// TestFlush verifies that Flush pushes the registry to the configured
// Pushgateway URL under the job grouping key.
func TestFlush(t *testing.T) {
	t.Parallel()

	type pushRequestInfo struct {
		method string
		path   string
		body   string
	}
	reqCh := make(chan pushRequestInfo, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		body, _ := io.ReadAll(r.Body)
		reqCh <- pushRequestInfo{method: r.Method, path: r.URL.Path, body: string(body)}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	b, err := NewBackend("orders", server.URL)
	if err != nil {
		t.Fatalf("NewBackend() error = %v", err)
	}
	b.IncCounter(metrics.RunsTotal, 1, metrics.Labels{"outcome": "success"})

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	var got pushRequestInfo
	select {
	case got = <-reqCh:
	default:
		t.Fatalf("Flush() did not result in any HTTP request to the Pushgateway")
	}
	if got.method != http.MethodPut {
		t.Fatalf("method = %q, want PUT", got.method)
	}
	if !strings.Contains(got.path, "/job/orders") {
		t.Fatalf("path = %q, want job grouping key", got.path)
	}
	if len(got.body) == 0 {
		t.Fatalf("Push request body is empty")
	}
}

// BenchmarkIncCounterRun measures the cost of counting a run through the
// Backend abstraction.
func BenchmarkIncCounterRun(b *testing.B) {
	backend, err := NewBackend("orders", "http://example.com")
	if err != nil {
		b.Fatalf("NewBackend() error = %v", err)
	}
	labels := metrics.Labels{"outcome": "success"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		backend.IncCounter(metrics.RunsTotal, 1, labels)
	}
}
