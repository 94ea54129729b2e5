package setup

import (
	"errors"
	"testing"

	"datestd/internal/metrics"
	"datestd/internal/metrics/datadog"
)

type stubBackend struct{}

func (stubBackend) IncCounter(string, float64, metrics.Labels)       {}
func (stubBackend) ObserveHistogram(string, float64, metrics.Labels) {}
func (stubBackend) Flush() error                                     { return nil }

// TestConfigure mutates package seams and the global backend, so it does not
// run in parallel.
func TestConfigure(t *testing.T) {
	origProm, origDD := newPromBackend, newDDBackend
	t.Cleanup(func() {
		newPromBackend, newDDBackend = origProm, origDD
		metrics.SetBackend(stubBackend{})
	})

	var gotURL string
	var gotDD datadog.Config
	newPromBackend = func(job, url string) (metrics.Backend, error) {
		gotURL = url
		return stubBackend{}, nil
	}
	newDDBackend = func(cfg datadog.Config) (metrics.Backend, error) {
		gotDD = cfg
		return stubBackend{}, nil
	}

	env := map[string]string{}
	getenv := func(k string) string { return env[k] }

	if got, err := Configure("", "j", getenv); err != nil || got != None {
		t.Fatalf("Configure(unset) = %q, %v; want none", got, err)
	}

	env[EnvBackend] = "pushgateway"
	if got, err := Configure("", "j", getenv); err != nil || got != Pushgateway || gotURL != DefaultPushgatewayURL {
		t.Fatalf("Configure(env pushgateway) = %q, %v url=%q", got, err, gotURL)
	}

	env[EnvDogStatsDAddr] = "10.0.0.1:8125"
	env[EnvEnvironment] = "prod"
	if got, err := Configure("Datadog", "orders", getenv); err != nil || got != Datadog {
		t.Fatalf("Configure(datadog) = %q, %v", got, err)
	}
	if gotDD.Addr != "10.0.0.1:8125" || len(gotDD.GlobalTags) != 2 || gotDD.GlobalTags[0] != "job:orders" {
		t.Fatalf("datadog config = %+v", gotDD)
	}

	if _, err := Configure("graphite", "j", getenv); err == nil {
		t.Fatalf("Configure(graphite) returned nil error")
	}

	newPromBackend = func(string, string) (metrics.Backend, error) { return nil, errors.New("boom") }
	if got, err := Configure("prom", "j", getenv); err == nil || got != None {
		t.Fatalf("Configure with failing backend = %q, %v", got, err)
	}
}
