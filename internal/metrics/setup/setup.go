// Package setup selects and installs the process-wide metrics backend.
package setup

import (
	"fmt"
	"strings"

	"datestd/internal/metrics"
	"datestd/internal/metrics/datadog"
	"datestd/internal/metrics/prompush"
)

// Environment variables read by Configure.
const (
	EnvBackend        = "METRICS_BACKEND"
	EnvPushgatewayURL = "PUSHGATEWAY_URL"
	EnvDogStatsDAddr  = "DOGSTATSD_ADDR"
	EnvEnvironment    = "DATESTD_ENV"
)

// Backend names.
const (
	Pushgateway = "pushgateway"
	Datadog     = "datadog"
	None        = "none"
)

// Defaults used when the matching variable is unset.
const (
	DefaultPushgatewayURL = "http://localhost:9091"
	DefaultDogStatsDAddr  = "127.0.0.1:8125"
)

// Seams for tests.
var (
	newPromBackend = func(job, url string) (metrics.Backend, error) { return prompush.NewBackend(job, url) }
	newDDBackend   = func(cfg datadog.Config) (metrics.Backend, error) { return datadog.NewBackend(cfg) }
)

// Configure installs the backend named by name, falling back to
// METRICS_BACKEND when name is empty. "" and "none" keep the no-op backend.
// It returns the backend name that was installed.
func Configure(name, job string, getenv func(string) string) (string, error) {
	if name == "" {
		name = getenv(EnvBackend)
	}
	name = strings.ToLower(strings.TrimSpace(name))

	switch name {
	case "", None:
		return None, nil
	case Pushgateway, "prom", "prometheus":
		url := firstNonEmpty(getenv(EnvPushgatewayURL), DefaultPushgatewayURL)
		b, err := newPromBackend(job, url)
		if err != nil {
			return None, fmt.Errorf("metrics: pushgateway: %w", err)
		}
		metrics.SetBackend(b)
		return Pushgateway, nil
	case Datadog, "dogstatsd":
		cfg := datadog.Config{Addr: firstNonEmpty(getenv(EnvDogStatsDAddr), DefaultDogStatsDAddr)}
		cfg.GlobalTags = []string{"job:" + job}
		if env := getenv(EnvEnvironment); env != "" {
			cfg.GlobalTags = append(cfg.GlobalTags, "env:"+env)
		}
		b, err := newDDBackend(cfg)
		if err != nil {
			return None, fmt.Errorf("metrics: datadog: %w", err)
		}
		metrics.SetBackend(b)
		return Datadog, nil
	}
	return None, fmt.Errorf("metrics: unknown backend %q", name)
}

func firstNonEmpty(v, def string) string {
	if s := strings.TrimSpace(v); s != "" {
		return s
	}
	return def
}
