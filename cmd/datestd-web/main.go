// Command datestd-web serves the date standardizer over HTTP.
//
// Usage:
//
//	go run ./cmd/datestd-web -addr :8080 -timezone America/Chicago
//
//	curl --data-binary @orders.json \
//	  'localhost:8080/api/standardize?invalidDates={"bad_date":"MM/dd/yy"}'
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"datestd/internal/config"
	"datestd/internal/logger"
	"datestd/internal/metrics"
	"datestd/internal/metrics/setup"
	"datestd/internal/transformer"
	"datestd/internal/webui"
)

// server is the part of *webui.Server used here.
type server interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

var newServer = func(cfg webui.Config) server { return webui.NewServer(cfg) }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Getenv); err != nil {
		logger.Named("main").Error().Err(err).Msg("exit")
		stop()
		os.Exit(1)
	}
}

// run parses flags, starts the server and shuts it down when ctx ends.
func run(ctx context.Context, args []string, getenv func(string) string) error {
	fs := flag.NewFlagSet("datestd-web", flag.ContinueOnError)
	addr := fs.String("addr", ":8080", "listen address")
	tz := fs.String("timezone", getenv(config.EnvTZ), "default timezone when a request has none")
	format := fs.String("flow-format", "JSON", "default flow format")
	maxBody := fs.Int64("max-body", webui.DefaultMaxBodyBytes, "request body limit in bytes")
	metricsBackend := fs.String("metrics-backend", "", "metrics backend: pushgateway, datadog or none")
	if err := fs.Parse(args); err != nil {
		return err
	}

	opt := logger.FromEnv(getenv)
	if getenv("LOG_FORMAT") == "" {
		opt.Format = "json"
	}
	logger.Init(opt)
	log := logger.Named("main")

	if _, err := setup.Configure(*metricsBackend, "datestd-web", getenv); err != nil {
		log.Warn().Err(err).Msg("metrics disabled")
	}
	defer func() { _ = metrics.Flush() }()

	defaults := config.Options{transformer.OptFlowFormat: *format}
	if *tz != "" {
		defaults[transformer.OptTimezone] = *tz
	}
	srv := newServer(webui.Config{Addr: *addr, MaxBodyBytes: *maxBody, Defaults: defaults})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return <-errCh
}
