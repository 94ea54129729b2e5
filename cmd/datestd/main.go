package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"datestd/internal/config"
	"datestd/internal/logger"
	"datestd/internal/metrics"
	"datestd/internal/metrics/setup"

	// register all journal backends with the storage factory.
	_ "datestd/internal/storage/all"
)

// Exit codes.
const (
	exitOK         = 0
	exitFatal      = 1
	exitRunsFailed = 2
	exitBadUsage   = 64
)

const defaultCfgPath = "configs/pipelines/sample.json"

// main loads the pipeline file, installs logging and metrics and processes
// the batch.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Getenv, os.Stderr)
	stop()
	os.Exit(code)
}

// run is main without process globals. Validation findings are printed to
// stderr; everything else is logged.
func run(ctx context.Context, args []string, getenv func(string) string, stderr io.Writer) int {
	fs := flag.NewFlagSet("datestd", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		cfgPath        string
		metricsBackend string
		validate       bool
	)
	fs.StringVar(&cfgPath, "config", defaultCfgPath, "pipeline config JSON path")
	fs.StringVar(&metricsBackend, "metrics-backend", "", "metrics backend: pushgateway, datadog or none (default $"+setup.EnvBackend+")")
	fs.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	if err := fs.Parse(args); err != nil {
		return exitBadUsage
	}

	logger.Init(logger.FromEnv(getenv))
	log := logger.Named("main")

	p, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFatal
	}
	if err := p.ApplyEnv(getenv); err != nil {
		fmt.Fprintln(stderr, err)
		return exitFatal
	}
	p.Normalize()
	if err := p.Standardize.ResolveSchema(); err != nil {
		fmt.Fprintln(stderr, err)
		return exitFatal
	}

	issues := config.ValidatePipeline(p)
	for _, iss := range issues {
		fmt.Fprintf(stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		fmt.Fprintf(stderr, "configuration is invalid: %s\n", cfgPath)
		return exitFatal
	}
	if validate {
		fmt.Fprintf(stderr, "configuration is valid: %s\n", cfgPath)
		return exitOK
	}

	backend, err := setup.Configure(metricsBackend, p.Job, getenv)
	if err != nil {
		log.Warn().Err(err).Msg("metrics disabled")
	} else {
		log.Debug().Str("backend", backend).Msg("metrics configured")
	}
	defer func() {
		if err := metrics.Flush(); err != nil {
			log.Warn().Err(err).Msg("metrics flush failed")
		}
	}()

	start := time.Now()
	sum, err := runBatch(ctx, p)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn().Msg("batch interrupted")
		} else {
			log.Error().Err(err).Msg("batch failed")
		}
		return exitFatal
	}
	log.Info().Dur("elapsed", time.Since(start).Truncate(time.Millisecond)).Msg("batch completed")
	if sum.Failed > 0 {
		return exitRunsFailed
	}
	return exitOK
}
