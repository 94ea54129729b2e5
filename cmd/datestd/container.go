// Package main runs a date standardization pipeline over a batch of inputs.
//
// Every input goes through transformer.Run on its own and is routed by
// outcome: rewritten bodies land in the success directory, untouched inputs
// in the bypass directory and failed inputs (original bytes plus a .error
// file) in the failure directory. Each run is logged, counted in metrics and,
// when configured, journaled to a database.
package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"datestd/internal/config"
	"datestd/internal/datasource"
	"datestd/internal/datasource/httpds"
	"datestd/internal/logger"
	"datestd/internal/metrics"
	"datestd/internal/storage"
	"datestd/internal/transformer"
)

// counters holds cross-goroutine statistics for a batch.
type counters struct {
	inputs       atomic.Int64
	succeeded    atomic.Int64
	bypassed     atomic.Int64
	failed       atomic.Int64
	standardized atomic.Int64
	nulls        atomic.Int64
	bytesIn      atomic.Int64
	bytesOut     atomic.Int64
}

// summary is the end-of-batch report.
type summary struct {
	Inputs, Succeeded, Bypassed, Failed int64
	Standardized, Nulls                 int64
	BytesIn, BytesOut                   int64
	Journaled                           int64
}

func (c *counters) summary() summary {
	return summary{
		Inputs:       c.inputs.Load(),
		Succeeded:    c.succeeded.Load(),
		Bypassed:     c.bypassed.Load(),
		Failed:       c.failed.Load(),
		Standardized: c.standardized.Load(),
		Nulls:        c.nulls.Load(),
		BytesIn:      c.bytesIn.Load(),
		BytesOut:     c.bytesOut.Load(),
	}
}

// Function variables used as test seams.
var (
	newRepositoryFn = storage.New

	resolveSourcesFn = datasource.Resolve

	runFn = transformer.Run

	newRunID = uuid.NewString

	now = time.Now
)

// recorder receives one journal entry per input. *storage.Journal satisfies
// it; a nil recorder disables journaling.
type recorder interface {
	Record(e storage.Entry)
}

// runner processes one batch.
type runner struct {
	p        config.Pipeline
	settings transformer.Settings
	journal  recorder
	stats    counters
}

// runBatch resolves the pipeline's inputs and processes them with
// p.Runtime.Workers workers. Per-input failures are routed and counted; the
// returned error is reserved for problems that stop the whole batch
// (unresolvable source, unwritable output, journal failure).
func runBatch(ctx context.Context, p config.Pipeline) (summary, error) {
	log := logger.Named("runner")

	client := httpds.NewClient(httpds.Config{
		Timeout:            time.Duration(p.Source.Remote.TimeoutSeconds) * time.Second,
		MaxRetries:         p.Source.Remote.MaxRetries,
		InsecureSkipVerify: p.Source.Remote.InsecureSkipVerify,
	})
	sources, err := resolveSourcesFn(p.Source.Kind, p.Source.Path, p.Source.Glob, client)
	if err != nil {
		return summary{}, err
	}
	for _, dir := range []string{p.Output.SuccessDir, p.Output.FailureDir, p.Output.BypassDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return summary{}, fmt.Errorf("create output dir: %w", err)
		}
	}

	r := &runner{p: p, settings: transformer.SettingsFromOptions(p.Standardize.Options())}

	var journal *storage.Journal
	if p.Journal.Enabled() {
		repo, err := initRepository(ctx, p)
		if err != nil {
			return summary{}, err
		}
		defer repo.Close()
		journal = storage.OpenJournal(ctx, repo, p.Job, p.Runtime.BatchSize, p.Runtime.ChannelBuffer)
		r.journal = journal
	}

	log.Info().
		Str("job", p.Job).
		Int("inputs", len(sources)).
		Int("workers", p.Runtime.Workers).
		Str("format", string(r.settings.FlowFormat)).
		Bool("journal", journal != nil).
		Msg("batch started")

	g, gctx := errgroup.WithContext(ctx)
	queue := make(chan datasource.Source, p.Runtime.ChannelBuffer)

	g.Go(func() error {
		defer close(queue)
		for _, src := range sources {
			select {
			case queue <- src:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	for i := 0; i < p.Runtime.Workers; i++ {
		g.Go(func() error {
			for src := range queue {
				if err := r.process(gctx, src); err != nil {
					return err
				}
			}
			return nil
		})
	}
	runErr := g.Wait()

	sum := r.stats.summary()
	if journal != nil {
		n, err := journal.Close()
		sum.Journaled = n
		if err != nil && runErr == nil {
			runErr = fmt.Errorf("journal: %w", err)
		}
	}
	logSummary(sum)
	return sum, runErr
}

// initRepository opens the journal database and creates its table when
// asked to.
func initRepository(ctx context.Context, p config.Pipeline) (storage.Repository, error) {
	repo, err := newRepositoryFn(ctx, storage.Config{
		Kind:  p.Journal.Kind,
		DSN:   p.Journal.DB.DSN,
		Table: p.Journal.DB.Table,
	})
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", p.Journal.Kind, err)
	}
	if p.Journal.DB.AutoCreateTable {
		if err := storage.EnsureJournal(ctx, p.Journal.Kind, p.Journal.DB.Table, repo); err != nil {
			repo.Close()
			return nil, fmt.Errorf("journal: create table: %w", err)
		}
	}
	return repo, nil
}

// process runs one input and routes its outcome.
func (r *runner) process(ctx context.Context, src datasource.Source) error {
	r.stats.inputs.Add(1)
	runID := newRunID()
	start := now()

	var out transformer.Outcome
	var original bytes.Buffer
	rc, err := src.Open(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		out = transformer.Outcome{Kind: transformer.Failure, Err: err}
	} else {
		// the original bytes are kept for the failure route
		out = runFn(ctx, r.settings, io.TeeReader(rc, &original))
		_ = rc.Close()
	}
	elapsed := now().Sub(start)

	if ctx.Err() != nil && out.Kind == transformer.Failure {
		return ctx.Err()
	}

	dest, err := r.route(src.BaseName(), out, original.Bytes())
	if err != nil {
		return err
	}
	r.account(src, runID, out, elapsed, dest)
	return nil
}

// route writes the outcome to its directory and returns the path written.
func (r *runner) route(base string, out transformer.Outcome, original []byte) (string, error) {
	switch out.Kind {
	case transformer.Success:
		return writeFileAtomic(filepath.Join(r.p.Output.SuccessDir, base), out.Body)
	case transformer.Bypass:
		return writeFileAtomic(filepath.Join(r.p.Output.BypassDir, base), out.Body)
	}
	dest, err := writeFileAtomic(filepath.Join(r.p.Output.FailureDir, base), original)
	if err != nil {
		return "", err
	}
	if _, err := writeFileAtomic(dest+".error", []byte(out.Err.Error()+"\n")); err != nil {
		return "", err
	}
	return dest, nil
}

// account updates counters, metrics, logs and the journal for one run.
func (r *runner) account(src datasource.Source, runID string, out transformer.Outcome, elapsed time.Duration, dest string) {
	job := r.p.Job
	outcome := out.Kind.String()
	bytesOut := int64(len(out.Body))

	switch out.Kind {
	case transformer.Success:
		r.stats.succeeded.Add(1)
	case transformer.Bypass:
		r.stats.bypassed.Add(1)
	default:
		r.stats.failed.Add(1)
		bytesOut = 0
	}
	r.stats.standardized.Add(int64(out.Standardized))
	r.stats.nulls.Add(int64(out.Nulls))
	r.stats.bytesIn.Add(out.BytesIn)
	r.stats.bytesOut.Add(bytesOut)

	metrics.RecordRun(job, outcome, elapsed)
	metrics.RecordFields(job, "standardized", int64(out.Standardized))
	metrics.RecordFields(job, "null", int64(out.Nulls))
	metrics.RecordBytes(job, "in", out.BytesIn)
	metrics.RecordBytes(job, "out", bytesOut)

	log := logger.Named("runner")
	evt := log.Info()
	if out.Kind == transformer.Failure {
		evt = log.Warn().Err(out.Err)
	}
	evt.Str("run_id", runID).
		Str("source", src.Name()).
		Str("outcome", outcome).
		Strs("matched", out.Matched).
		Str("fingerprint", out.Fingerprint).
		Str("dest", dest).
		Dur("duration", elapsed).
		Msg("run done")

	if r.journal == nil {
		return
	}
	e := storage.Entry{
		RunID:       runID,
		Job:         job,
		Source:      src.Name(),
		Format:      string(r.settings.FlowFormat),
		Outcome:     outcome,
		Matched:     out.Matched,
		Fingerprint: out.Fingerprint,
		BytesIn:     out.BytesIn,
		BytesOut:    bytesOut,
		Duration:    elapsed,
		CreatedAt:   now(),
	}
	if out.Err != nil {
		e.Err = out.Err.Error()
	}
	r.journal.Record(e)
}

// writeFileAtomic writes data to a temporary file next to path and renames
// it into place so readers never see a partial output.
func writeFileAtomic(path string, data []byte) (string, error) {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	tmp := f.Name()
	_, werr := f.Write(data)
	cerr := f.Close()
	if err := errors.Join(werr, cerr); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

func logSummary(s summary) {
	log := logger.Named("runner")
	evt := log.Info()
	if s.Failed > 0 {
		evt = log.Warn()
	}
	evt.Int64("inputs", s.Inputs).
		Int64("succeeded", s.Succeeded).
		Int64("bypassed", s.Bypassed).
		Int64("failed", s.Failed).
		Int64("standardized", s.Standardized).
		Int64("nulls", s.Nulls).
		Int64("bytes_in", s.BytesIn).
		Int64("bytes_out", s.BytesOut).
		Int64("journaled", s.Journaled).
		Msg("summary")

	if routed := s.Succeeded + s.Bypassed + s.Failed; routed != s.Inputs {
		log.Warn().Int64("inputs", s.Inputs).Int64("routed", routed).Msg("input accounting mismatch")
	}
}
