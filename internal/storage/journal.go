package storage

import (
	"context"
	"strings"
	"sync"
	"time"

	"datestd/internal/metrics"
)

// JournalColumns is the journal table layout; Entry.Row follows this order.
var JournalColumns = []ColumnDef{
	{Name: "run_id", Type: TypeText},
	{Name: "job", Type: TypeText},
	{Name: "source", Type: TypeText},
	{Name: "format", Type: TypeText},
	{Name: "outcome", Type: TypeText},
	{Name: "matched", Type: TypeText},
	{Name: "fingerprint", Type: TypeText},
	{Name: "bytes_in", Type: TypeBigInt},
	{Name: "bytes_out", Type: TypeBigInt},
	{Name: "duration_ms", Type: TypeBigInt},
	{Name: "error", Type: TypeText, Nullable: true},
	{Name: "created_at", Type: TypeTimestamp},
}

// ColumnNames returns the journal column names in table order.
func ColumnNames() []string {
	out := make([]string, len(JournalColumns))
	for i, c := range JournalColumns {
		out[i] = c.Name
	}
	return out
}

// Entry is one journaled run.
type Entry struct {
	RunID       string
	Job         string
	Source      string
	Format      string
	Outcome     string
	Matched     []string
	Fingerprint string
	BytesIn     int64
	BytesOut    int64
	Duration    time.Duration
	// Err is empty unless the run failed.
	Err       string
	CreatedAt time.Time
}

// Row renders e aligned to ColumnNames. An empty Err becomes NULL.
func (e Entry) Row() []any {
	var errCol any
	if e.Err != "" {
		errCol = e.Err
	}
	return []any{
		e.RunID,
		e.Job,
		e.Source,
		e.Format,
		e.Outcome,
		strings.Join(e.Matched, ","),
		e.Fingerprint,
		e.BytesIn,
		e.BytesOut,
		e.Duration.Milliseconds(),
		errCol,
		e.CreatedAt.UTC(),
	}
}

// Journal queues entries and loads them into a Repository in batches on a
// background goroutine.
type Journal struct {
	in   chan []any
	done chan struct{}

	once  sync.Once
	total int64
	err   error
}

// OpenJournal starts a loader draining into repo. buffer sizes the queue;
// job labels the batch metric.
func OpenJournal(ctx context.Context, repo Repository, job string, batchSize, buffer int) *Journal {
	if buffer < 0 {
		buffer = 0
	}
	j := &Journal{
		in:   make(chan []any, buffer),
		done: make(chan struct{}),
	}
	go func() {
		defer close(j.done)
		copyFn := func(ctx context.Context, columns []string, rows [][]any) (int64, error) {
			n, err := repo.CopyFrom(ctx, columns, rows)
			if err == nil {
				metrics.RecordJournalBatches(job, 1)
			}
			return n, err
		}
		j.total, j.err = LoadBatches(ctx, ColumnNames(), j.in, batchSize, copyFn)
		if j.err != nil {
			// keep producers from blocking on a dead loader
			for range j.in {
			}
		}
	}()
	return j
}

// Record queues e. It must not be called after Close.
func (j *Journal) Record(e Entry) {
	j.in <- e.Row()
}

// Close flushes queued entries and returns the rows written and the first
// load error.
func (j *Journal) Close() (int64, error) {
	j.once.Do(func() { close(j.in) })
	<-j.done
	return j.total, j.err
}
