package storage

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeRepo is an in-memory Repository that records calls.
type fakeRepo struct {
	mu      sync.Mutex
	rows    [][]any
	columns []string
	execs   []string
	copyErr error
	closed  bool
}

func (f *fakeRepo) CopyFrom(_ context.Context, columns []string, rows [][]any) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.copyErr != nil {
		return 0, f.copyErr
	}
	f.columns = columns
	f.rows = append(f.rows, rows...)
	return int64(len(rows)), nil
}

func (f *fakeRepo) Exec(_ context.Context, sql string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execs = append(f.execs, sql)
	return nil
}

func (f *fakeRepo) Close() { f.closed = true }

// TestRegisterAndNew verifies that registering a backend enables New()
// to return the corresponding repository and lists the kind.
func TestRegisterAndNew(t *testing.T) {
	t.Parallel()

	want := &fakeRepo{}
	Register("fake-new", func(ctx context.Context, cfg Config) (Repository, error) {
		if cfg.Table != "runs" {
			return nil, errors.New("table not passed through")
		}
		return want, nil
	})

	repo, err := New(context.Background(), Config{Kind: "fake-new", Table: "runs"})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if repo != want {
		t.Fatalf("New returned %v; want registered repo", repo)
	}

	found := false
	for _, k := range ListKinds() {
		if k == "fake-new" {
			found = true
		}
	}
	if !found {
		t.Fatalf("ListKinds() = %v; missing fake-new", ListKinds())
	}

	if _, err := New(context.Background(), Config{Kind: "nope"}); err == nil {
		t.Fatalf("New(unknown kind) returned nil error")
	}
}

var testDialect = Dialect{
	Name:  "test",
	Quote: func(s string) string { return "<" + s + ">" },
	Types: map[ColumnType]string{TypeText: "TEXT", TypeBigInt: "BIGINT", TypeTimestamp: "TS"},
	Guard: func(create, fqn, raw string) string { return "GUARD " + raw + " " + create },
}

func TestBuildCreateTableSQL(t *testing.T) {
	t.Parallel()

	got, err := BuildCreateTableSQL(TableDef{
		FQN: "s.runs",
		Columns: []ColumnDef{
			{Name: "id", Type: TypeText},
			{Name: "n", Type: TypeBigInt, Nullable: true},
		},
	}, testDialect)
	if err != nil {
		t.Fatalf("BuildCreateTableSQL: %v", err)
	}
	want := "GUARD s.runs CREATE TABLE <s>.<runs> (\n  <id> TEXT NOT NULL,\n  <n> BIGINT\n);"
	if got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}

	bad := []TableDef{
		{FQN: "", Columns: JournalColumns},
		{FQN: "t"},
		{FQN: "t", Columns: []ColumnDef{{Name: " ", Type: TypeText}}},
		{FQN: "t", Columns: []ColumnDef{{Name: "x", Type: ColumnType(99)}}},
	}
	for i, td := range bad {
		if _, err := BuildCreateTableSQL(td, testDialect); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}

func TestEnsureJournal(t *testing.T) {
	t.Parallel()

	RegisterDDL("fake-ddl", Bootstrapper(testDialect))
	repo := &fakeRepo{}
	if err := EnsureJournal(context.Background(), "fake-ddl", "runs", repo); err != nil {
		t.Fatalf("EnsureJournal: %v", err)
	}
	if len(repo.execs) != 1 || !strings.Contains(repo.execs[0], "<fingerprint> TEXT NOT NULL") ||
		!strings.Contains(repo.execs[0], "<error> TEXT,") {
		t.Fatalf("execs = %q", repo.execs)
	}

	if err := EnsureJournal(context.Background(), "unregistered", "runs", repo); err == nil {
		t.Fatalf("EnsureJournal(unregistered) returned nil error")
	}
}

func TestEntry_Row(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 1, 15, 6, 0, 0, 0, time.FixedZone("X", -6*3600))
	e := Entry{
		RunID: "r1", Job: "orders", Source: "in/a.json", Format: "JSON", Outcome: "success",
		Matched: []string{"a", "b"}, Fingerprint: "00ff", BytesIn: 10, BytesOut: 20,
		Duration: 1500 * time.Millisecond, CreatedAt: at,
	}
	row := e.Row()
	if len(row) != len(ColumnNames()) {
		t.Fatalf("row has %d values; want %d", len(row), len(ColumnNames()))
	}
	if row[5] != "a,b" || row[9] != int64(1500) || row[10] != nil {
		t.Fatalf("row = %#v", row)
	}
	if ts := row[11].(time.Time); ts.Location() != time.UTC || !ts.Equal(at) {
		t.Fatalf("created_at = %v; want UTC instant of %v", ts, at)
	}

	e.Err = "date error at line 2"
	if got := e.Row()[10]; got != "date error at line 2" {
		t.Fatalf("error column = %#v", got)
	}
}

/*
TestJournal_RecordAndClose verifies that queued entries are flushed in batches
on Close and that a load error is returned without blocking producers.
*/
func TestJournal_RecordAndClose(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	j := OpenJournal(context.Background(), repo, "orders", 2, 1)
	for i := 0; i < 5; i++ {
		j.Record(Entry{RunID: "r", Outcome: "success"})
	}
	n, err := j.Close()
	if err != nil || n != 5 {
		t.Fatalf("Close = %d, %v; want 5, nil", n, err)
	}
	if len(repo.rows) != 5 || strings.Join(repo.columns, ",") != strings.Join(ColumnNames(), ",") {
		t.Fatalf("repo got %d rows, columns %v", len(repo.rows), repo.columns)
	}
	if _, err := j.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	boom := errors.New("boom")
	failing := &fakeRepo{copyErr: boom}
	j = OpenJournal(context.Background(), failing, "orders", 1, 0)
	for i := 0; i < 3; i++ {
		j.Record(Entry{RunID: "r"})
	}
	if _, err := j.Close(); !errors.Is(err, boom) {
		t.Fatalf("Close error = %v; want boom", err)
	}
}
