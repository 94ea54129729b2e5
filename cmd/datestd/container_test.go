package main

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"datestd/internal/config"
	"datestd/internal/datasource"
	"datestd/internal/datasource/httpds"
	"datestd/internal/storage"
)

func writeInputs(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func testPipeline(t *testing.T, inDir string) config.Pipeline {
	t.Helper()
	out := t.TempDir()
	p := config.Pipeline{
		Job:    "orders",
		Source: config.Source{Kind: "dir", Path: inDir, Glob: "*.json"},
		Standardize: config.Standardize{
			FlowFormat:   "JSON",
			InvalidDates: `{"d":"MM/dd/yy"}`,
			Timezone:     "CST",
		},
		Output: config.Output{
			SuccessDir: filepath.Join(out, "ok"),
			FailureDir: filepath.Join(out, "failed"),
			BypassDir:  filepath.Join(out, "bypass"),
		},
		Runtime: config.RuntimeConfig{Workers: 2},
	}
	p.Normalize()
	return p
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(b)
}

/*
TestRunBatch_RoutesByOutcome runs a directory with one good and one bad
input through the whole host: routing, failure sidecar and a SQLite journal.
*/
func TestRunBatch_RoutesByOutcome(t *testing.T) {
	t.Parallel()

	in := writeInputs(t, map[string]string{
		"good.json": `{"id":1,"d":"01/15/24"}` + "\n" + `{"id":2,"d":null}` + "\n",
		"bad.json":  `{"id":3,"d":"someday"}` + "\n",
		"notes.txt": "not an input",
	})
	p := testPipeline(t, in)
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	p.Journal = config.Journal{Kind: "sqlite", DB: config.DBConfig{DSN: dbPath, AutoCreateTable: true}}
	p.Normalize()

	sum, err := runBatch(context.Background(), p)
	if err != nil {
		t.Fatalf("runBatch: %v", err)
	}
	if sum.Inputs != 2 || sum.Succeeded != 1 || sum.Failed != 1 || sum.Bypassed != 0 {
		t.Fatalf("summary = %+v", sum)
	}
	if sum.Standardized != 1 || sum.Nulls != 1 || sum.Journaled != 2 {
		t.Fatalf("summary counters = %+v", sum)
	}

	want := `{"id":1,"d":"01/15/24","d_standardized":"2024-01-15 06:00:00.000"}` + "\n" +
		`{"id":2,"d":null,"d_standardized":null}` + "\n"
	if got := readFile(t, filepath.Join(p.Output.SuccessDir, "good.json")); got != want {
		t.Fatalf("success output = %q; want %q", got, want)
	}
	if got := readFile(t, filepath.Join(p.Output.FailureDir, "bad.json")); got != `{"id":3,"d":"someday"}`+"\n" {
		t.Fatalf("failure output = %q; want the original input", got)
	}
	if got := readFile(t, filepath.Join(p.Output.FailureDir, "bad.json.error")); !strings.Contains(got, "date error") {
		t.Fatalf("failure reason = %q", got)
	}
	if _, err := os.Stat(filepath.Join(p.Output.SuccessDir, "bad.json")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("failed input leaked into success dir: %v", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	defer db.Close()
	var failures int
	var reason string
	err = db.QueryRow(`SELECT COUNT(*), MAX(error) FROM datestd_runs WHERE outcome = 'failure'`).Scan(&failures, &reason)
	if err != nil || failures != 1 || !strings.Contains(reason, "date error") {
		t.Fatalf("journal failure rows = %d %q, %v", failures, reason, err)
	}
	var fp string
	if err := db.QueryRow(`SELECT fingerprint FROM datestd_runs WHERE source LIKE '%good.json'`).Scan(&fp); err != nil || len(fp) != 16 {
		t.Fatalf("journal fingerprint = %q, %v", fp, err)
	}
}

func TestRunBatch_BypassWithoutDateFields(t *testing.T) {
	t.Parallel()

	in := writeInputs(t, map[string]string{"raw.json": "anything\n"})
	p := testPipeline(t, in)
	p.Standardize.InvalidDates = ""

	sum, err := runBatch(context.Background(), p)
	if err != nil {
		t.Fatalf("runBatch: %v", err)
	}
	if sum.Bypassed != 1 || sum.Inputs != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	if got := readFile(t, filepath.Join(p.Output.BypassDir, "raw.json")); got != "anything\n" {
		t.Fatalf("bypass output = %q", got)
	}
}

func TestRunBatch_FatalErrors(t *testing.T) {
	t.Parallel()

	p := testPipeline(t, filepath.Join(t.TempDir(), "missing"))
	if _, err := runBatch(context.Background(), p); err == nil {
		t.Fatalf("runBatch with missing input dir returned nil error")
	}

	in := writeInputs(t, map[string]string{"a.json": "{}\n"})
	p = testPipeline(t, in)
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	p.Output.SuccessDir = filepath.Join(blocker, "ok")
	if _, err := runBatch(context.Background(), p); err == nil {
		t.Fatalf("runBatch with unwritable output returned nil error")
	}
}

// failingSource fails to open.
type failingSource struct{ name string }

func (f failingSource) Name() string     { return f.name }
func (f failingSource) BaseName() string { return filepath.Base(f.name) }
func (f failingSource) Open(context.Context) (io.ReadCloser, error) {
	return nil, errors.New("connection refused")
}

// TestRunBatch_OpenErrorIsRoutedAsFailure swaps package seams, so it does not
// run in parallel.
func TestRunBatch_OpenErrorIsRoutedAsFailure(t *testing.T) {
	orig := resolveSourcesFn
	defer func() { resolveSourcesFn = orig }()
	resolveSourcesFn = func(kind, path, glob string, _ *httpds.Client) ([]datasource.Source, error) {
		return []datasource.Source{failingSource{name: "https://example.com/feed.json"}}, nil
	}

	p := testPipeline(t, t.TempDir())
	sum, err := runBatch(context.Background(), p)
	if err != nil {
		t.Fatalf("runBatch: %v", err)
	}
	if sum.Failed != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	if got := readFile(t, filepath.Join(p.Output.FailureDir, "feed.json.error")); !strings.Contains(got, "connection refused") {
		t.Fatalf("failure reason = %q", got)
	}
}

func TestRunBatch_JournalOpenError(t *testing.T) {
	orig := newRepositoryFn
	defer func() { newRepositoryFn = orig }()
	newRepositoryFn = func(context.Context, storage.Config) (storage.Repository, error) {
		return nil, errors.New("db down")
	}

	p := testPipeline(t, writeInputs(t, map[string]string{"a.json": "{}\n"}))
	p.Journal = config.Journal{Kind: "postgres", DB: config.DBConfig{DSN: "postgres://x"}}
	p.Normalize()
	if _, err := runBatch(context.Background(), p); err == nil || !strings.Contains(err.Error(), "db down") {
		t.Fatalf("runBatch = %v; want journal open error", err)
	}
}

func TestWriteFileAtomic(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")
	if _, err := writeFileAtomic(path, []byte("one")); err != nil {
		t.Fatalf("writeFileAtomic: %v", err)
	}
	if _, err := writeFileAtomic(path, []byte("two")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if got := readFile(t, path); got != "two" {
		t.Fatalf("content = %q", got)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("leftover temp files: %v", entries)
	}
	if _, err := writeFileAtomic(filepath.Join(dir, "missing", "x"), nil); err == nil {
		t.Fatalf("writeFileAtomic into missing dir returned nil error")
	}
}
