package datasource

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"datestd/internal/datasource/file"
	"datestd/internal/datasource/httpds"
)

func TestResolve(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"a.json", "b.json", "c.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	list := filepath.Join(dir, "inputs.lst")
	body := "# inputs\n" + filepath.Join(dir, "a.json") + "\n\nhttps://example.com/x.json\n"
	if err := os.WriteFile(list, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	client := httpds.NewClient(httpds.Config{})

	tests := []struct {
		name      string
		kind      string
		path      string
		glob      string
		client    *httpds.Client
		wantNames []string
		wantErr   string
	}{
		{name: "file", kind: KindFile, path: "x.json", wantNames: []string{"x.json"}},
		{name: "dir_glob", kind: KindDir, path: dir, glob: "*.json",
			wantNames: []string{filepath.Join(dir, "a.json"), filepath.Join(dir, "b.json")}},
		{name: "list_mixed", kind: KindList, path: list, client: client,
			wantNames: []string{filepath.Join(dir, "a.json"), "https://example.com/x.json"}},
		{name: "list_url_without_client", kind: KindList, path: list, wantErr: "no HTTP client"},
		{name: "missing_list", kind: KindList, path: filepath.Join(dir, "nope"), wantErr: "read list"},
		{name: "unknown_kind", kind: "s3", path: "x", wantErr: "unknown source kind"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := Resolve(tc.kind, tc.path, tc.glob, tc.client)
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("Resolve err = %v; want %q", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if len(got) != len(tc.wantNames) {
				t.Fatalf("Resolve = %d sources; want %d", len(got), len(tc.wantNames))
			}
			for i, s := range got {
				if s.Name() != tc.wantNames[i] {
					t.Fatalf("source[%d] = %q; want %q", i, s.Name(), tc.wantNames[i])
				}
			}
		})
	}
}

func TestResolve_SourceTypes(t *testing.T) {
	t.Parallel()

	if _, ok := Source(file.NewLocal("x")).(*file.Local); !ok {
		t.Fatalf("Local does not satisfy Source")
	}
	var _ Source = httpds.NewRemote(nil, "https://example.com/a")
	if !IsURL("http://x") || !IsURL("https://x") || IsURL("/tmp/http://x") {
		t.Fatalf("IsURL misclassified input")
	}
}
