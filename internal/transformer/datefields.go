package transformer

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/cases"

	jsonparser "datestd/internal/parser/json"
)

// DateFields maps field names to their source date pattern. Lookups fold
// case, so "Bad_Date" in a record matches a "bad_date" entry.
//
// A DateFields value is built once per run and is not safe for concurrent use.
type DateFields struct {
	fold     cases.Caser
	patterns map[string]string
	names    []string
}

// ParseDateFields parses a JSON object of field name to pattern, e.g.
// {"bad_date":"MM/dd/yy"}. Keys that fold to the same name keep the last
// pattern.
func ParseDateFields(spec string) (*DateFields, error) {
	d := &DateFields{fold: cases.Fold(), patterns: make(map[string]string)}

	r := jsonparser.NewReader([]byte(spec))
	tok, err := r.Next()
	if err == io.EOF {
		return nil, errors.New("date fields: empty spec")
	}
	if err != nil {
		return nil, fmt.Errorf("date fields: %w", err)
	}
	if tok.Kind != jsonparser.ObjectStart {
		return nil, fmt.Errorf("date fields: want a JSON object, got %s", tok.Kind)
	}
	for {
		name, err := r.Next()
		if err != nil {
			return nil, fmt.Errorf("date fields: %w", err)
		}
		if name.Kind == jsonparser.ObjectEnd {
			break
		}
		val, err := r.Next()
		if err != nil {
			return nil, fmt.Errorf("date fields: %w", err)
		}
		if val.Kind != jsonparser.String {
			return nil, fmt.Errorf("date fields: pattern for %q must be a string, got %s", name.Text, val.Kind)
		}
		if strings.TrimSpace(val.Text) == "" {
			return nil, fmt.Errorf("date fields: empty pattern for %q", name.Text)
		}
		key := d.fold.String(name.Text)
		if _, dup := d.patterns[key]; !dup {
			d.names = append(d.names, name.Text)
		}
		d.patterns[key] = val.Text
	}
	if _, err := r.Next(); err != io.EOF {
		return nil, errors.New("date fields: trailing data after object")
	}
	return d, nil
}

// Lookup returns the pattern configured for name.
func (d *DateFields) Lookup(name string) (string, bool) {
	if d == nil || len(d.patterns) == 0 {
		return "", false
	}
	p, ok := d.patterns[d.fold.String(name)]
	return p, ok
}

// Len returns the number of distinct fields.
func (d *DateFields) Len() int {
	if d == nil {
		return 0
	}
	return len(d.patterns)
}

// Patterns returns the distinct patterns in first-seen field order.
func (d *DateFields) Patterns() []string {
	seen := make(map[string]bool, len(d.names))
	out := make([]string, 0, len(d.names))
	for _, n := range d.names {
		p := d.patterns[d.fold.String(n)]
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
