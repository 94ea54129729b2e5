package transformer

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"datestd/internal/datefmt"
	jsonparser "datestd/internal/parser/json"
	"datestd/internal/schema"
)

// RewriteState accumulates what a pass over the input has seen. It is
// threaded through every RewriteLine call of one run and read once the input
// is exhausted.
type RewriteState struct {
	matched []string
	seen    map[string]bool

	// Lines is the number of lines rewritten.
	Lines int
	// Standardized counts sibling values written with a date (nulls excluded).
	Standardized int
	// Nulls counts sibling values written as null.
	Nulls int
}

// NewRewriteState returns an empty accumulator.
func NewRewriteState() *RewriteState {
	return &RewriteState{seen: make(map[string]bool)}
}

func (s *RewriteState) match(name string) {
	if s.seen[name] {
		return
	}
	s.seen[name] = true
	s.matched = append(s.matched, name)
}

// Matched returns the distinct matched field names, spelled as in the input,
// in discovery order.
func (s *RewriteState) Matched() []string {
	out := make([]string, len(s.matched))
	copy(out, s.matched)
	return out
}

// Rewriter rewrites JSON lines, adding a standardized sibling after every
// top-level field listed in its DateFields.
type Rewriter struct {
	fields *DateFields
	norm   *datefmt.Normalizer
}

// NewRewriter returns a Rewriter for fields, normalizing with norm.
func NewRewriter(fields *DateFields, norm *datefmt.Normalizer) *Rewriter {
	return &Rewriter{fields: fields, norm: norm}
}

// RewriteLine writes the rewritten form of line to out followed by a single
// "\n". n is the 1-based line number used in errors. On error, out may hold a
// partial line; callers discard the whole output.
func (rw *Rewriter) RewriteLine(n int, line []byte, st *RewriteState, out *bytes.Buffer) error {
	r := jsonparser.NewReader(line)
	w := jsonparser.NewWriter(out)
	stale := rw.staleSiblings(line)
	roots := 0

	for {
		tok, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return newError(FormatError, n, err)
		}
		if tok.Depth == 0 && tok.Kind != jsonparser.ObjectEnd && tok.Kind != jsonparser.ArrayEnd {
			if roots++; roots > 1 {
				return newError(FormatError, n, fmt.Errorf("%w: more than one JSON value on the line", jsonparser.ErrSyntax))
			}
		}
		if tok.Kind == jsonparser.Name && tok.Depth == 1 {
			if stale[tok.Text] {
				val, err := r.Next()
				if err == nil {
					err = r.SkipValue(val)
				}
				if err != nil {
					return newError(FormatError, n, err)
				}
				continue
			}
			if pattern, ok := rw.fields.Lookup(tok.Text); ok {
				if err := rw.rewriteField(n, tok, pattern, r, w, st); err != nil {
					return err
				}
				continue
			}
		}
		if err := w.Write(tok); err != nil {
			return newError(FormatError, n, err)
		}
	}

	out.WriteByte('\n')
	st.Lines++
	return nil
}

// staleSiblings returns the sibling fields already present in the root
// object of line for date fields that are present too. They are dropped
// wherever they stand and written fresh right after their source field, so
// each date field ends up with exactly one sibling.
func (rw *Rewriter) staleSiblings(line []byte) map[string]bool {
	if !bytes.Contains(line, []byte(schema.SiblingSuffix)) {
		return nil
	}
	r := jsonparser.NewReader(line)
	names := make(map[string]bool)
	var sources []string
	for {
		tok, err := r.Next()
		if err != nil || (tok.Kind == jsonparser.ObjectEnd && tok.Depth == 0) {
			break
		}
		if tok.Kind != jsonparser.Name || tok.Depth != 1 {
			continue
		}
		names[tok.Text] = true
		if _, ok := rw.fields.Lookup(tok.Text); ok {
			sources = append(sources, tok.Text)
		}
	}

	var stale map[string]bool
	for _, src := range sources {
		sib := schema.SiblingName(src)
		if !names[sib] {
			continue
		}
		// a configured date field is rewritten, never dropped
		if _, ok := rw.fields.Lookup(sib); ok {
			continue
		}
		if stale == nil {
			stale = make(map[string]bool)
		}
		stale[sib] = true
	}
	return stale
}

func (rw *Rewriter) rewriteField(n int, name jsonparser.Token, pattern string, r *jsonparser.Reader, w *jsonparser.Writer, st *RewriteState) error {
	val, err := r.Next()
	if err != nil {
		return newError(FormatError, n, err)
	}
	if !val.Kind.Scalar() {
		return newError(FormatError, n, fmt.Errorf("field %q holds an %s, want a date value", name.Text, val.Kind))
	}

	if err := w.Write(name); err != nil {
		return newError(FormatError, n, err)
	}
	if err := w.Write(val); err != nil {
		return newError(FormatError, n, err)
	}
	if err := w.Name(schema.SiblingName(name.Text)); err != nil {
		return newError(FormatError, n, err)
	}

	st.match(name.Text)
	if val.Kind == jsonparser.Null {
		st.Nulls++
		return w.Null()
	}

	std, err := rw.norm.Standardize(val.Text, pattern)
	if err != nil {
		var de *datefmt.DateError
		if errors.As(err, &de) {
			return newError(DateError, n, err)
		}
		return newError(ConfigError, n, err)
	}
	st.Standardized++
	if err := w.String(std); err != nil {
		return newError(FormatError, n, err)
	}
	return nil
}
