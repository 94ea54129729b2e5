// Package transformer standardizes date fields in line-delimited JSON and
// Avro container inputs.
//
// A run moves through a fixed set of states:
//
//	init -> [decode envelope] -> rewrite lines -> [encode envelope] -> done
//
// with bypass as a terminal shortcut out of init and any error ending the run.
// The envelope states apply to AVRO only. A run is synchronous and owns every
// buffer it allocates; the output is only released once the whole input has
// been processed, so a failure never yields partial output.
package transformer

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"datestd/internal/datefmt"
	"datestd/internal/parser/avro"
	jsonparser "datestd/internal/parser/json"
	"datestd/internal/schema"

	"github.com/zeebo/xxh3"
)

// OutcomeKind is how a run ended.
type OutcomeKind int

const (
	Success OutcomeKind = iota
	Bypass
	Failure
)

func (k OutcomeKind) String() string {
	switch k {
	case Success:
		return "success"
	case Bypass:
		return "bypass"
	case Failure:
		return "failure"
	}
	return fmt.Sprintf("OutcomeKind(%d)", int(k))
}

// Outcome is the result of Run.
type Outcome struct {
	Kind OutcomeKind
	// Body is the output on Success and the untouched input on Bypass.
	Body []byte
	// Err is set on Failure and is always a *Error.
	Err error
	// Matched lists the matched field names in discovery order.
	Matched []string
	// Lines is the number of JSON lines (or Avro data) rewritten.
	Lines int
	// Standardized counts dates written; Nulls counts null siblings.
	Standardized int
	Nulls        int
	// Schema is the extended output schema in AVRO mode.
	Schema string
	// BytesIn is the input size and Fingerprint its xxh3 digest as 16 hex
	// digits. A canceled run reports only the prefix consumed.
	BytesIn     int64
	Fingerprint string
}

type state int

const (
	stateInit state = iota
	stateDecode
	stateRewrite
	stateEncode
	stateDone
	stateBypass
)

type run struct {
	settings Settings
	in       io.Reader
	counter  *countingReader

	rewriter *Rewriter
	declared *schema.Record

	lines    [][]byte // AVRO only: decoded JSON lines
	resolved string   // AVRO only: schema to extend
	st       *RewriteState
	body     bytes.Buffer
	schema   string
}

// Run executes one standardization run over in.
func Run(ctx context.Context, s Settings, in io.Reader) Outcome {
	cr := &countingReader{r: in, h: xxh3.New()}
	rn := &run{settings: s, in: cr, counter: cr, st: NewRewriteState()}

	st := stateInit
	for {
		var err error
		switch st {
		case stateInit:
			st, err = rn.init()
		case stateDecode:
			st, err = rn.decode()
		case stateRewrite:
			st, err = rn.rewrite(ctx)
		case stateEncode:
			st, err = rn.encode()
		case stateBypass:
			return rn.bypass()
		case stateDone:
			return Outcome{
				Kind:         Success,
				Body:         rn.body.Bytes(),
				Matched:      rn.st.Matched(),
				Lines:        rn.st.Lines,
				Standardized: rn.st.Standardized,
				Nulls:        rn.st.Nulls,
				Schema:       rn.schema,
				BytesIn:      cr.n,
				Fingerprint:  cr.sum(),
			}
		}
		if err != nil {
			if ctx.Err() == nil {
				_, _ = io.Copy(io.Discard, cr)
			}
			return Outcome{
				Kind:        Failure,
				Err:         err,
				Matched:     rn.st.Matched(),
				Lines:       rn.st.Lines,
				BytesIn:     cr.n,
				Fingerprint: cr.sum(),
			}
		}
	}
}

func (rn *run) init() (state, error) {
	s := rn.settings
	if s.Bypass() {
		return stateBypass, nil
	}

	switch s.FlowFormat {
	case FormatJSON, FormatAvro:
	default:
		return 0, newError(ConfigError, 0, fmt.Errorf("unknown flow format %q", s.FlowFormat))
	}

	fields, err := ParseDateFields(s.InvalidDates)
	if err != nil {
		return 0, newError(ConfigError, 0, err)
	}
	if s.Timezone == "" {
		return 0, newError(ConfigError, 0, fmt.Errorf("timezone is required when date fields are set"))
	}
	norm, err := datefmt.NewNormalizer(s.Timezone)
	if err != nil {
		return 0, newError(ConfigError, 0, err)
	}
	for _, p := range fields.Patterns() {
		if err := norm.Prepare(p); err != nil {
			return 0, newError(ConfigError, 0, err)
		}
	}
	rn.rewriter = NewRewriter(fields, norm)

	if s.FlowFormat == FormatJSON {
		return stateRewrite, nil
	}
	if s.AvroSchema != "" {
		rec, err := schema.Parse(s.AvroSchema)
		if err != nil {
			return 0, newError(ConfigError, 0, err)
		}
		rn.declared = &rec
	}
	return stateDecode, nil
}

func (rn *run) decode() (state, error) {
	// The container header is read twice when the schema is not declared.
	data, err := io.ReadAll(rn.in)
	if err != nil {
		return 0, newError(EnvelopeError, 0, err)
	}
	lines, resolved, err := avro.Decode(bytes.NewReader(data), rn.settings.AvroSchema)
	if err != nil {
		return 0, newError(EnvelopeError, 0, err)
	}
	rn.lines = lines
	rn.resolved = resolved
	return stateRewrite, nil
}

func (rn *run) rewrite(ctx context.Context) (state, error) {
	if rn.settings.FlowFormat == FormatJSON {
		err := jsonparser.ForEachLine(ctx, rn.in, func(n int, line []byte) error {
			return rn.rewriter.RewriteLine(n, line, rn.st, &rn.body)
		})
		if err != nil {
			if KindOf(err) == 0 {
				err = newError(FormatError, 0, err)
			}
			return 0, err
		}
		return stateDone, nil
	}

	out := make([][]byte, len(rn.lines))
	var buf bytes.Buffer
	for i, line := range rn.lines {
		if err := ctx.Err(); err != nil {
			return 0, newError(FormatError, i+1, err)
		}
		buf.Reset()
		if err := rn.rewriter.RewriteLine(i+1, line, rn.st, &buf); err != nil {
			return 0, err
		}
		out[i] = append([]byte(nil), bytes.TrimSuffix(buf.Bytes(), []byte{'\n'})...)
	}
	rn.lines = out
	return stateEncode, nil
}

func (rn *run) encode() (state, error) {
	var rec schema.Record
	if rn.declared != nil {
		rec = *rn.declared
	} else {
		parsed, err := schema.Parse(rn.resolved)
		if err != nil {
			return 0, newError(EnvelopeError, 0, err)
		}
		rec = parsed
	}

	extended, err := schema.Extend(rec, rn.st.Matched())
	if err != nil {
		return 0, newError(EnvelopeError, 0, err)
	}
	rn.schema = extended.String()

	if err := avro.Encode(rn.lines, rn.schema, &rn.body); err != nil {
		return 0, newError(EnvelopeError, 0, err)
	}
	return stateDone, nil
}

func (rn *run) bypass() Outcome {
	data, err := io.ReadAll(rn.in)
	if err != nil {
		return Outcome{Kind: Failure, Err: newError(FormatError, 0, err), BytesIn: rn.counter.n, Fingerprint: rn.counter.sum()}
	}
	return Outcome{Kind: Bypass, Body: data, BytesIn: rn.counter.n, Fingerprint: rn.counter.sum()}
}

// countingReader counts and hashes everything read through it.
type countingReader struct {
	r io.Reader
	h *xxh3.Hasher
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	_, _ = c.h.Write(p[:n])
	return n, err
}

func (c *countingReader) sum() string {
	return fmt.Sprintf("%016x", c.h.Sum64())
}

// Fingerprint returns the xxh3 digest of b in the form reported by
// Outcome.Fingerprint.
func Fingerprint(b []byte) string {
	return fmt.Sprintf("%016x", xxh3.Hash(b))
}
