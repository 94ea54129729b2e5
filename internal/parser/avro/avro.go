// Package avro bridges Avro object container files and JSON lines.
//
// Decode turns every datum of a container into one line of standard JSON
// (union values unwrapped, fields in schema order). Encode does the reverse
// for a given schema and always writes Snappy-compressed blocks.
package avro

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/linkedin/goavro/v2"

	jsonparser "datestd/internal/parser/json"
)

// ErrNoSchema is returned when a container carries no embedded schema.
var ErrNoSchema = errors.New("avro: container has no embedded schema")

// EmbeddedSchema returns the writer schema stored in the container header and
// rewinds r to the start so the container can be read again.
func EmbeddedSchema(r io.ReadSeeker) (string, error) {
	start, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return "", fmt.Errorf("avro: seek: %w", err)
	}
	ocfr, err := goavro.NewOCFReader(r)
	if err != nil {
		return "", fmt.Errorf("avro: read header: %w", err)
	}
	schema := ocfr.Codec().Schema()
	if _, err := r.Seek(start, io.SeekStart); err != nil {
		return "", fmt.Errorf("avro: rewind: %w", err)
	}
	if schema == "" {
		return "", ErrNoSchema
	}
	return schema, nil
}

// Decode reads every datum of the container in r as a JSON line. schema, when
// non-empty, is the schema the caller intends to extend; when empty the
// embedded writer schema is extracted first (rewinding r) and returned as
// resolved. Data is always decoded with the embedded writer schema.
func Decode(r io.ReadSeeker, schema string) (lines [][]byte, resolved string, err error) {
	resolved = schema
	if resolved == "" {
		if resolved, err = EmbeddedSchema(r); err != nil {
			return nil, "", err
		}
	}

	ocfr, err := goavro.NewOCFReader(r)
	if err != nil {
		return nil, "", fmt.Errorf("avro: read header: %w", err)
	}
	codec := ocfr.Codec()
	sh, err := compileShape(codec.Schema())
	if err != nil {
		return nil, "", err
	}

	var (
		textual []byte
		buf     bytes.Buffer
	)
	for ocfr.Scan() {
		datum, err := ocfr.Read()
		if err != nil {
			return nil, "", fmt.Errorf("avro: datum %d: %w", len(lines)+1, err)
		}
		textual, err = codec.TextualFromNative(textual[:0], datum)
		if err != nil {
			return nil, "", fmt.Errorf("avro: datum %d to json: %w", len(lines)+1, err)
		}
		buf.Reset()
		if err := unwrapUnions(sh, textual, jsonparser.NewWriter(&buf)); err != nil {
			return nil, "", fmt.Errorf("avro: datum %d: %w", len(lines)+1, err)
		}
		lines = append(lines, append([]byte(nil), buf.Bytes()...))
	}
	if err := ocfr.Err(); err != nil {
		return nil, "", fmt.Errorf("avro: read blocks: %w", err)
	}
	return lines, resolved, nil
}

// Encode writes lines as a Snappy-compressed container using schema. Each
// line is standard JSON for one datum; union branches are inferred from the
// values. Empty lines are skipped.
func Encode(lines [][]byte, schema string, w io.Writer) error {
	codec, err := goavro.NewCodecForStandardJSON(schema)
	if err != nil {
		return fmt.Errorf("avro: schema: %w", err)
	}
	ocfw, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               w,
		Codec:           codec,
		CompressionName: goavro.CompressionSnappyLabel,
	})
	if err != nil {
		return fmt.Errorf("avro: writer: %w", err)
	}

	data := make([]any, 0, len(lines))
	for i, line := range lines {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		native, rest, err := codec.NativeFromTextual(line)
		if err != nil {
			return fmt.Errorf("avro: line %d: %w", i+1, err)
		}
		if len(bytes.TrimSpace(rest)) != 0 {
			return fmt.Errorf("avro: line %d: trailing data after datum", i+1)
		}
		data = append(data, native)
	}
	if len(data) == 0 {
		return nil
	}
	if err := ocfw.Append(data); err != nil {
		return fmt.Errorf("avro: append: %w", err)
	}
	return nil
}
