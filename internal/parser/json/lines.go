package json

import (
	"bufio"
	"bytes"
	"context"
	"io"
)

var utf8BOM = []byte("\uFEFF")

// ForEachLine calls fn once per line of r with the line terminator removed.
// "\n" and "\r\n" both end a line; a final line without a terminator is still
// reported, and a trailing terminator does not produce an extra empty line.
// A UTF-8 byte order mark at the start of the input is dropped. ctx is
// checked between lines.
func ForEachLine(ctx context.Context, r io.Reader, fn func(n int, line []byte) error) error {
	br := bufio.NewReaderSize(r, 64*1024)
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			n++
			line = bytes.TrimSuffix(line, []byte{'\n'})
			line = bytes.TrimSuffix(line, []byte{'\r'})
			if n == 1 {
				line = bytes.TrimPrefix(line, utf8BOM)
			}
			if ferr := fn(n, line); ferr != nil {
				return ferr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
