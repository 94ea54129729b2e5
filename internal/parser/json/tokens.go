// Package json reads and writes JSON as a flat stream of tokens so records
// can be rewritten without building an in-memory document.
//
// A Reader walks one JSON text (a line of NDJSON) and reports every token
// together with its nesting depth and, for strings, whether the string is an
// object key. A Writer re-emits tokens compactly and handles the separators,
// so a rewrite is "copy every token, inject a few of your own".
//
//	r := json.NewReader(line)
//	w := json.NewWriter(&buf)
//	for {
//		tok, err := r.Next()
//		if err == io.EOF {
//			break
//		}
//		...
//		w.Write(tok)
//	}
//
// Number literals are carried as their original text. Strings are decoded and
// re-escaped, so escape sequences may be normalized but values never change.
package json

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Kind classifies a Token.
type Kind int

const (
	ObjectStart Kind = iota
	ObjectEnd
	ArrayStart
	ArrayEnd
	Name
	String
	Number
	Bool
	Null
)

var kindNames = [...]string{
	ObjectStart: "object start",
	ObjectEnd:   "object end",
	ArrayStart:  "array start",
	ArrayEnd:    "array end",
	Name:        "field name",
	String:      "string",
	Number:      "number",
	Bool:        "bool",
	Null:        "null",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Scalar reports whether k is a single-token value.
func (k Kind) Scalar() bool {
	switch k {
	case String, Number, Bool, Null:
		return true
	}
	return false
}

// Token is one lexical event.
//
// Depth is the number of containers enclosing the token: the fields of a
// top-level object are Name tokens at depth 1, and the braces of that object
// are at depth 0.
type Token struct {
	Kind  Kind
	Text  string
	Depth int
}

// ErrSyntax wraps every malformed-input error returned by Reader.
var ErrSyntax = errors.New("json: syntax error")

type frame struct {
	object  bool
	wantKey bool
}

// Reader produces the tokens of a JSON text. More than one root value may be
// present, separated by whitespace.
type Reader struct {
	dec   *json.Decoder
	stack []frame
}

// NewReader returns a Reader over data.
func NewReader(data []byte) *Reader {
	return NewStreamReader(bytes.NewReader(data))
}

// NewStreamReader returns a Reader over r.
func NewStreamReader(r io.Reader) *Reader {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return &Reader{dec: dec}
}

// Next returns the next token, or io.EOF once every root value is complete.
func (r *Reader) Next() (Token, error) {
	raw, err := r.dec.Token()
	if err != nil {
		if err == io.EOF {
			if len(r.stack) > 0 {
				return Token{}, fmt.Errorf("%w: unexpected end of input", ErrSyntax)
			}
			return Token{}, io.EOF
		}
		return Token{}, fmt.Errorf("%w: %v", ErrSyntax, err)
	}

	depth := len(r.stack)
	switch v := raw.(type) {
	case json.Delim:
		switch v {
		case '{':
			r.stack = append(r.stack, frame{object: true, wantKey: true})
			return Token{Kind: ObjectStart, Text: "{", Depth: depth}, nil
		case '[':
			r.stack = append(r.stack, frame{})
			return Token{Kind: ArrayStart, Text: "[", Depth: depth}, nil
		case '}':
			r.stack = r.stack[:depth-1]
			r.valueDone()
			return Token{Kind: ObjectEnd, Text: "}", Depth: depth - 1}, nil
		default:
			r.stack = r.stack[:depth-1]
			r.valueDone()
			return Token{Kind: ArrayEnd, Text: "]", Depth: depth - 1}, nil
		}
	case string:
		if depth > 0 && r.stack[depth-1].object && r.stack[depth-1].wantKey {
			r.stack[depth-1].wantKey = false
			return Token{Kind: Name, Text: v, Depth: depth}, nil
		}
		r.valueDone()
		return Token{Kind: String, Text: v, Depth: depth}, nil
	case json.Number:
		r.valueDone()
		return Token{Kind: Number, Text: v.String(), Depth: depth}, nil
	case bool:
		r.valueDone()
		if v {
			return Token{Kind: Bool, Text: "true", Depth: depth}, nil
		}
		return Token{Kind: Bool, Text: "false", Depth: depth}, nil
	case nil:
		r.valueDone()
		return Token{Kind: Null, Text: "null", Depth: depth}, nil
	default:
		return Token{}, fmt.Errorf("%w: unexpected token %T", ErrSyntax, raw)
	}
}

func (r *Reader) valueDone() {
	if n := len(r.stack); n > 0 && r.stack[n-1].object {
		r.stack[n-1].wantKey = true
	}
}

// CopyValue copies the value that starts with first, including every nested
// token, from r to w.
func (r *Reader) CopyValue(first Token, w *Writer) error {
	if err := w.Write(first); err != nil {
		return err
	}
	if first.Kind != ObjectStart && first.Kind != ArrayStart {
		return nil
	}
	for {
		tok, err := r.Next()
		if err != nil {
			if err == io.EOF {
				return fmt.Errorf("%w: unexpected end of input", ErrSyntax)
			}
			return err
		}
		if err := w.Write(tok); err != nil {
			return err
		}
		if (tok.Kind == ObjectEnd || tok.Kind == ArrayEnd) && tok.Depth == first.Depth {
			return nil
		}
	}
}

// SkipValue consumes the value that starts with first without writing it.
func (r *Reader) SkipValue(first Token) error {
	if first.Kind != ObjectStart && first.Kind != ArrayStart {
		return nil
	}
	for {
		tok, err := r.Next()
		if err != nil {
			if err == io.EOF {
				return fmt.Errorf("%w: unexpected end of input", ErrSyntax)
			}
			return err
		}
		if (tok.Kind == ObjectEnd || tok.Kind == ArrayEnd) && tok.Depth == first.Depth {
			return nil
		}
	}
}
