package json

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

type wframe struct {
	object    bool
	n         int
	afterName bool
}

// Writer emits compact JSON from tokens. Root values written back to back are
// not separated.
type Writer struct {
	w     io.Writer
	stack []wframe
	esc   bytes.Buffer
	enc   *json.Encoder
	err   error
}

// NewWriter returns a Writer that writes to w.
func NewWriter(w io.Writer) *Writer {
	jw := &Writer{w: w}
	jw.enc = json.NewEncoder(&jw.esc)
	jw.enc.SetEscapeHTML(false)
	return jw
}

// Err returns the first write error, if any.
func (w *Writer) Err() error { return w.err }

// Write emits tok. The Depth of tok is ignored; structure comes from the
// tokens already written.
func (w *Writer) Write(tok Token) error {
	switch tok.Kind {
	case ObjectStart:
		w.beforeValue()
		w.raw("{")
		w.stack = append(w.stack, wframe{object: true})
	case ArrayStart:
		w.beforeValue()
		w.raw("[")
		w.stack = append(w.stack, wframe{})
	case ObjectEnd, ArrayEnd:
		n := len(w.stack)
		if n == 0 || w.stack[n-1].object != (tok.Kind == ObjectEnd) || w.stack[n-1].afterName {
			return w.fail(fmt.Errorf("json: unbalanced %s", tok.Kind))
		}
		w.stack = w.stack[:n-1]
		w.raw(tok.Text)
	case Name:
		return w.Name(tok.Text)
	case String:
		return w.String(tok.Text)
	case Number, Bool:
		w.beforeValue()
		w.raw(tok.Text)
	case Null:
		return w.Null()
	default:
		return w.fail(fmt.Errorf("json: cannot write %s", tok.Kind))
	}
	return w.err
}

// Name emits an object key.
func (w *Writer) Name(name string) error {
	n := len(w.stack)
	if n == 0 || !w.stack[n-1].object || w.stack[n-1].afterName {
		return w.fail(fmt.Errorf("json: field name %q outside of an object", name))
	}
	top := &w.stack[n-1]
	if top.n > 0 {
		w.raw(",")
	}
	top.n++
	top.afterName = true
	w.quoted(name)
	w.raw(":")
	return w.err
}

// String emits a string value.
func (w *Writer) String(s string) error {
	w.beforeValue()
	w.quoted(s)
	return w.err
}

// Null emits a null value.
func (w *Writer) Null() error {
	w.beforeValue()
	w.raw("null")
	return w.err
}

func (w *Writer) beforeValue() {
	n := len(w.stack)
	if n == 0 {
		return
	}
	top := &w.stack[n-1]
	if top.object {
		if !top.afterName && w.err == nil {
			w.err = fmt.Errorf("json: object value without a field name")
		}
		top.afterName = false
		return
	}
	if top.n > 0 {
		w.raw(",")
	}
	top.n++
}

func (w *Writer) quoted(s string) {
	if w.err != nil {
		return
	}
	w.esc.Reset()
	if err := w.enc.Encode(s); err != nil {
		w.err = err
		return
	}
	// Encode terminates every value with a newline.
	b := bytes.TrimSuffix(w.esc.Bytes(), []byte{'\n'})
	if _, err := w.w.Write(b); err != nil {
		w.err = err
	}
}

func (w *Writer) raw(s string) {
	if w.err != nil {
		return
	}
	if _, err := io.WriteString(w.w, s); err != nil {
		w.err = err
	}
}

func (w *Writer) fail(err error) error {
	if w.err == nil {
		w.err = err
	}
	return w.err
}
