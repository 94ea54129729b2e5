package transformer

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a run failed. Every kind is fatal to the run.
type ErrorKind int

const (
	// ConfigError: settings could not be parsed (date field spec, timezone,
	// pattern, schema, flow format).
	ConfigError ErrorKind = iota + 1
	// FormatError: a line is not valid JSON, or a matched field holds an
	// object or array.
	FormatError
	// DateError: a matched value does not parse with its pattern.
	DateError
	// EnvelopeError: the Avro container could not be decoded or encoded.
	EnvelopeError
)

// Sentinels matching each kind with errors.Is.
var (
	ErrConfig   = errors.New("config error")
	ErrFormat   = errors.New("format error")
	ErrDate     = errors.New("date error")
	ErrEnvelope = errors.New("envelope error")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case ConfigError:
		return ErrConfig
	case FormatError:
		return ErrFormat
	case DateError:
		return ErrDate
	case EnvelopeError:
		return ErrEnvelope
	}
	return nil
}

func (k ErrorKind) String() string {
	if s := k.sentinel(); s != nil {
		return s.Error()
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Error is the failure reported by Run. Line is the 1-based input line (or
// Avro datum) the failure refers to, 0 when not tied to one.
type Error struct {
	Kind ErrorKind
	Line int
	Err  error
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s at line %d: %v", e.Kind, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

// Unwrap exposes both the kind sentinel and the cause.
func (e *Error) Unwrap() []error {
	if s := e.Kind.sentinel(); s != nil {
		return []error{s, e.Err}
	}
	return []error{e.Err}
}

func newError(kind ErrorKind, line int, err error) *Error {
	return &Error{Kind: kind, Line: line, Err: err}
}

// KindOf returns the kind of err, or 0 when err is not a run error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
