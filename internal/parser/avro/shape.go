package avro

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	jsonparser "datestd/internal/parser/json"
)

type shapeKind int

const (
	scalarShape shapeKind = iota
	recordShape
	arrayShape
	mapShape
	unionShape
)

// shape is the part of an Avro schema needed to walk its JSON encoding:
// where records, containers and unions sit.
type shape struct {
	kind     shapeKind
	fields   map[string]*shape
	elem     *shape
	branches map[string]*shape
}

var primitives = map[string]bool{
	"null": true, "boolean": true, "int": true, "long": true,
	"float": true, "double": true, "bytes": true, "string": true,
}

type shapeCompiler struct {
	named map[string]*shape
}

func compileShape(schema string) (*shape, error) {
	var v any
	if err := json.Unmarshal([]byte(schema), &v); err != nil {
		return nil, fmt.Errorf("avro: schema: %w", err)
	}
	c := &shapeCompiler{named: make(map[string]*shape)}
	return c.compile(v, "")
}

func fullName(name, namespace string) string {
	if strings.Contains(name, ".") || namespace == "" {
		return name
	}
	return namespace + "." + name
}

func (c *shapeCompiler) lookup(name, namespace string) (*shape, bool) {
	if s, ok := c.named[fullName(name, namespace)]; ok {
		return s, true
	}
	s, ok := c.named[name]
	return s, ok
}

func (c *shapeCompiler) register(s *shape, m map[string]any, namespace string) string {
	name, _ := m["name"].(string)
	if ns, ok := m["namespace"].(string); ok && ns != "" {
		namespace = ns
	}
	full := fullName(name, namespace)
	c.named[full] = s
	if i := strings.LastIndex(full, "."); i >= 0 {
		return full[:i]
	}
	return ""
}

func (c *shapeCompiler) compile(v any, namespace string) (*shape, error) {
	switch t := v.(type) {
	case string:
		if primitives[t] {
			return &shape{kind: scalarShape}, nil
		}
		if s, ok := c.lookup(t, namespace); ok {
			return s, nil
		}
		return nil, fmt.Errorf("avro: unknown type %q", t)

	case []any:
		s := &shape{kind: unionShape, branches: make(map[string]*shape, len(t))}
		for _, b := range t {
			bs, err := c.compile(b, namespace)
			if err != nil {
				return nil, err
			}
			for _, name := range branchNames(b, namespace) {
				s.branches[name] = bs
			}
		}
		return s, nil

	case map[string]any:
		typ, _ := t["type"].(string)
		switch typ {
		case "record", "error":
			s := &shape{kind: recordShape, fields: make(map[string]*shape)}
			ns := c.register(s, t, namespace)
			fields, _ := t["fields"].([]any)
			for _, f := range fields {
				fm, ok := f.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("avro: malformed field %v", f)
				}
				name, _ := fm["name"].(string)
				fs, err := c.compile(fm["type"], ns)
				if err != nil {
					return nil, fmt.Errorf("avro: field %q: %w", name, err)
				}
				s.fields[name] = fs
			}
			return s, nil
		case "enum", "fixed":
			s := &shape{kind: scalarShape}
			c.register(s, t, namespace)
			return s, nil
		case "array":
			elem, err := c.compile(t["items"], namespace)
			if err != nil {
				return nil, err
			}
			return &shape{kind: arrayShape, elem: elem}, nil
		case "map":
			elem, err := c.compile(t["values"], namespace)
			if err != nil {
				return nil, err
			}
			return &shape{kind: mapShape, elem: elem}, nil
		default:
			// Primitive with attributes, logical types included.
			return c.compile(t["type"], namespace)
		}
	default:
		return nil, fmt.Errorf("avro: unexpected schema node %T", v)
	}
}

// branchNames lists every key goavro may use to tag a union branch.
func branchNames(v any, namespace string) []string {
	switch t := v.(type) {
	case string:
		return []string{t, fullName(t, namespace)}
	case map[string]any:
		typ, _ := t["type"].(string)
		switch typ {
		case "record", "error", "enum", "fixed":
			name, _ := t["name"].(string)
			ns := namespace
			if n, ok := t["namespace"].(string); ok && n != "" {
				ns = n
			}
			return []string{name, fullName(name, ns)}
		case "array", "map":
			return []string{typ}
		}
		names := []string{typ}
		if lt, ok := t["logicalType"].(string); ok {
			names = append(names, typ+"."+lt)
		}
		return names
	}
	return nil
}

// unwrapUnions rewrites one Avro JSON datum into standard JSON by replacing
// every tagged union value {"type": value} with the bare value.
func unwrapUnions(s *shape, avroJSON []byte, w *jsonparser.Writer) error {
	r := jsonparser.NewReader(avroJSON)
	first, err := r.Next()
	if err != nil {
		return err
	}
	if err := walk(r, w, s, first); err != nil {
		return err
	}
	if _, err := r.Next(); err != io.EOF {
		return fmt.Errorf("avro: trailing data after datum")
	}
	return nil
}

func walk(r *jsonparser.Reader, w *jsonparser.Writer, s *shape, first jsonparser.Token) error {
	if s == nil {
		return r.CopyValue(first, w)
	}
	switch s.kind {
	case unionShape:
		if first.Kind != jsonparser.ObjectStart {
			return r.CopyValue(first, w)
		}
		tag, err := r.Next()
		if err != nil {
			return err
		}
		if tag.Kind != jsonparser.Name {
			return fmt.Errorf("avro: malformed union value")
		}
		v, err := r.Next()
		if err != nil {
			return err
		}
		if err := walk(r, w, s.branches[tag.Text], v); err != nil {
			return err
		}
		end, err := r.Next()
		if err != nil {
			return err
		}
		if end.Kind != jsonparser.ObjectEnd {
			return fmt.Errorf("avro: union value with more than one branch")
		}
		return nil

	case recordShape, mapShape:
		if first.Kind != jsonparser.ObjectStart {
			return r.CopyValue(first, w)
		}
		if err := w.Write(first); err != nil {
			return err
		}
		for {
			tok, err := r.Next()
			if err != nil {
				return err
			}
			if tok.Kind == jsonparser.ObjectEnd {
				return w.Write(tok)
			}
			if err := w.Write(tok); err != nil {
				return err
			}
			v, err := r.Next()
			if err != nil {
				return err
			}
			child := s.elem
			if s.kind == recordShape {
				child = s.fields[tok.Text]
			}
			if err := walk(r, w, child, v); err != nil {
				return err
			}
		}

	case arrayShape:
		if first.Kind != jsonparser.ArrayStart {
			return r.CopyValue(first, w)
		}
		if err := w.Write(first); err != nil {
			return err
		}
		for {
			tok, err := r.Next()
			if err != nil {
				return err
			}
			if tok.Kind == jsonparser.ArrayEnd {
				return w.Write(tok)
			}
			if err := walk(r, w, s.elem, tok); err != nil {
				return err
			}
		}

	default:
		return r.CopyValue(first, w)
	}
}
