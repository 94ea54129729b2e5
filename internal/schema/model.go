// Package schema models Avro record schemas as plain values and extends them
// with the sibling fields produced by date standardization.
//
// Only the top-level record is modeled field by field. Nested complex types
// (records, enums, arrays, maps, fixed, logical types) are carried verbatim
// so a parsed schema renders back without losing information.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Kind discriminates the Type union.
type Kind int

const (
	// KindPrimitive is a bare type name: "string", "long", or a reference to
	// a named type defined elsewhere.
	KindPrimitive Kind = iota
	// KindUnion is a JSON array of branch types.
	KindUnion
	// KindComplex is any object-form type, kept as raw JSON.
	KindComplex
)

// Type is an Avro field type.
type Type struct {
	Kind     Kind
	Name     string          // KindPrimitive
	Variants []Type          // KindUnion
	Raw      json.RawMessage // KindComplex
}

// Primitive returns a named primitive type.
func Primitive(name string) Type { return Type{Kind: KindPrimitive, Name: name} }

// Union returns a union of the given branches.
func Union(variants ...Type) Type {
	vs := make([]Type, len(variants))
	copy(vs, variants)
	return Type{Kind: KindUnion, Variants: vs}
}

// IsUnion reports whether t is a union.
func (t Type) IsUnion() bool { return t.Kind == KindUnion }

// String renders t as schema JSON.
func (t Type) String() string {
	b, err := t.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<invalid type: %v>", err)
	}
	return string(b)
}

func (t Type) clone() Type {
	out := Type{Kind: t.Kind, Name: t.Name}
	if t.Variants != nil {
		out.Variants = make([]Type, len(t.Variants))
		for i, v := range t.Variants {
			out.Variants[i] = v.clone()
		}
	}
	if t.Raw != nil {
		out.Raw = append(json.RawMessage(nil), t.Raw...)
	}
	return out
}

// MarshalJSON implements json.Marshaler.
func (t Type) MarshalJSON() ([]byte, error) {
	switch t.Kind {
	case KindPrimitive:
		return json.Marshal(t.Name)
	case KindUnion:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, v := range t.Variants {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := v.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case KindComplex:
		if len(t.Raw) == 0 {
			return nil, fmt.Errorf("schema: complex type without definition")
		}
		return compact(t.Raw)
	default:
		return nil, fmt.Errorf("schema: unknown type kind %d", t.Kind)
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Type) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return fmt.Errorf("schema: empty type")
	}
	switch b[0] {
	case '"':
		var name string
		if err := json.Unmarshal(b, &name); err != nil {
			return err
		}
		if name == "" {
			return fmt.Errorf("schema: empty type name")
		}
		*t = Primitive(name)
	case '[':
		var raws []json.RawMessage
		if err := json.Unmarshal(b, &raws); err != nil {
			return err
		}
		if len(raws) == 0 {
			return fmt.Errorf("schema: union without branches")
		}
		vs := make([]Type, len(raws))
		for i, r := range raws {
			if err := vs[i].UnmarshalJSON(r); err != nil {
				return fmt.Errorf("union branch %d: %w", i, err)
			}
			if vs[i].Kind == KindUnion {
				return fmt.Errorf("schema: union branch %d is itself a union", i)
			}
		}
		*t = Type{Kind: KindUnion, Variants: vs}
	case '{':
		var head struct {
			Type json.RawMessage `json:"type"`
		}
		if err := json.Unmarshal(b, &head); err != nil {
			return err
		}
		if len(head.Type) == 0 {
			return fmt.Errorf("schema: object type without \"type\"")
		}
		*t = Type{Kind: KindComplex, Raw: append(json.RawMessage(nil), b...)}
	default:
		return fmt.Errorf("schema: unexpected type %s", truncate(b))
	}
	return nil
}

// Field is one record field.
type Field struct {
	Name string
	Type Type
	Doc  string
	// Default is the raw JSON default; nil when the field has none.
	Default json.RawMessage
	// Extra holds attributes this package does not interpret (aliases,
	// order, custom properties).
	Extra map[string]json.RawMessage
}

// HasDefault reports whether the field declares a default.
func (f Field) HasDefault() bool { return f.Default != nil }

func (f Field) clone() Field {
	out := Field{Name: f.Name, Type: f.Type.clone(), Doc: f.Doc}
	if f.Default != nil {
		out.Default = append(json.RawMessage(nil), f.Default...)
	}
	out.Extra = cloneExtra(f.Extra)
	return out
}

var fieldKeys = map[string]bool{"name": true, "type": true, "doc": true, "default": true}

// MarshalJSON implements json.Marshaler with a stable key order.
func (f Field) MarshalJSON() ([]byte, error) {
	w := newObjectWriter()
	w.put("name", f.Name)
	if err := w.putMarshaler("type", f.Type); err != nil {
		return nil, err
	}
	if f.Doc != "" {
		w.put("doc", f.Doc)
	}
	if f.Default != nil {
		w.putRaw("default", f.Default)
	}
	w.putExtra(f.Extra)
	return w.close()
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *Field) UnmarshalJSON(b []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	var out Field
	if err := decodeString(m, "name", &out.Name); err != nil {
		return err
	}
	if out.Name == "" {
		return fmt.Errorf("schema: field without name")
	}
	rawType, ok := m["type"]
	if !ok {
		return fmt.Errorf("schema: field %q without type", out.Name)
	}
	if err := out.Type.UnmarshalJSON(rawType); err != nil {
		return fmt.Errorf("field %q: %w", out.Name, err)
	}
	if err := decodeString(m, "doc", &out.Doc); err != nil {
		return err
	}
	if d, ok := m["default"]; ok {
		out.Default = append(json.RawMessage(nil), bytes.TrimSpace(d)...)
	}
	out.Extra = extraKeys(m, fieldKeys)
	*f = out
	return nil
}

// Record is a top-level Avro record (or error) schema.
type Record struct {
	Name      string
	Namespace string
	Doc       string
	IsError   bool
	Fields    []Field
	Extra     map[string]json.RawMessage
}

// FullName returns namespace.name, or name when there is no namespace.
func (r Record) FullName() string {
	if r.Namespace == "" || strings.Contains(r.Name, ".") {
		return r.Name
	}
	return r.Namespace + "." + r.Name
}

// Field looks up a field by exact name.
func (r Record) Field(name string) (Field, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// FieldNames returns the field names in declaration order.
func (r Record) FieldNames() []string {
	out := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		out[i] = f.Name
	}
	return out
}

// Clone returns a deep copy that shares no memory with r.
func (r Record) Clone() Record {
	out := Record{
		Name:      r.Name,
		Namespace: r.Namespace,
		Doc:       r.Doc,
		IsError:   r.IsError,
		Extra:     cloneExtra(r.Extra),
	}
	out.Fields = make([]Field, len(r.Fields))
	for i, f := range r.Fields {
		out.Fields[i] = f.clone()
	}
	return out
}

// String renders the record as schema JSON.
func (r Record) String() string {
	b, err := r.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<invalid schema: %v>", err)
	}
	return string(b)
}

var recordKeys = map[string]bool{"type": true, "name": true, "namespace": true, "doc": true, "fields": true}

// MarshalJSON implements json.Marshaler.
func (r Record) MarshalJSON() ([]byte, error) {
	w := newObjectWriter()
	if r.IsError {
		w.put("type", "error")
	} else {
		w.put("type", "record")
	}
	w.put("name", r.Name)
	if r.Namespace != "" {
		w.put("namespace", r.Namespace)
	}
	if r.Doc != "" {
		w.put("doc", r.Doc)
	}
	fields := r.Fields
	if fields == nil {
		fields = []Field{}
	}
	if err := w.putMarshaler("fields", fieldList(fields)); err != nil {
		return nil, err
	}
	w.putExtra(r.Extra)
	return w.close()
}

type fieldList []Field

func (l fieldList) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, f := range l {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := f.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// Parse parses an Avro record schema.
func Parse(s string) (Record, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Record{}, fmt.Errorf("schema: empty schema")
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return Record{}, fmt.Errorf("schema: decode: %w", err)
	}

	var kind string
	if err := decodeString(m, "type", &kind); err != nil {
		return Record{}, err
	}
	var r Record
	switch kind {
	case "record":
	case "error":
		r.IsError = true
	default:
		return Record{}, fmt.Errorf("schema: top-level type %q is not a record", kind)
	}

	if err := decodeString(m, "name", &r.Name); err != nil {
		return Record{}, err
	}
	if r.Name == "" {
		return Record{}, fmt.Errorf("schema: record without name")
	}
	if err := decodeString(m, "namespace", &r.Namespace); err != nil {
		return Record{}, err
	}
	if err := decodeString(m, "doc", &r.Doc); err != nil {
		return Record{}, err
	}

	rawFields, ok := m["fields"]
	if !ok {
		return Record{}, fmt.Errorf("schema: record %q without fields", r.Name)
	}
	if err := json.Unmarshal(rawFields, &r.Fields); err != nil {
		return Record{}, fmt.Errorf("schema: fields: %w", err)
	}
	seen := make(map[string]bool, len(r.Fields))
	for _, f := range r.Fields {
		if seen[f.Name] {
			return Record{}, fmt.Errorf("schema: duplicate field %q", f.Name)
		}
		seen[f.Name] = true
	}
	r.Extra = extraKeys(m, recordKeys)
	return r, nil
}

func decodeString(m map[string]json.RawMessage, key string, dst *string) error {
	raw, ok := m[key]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("schema: %q must be a string: %w", key, err)
	}
	return nil
}

func extraKeys(m map[string]json.RawMessage, known map[string]bool) map[string]json.RawMessage {
	var out map[string]json.RawMessage
	for k, v := range m {
		if known[k] {
			continue
		}
		if out == nil {
			out = make(map[string]json.RawMessage)
		}
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

func cloneExtra(in map[string]json.RawMessage) map[string]json.RawMessage {
	if in == nil {
		return nil
	}
	out := make(map[string]json.RawMessage, len(in))
	for k, v := range in {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

func compact(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, b); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func truncate(b []byte) string {
	if len(b) > 32 {
		return string(b[:32]) + "..."
	}
	return string(b)
}

// objectWriter writes a JSON object with keys in call order.
type objectWriter struct {
	buf bytes.Buffer
	n   int
	err error
}

func newObjectWriter() *objectWriter {
	w := &objectWriter{}
	w.buf.WriteByte('{')
	return w
}

func (w *objectWriter) key(k string) {
	if w.n > 0 {
		w.buf.WriteByte(',')
	}
	kb, _ := json.Marshal(k)
	w.buf.Write(kb)
	w.buf.WriteByte(':')
	w.n++
}

func (w *objectWriter) put(k, v string) {
	w.key(k)
	vb, _ := json.Marshal(v)
	w.buf.Write(vb)
}

func (w *objectWriter) putRaw(k string, raw json.RawMessage) {
	b, err := compact(raw)
	if err != nil && w.err == nil {
		w.err = fmt.Errorf("schema: %q: %w", k, err)
		return
	}
	w.key(k)
	w.buf.Write(b)
}

func (w *objectWriter) putMarshaler(k string, v json.Marshaler) error {
	b, err := v.MarshalJSON()
	if err != nil {
		return err
	}
	w.key(k)
	w.buf.Write(b)
	return nil
}

func (w *objectWriter) putExtra(extra map[string]json.RawMessage) {
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		w.putRaw(k, extra[k])
	}
}

func (w *objectWriter) close() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	w.buf.WriteByte('}')
	return w.buf.Bytes(), nil
}
