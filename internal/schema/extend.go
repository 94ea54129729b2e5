package schema

import (
	"encoding/json"
	"fmt"
)

// SiblingSuffix is appended to a source field name to name its standardized
// sibling.
const SiblingSuffix = "_standardized"

// SiblingName returns the sibling field name for name.
func SiblingName(name string) string { return name + SiblingSuffix }

var (
	nullDefault = json.RawMessage(`null`)
	// Non-union siblings default to the string "null", not JSON null.
	// Downstream readers of existing files rely on it; keep until they are
	// confirmed not to.
	nullStringDefault = json.RawMessage(`"null"`)
)

// Sibling synthesizes the descriptor of the standardized sibling of source.
// A nullable (union) source yields ["null","string"] with a null default;
// anything else yields "string" with the string default "null".
func Sibling(source Field) Field {
	if source.Type.IsUnion() {
		return Field{
			Name:    SiblingName(source.Name),
			Type:    Union(Primitive("null"), Primitive("string")),
			Default: append(json.RawMessage(nil), nullDefault...),
		}
	}
	return Field{
		Name:    SiblingName(source.Name),
		Type:    Primitive("string"),
		Default: append(json.RawMessage(nil), nullStringDefault...),
	}
}

// FieldSet is an insertion-ordered set of sibling descriptors keyed by name.
type FieldSet struct {
	order  []string
	fields map[string]Field
}

// NewFieldSet returns an empty FieldSet.
func NewFieldSet() *FieldSet {
	return &FieldSet{fields: make(map[string]Field)}
}

// Add records the sibling of source. Adding the same source twice is a no-op.
func (s *FieldSet) Add(source Field) Field {
	sib := Sibling(source)
	if existing, ok := s.fields[sib.Name]; ok {
		return existing
	}
	s.order = append(s.order, sib.Name)
	s.fields[sib.Name] = sib
	return sib
}

// Len returns the number of siblings in the set.
func (s *FieldSet) Len() int { return len(s.order) }

// Fields returns copies of the siblings in insertion order.
func (s *FieldSet) Fields() []Field {
	out := make([]Field, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.fields[name].clone())
	}
	return out
}

// Extend returns a new record schema holding every field of rec followed by
// one sibling per distinct name in matched. Names must exist in rec. A
// sibling already declared by rec (a re-run over standardized output) is not
// added twice. rec is left untouched.
func Extend(rec Record, matched []string) (Record, error) {
	set := NewFieldSet()
	for _, name := range matched {
		f, ok := rec.Field(name)
		if !ok {
			return Record{}, fmt.Errorf("schema: matched field %q not declared by record %q", name, rec.FullName())
		}
		set.Add(f)
	}
	return ExtendWith(rec, set), nil
}

// ExtendWith appends the siblings in set to a copy of rec.
func ExtendWith(rec Record, set *FieldSet) Record {
	out := rec.Clone()
	for _, sib := range set.Fields() {
		if _, exists := out.Field(sib.Name); exists {
			continue
		}
		out.Fields = append(out.Fields, sib)
	}
	return out
}
