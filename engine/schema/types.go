package schema

import "fmt"

// TypeNamePrefix is the namespace every compiled resource type lives
// under. Check metadata stores these names verbatim and they are
// string-compared at evaluate time, so the prefix is load-bearing.
const TypeNamePrefix = "con_mon_v2.mappings"

// Kind enumerates the shapes a compiled field can take.
type Kind int

const (
	KindString Kind = iota
	KindInteger
	KindBoolean
	KindFloat
	KindDatetime
	KindArray
	KindObject
	KindAny
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInteger:
		return "integer"
	case KindBoolean:
		return "boolean"
	case KindFloat:
		return "float"
	case KindDatetime:
		return "datetime"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "any"
	}
}

// FieldType describes the type of one field. Exactly one of Elem,
// Struct or Ref is set for array/object/nominal types; primitives set
// none of them.
type FieldType struct {
	Kind   Kind
	Elem   *FieldType  // element type when Kind == KindArray
	Struct *StructType // inline structure when Kind == KindObject
	Ref    *StructType // nominal reference to a nested schema
}

// Field is a named field of a compiled record.
type Field struct {
	Name string
	Type FieldType
}

// StructType is a named bag of fields: either a nested schema or an
// inline structure hoisted out of a resource declaration.
type StructType struct {
	Name   string
	Fields []Field
}

func (s *StructType) Field(name string) (*Field, bool) {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return &s.Fields[i], true
		}
	}
	return nil, false
}

// Model is a compiled resource type. It carries the base fields every
// resource shares (id, source_connector) plus the provider-declared
// fields, and knows its fully-qualified name.
type Model struct {
	Provider string
	Name     string
	Record   *StructType
}

// FullName returns the stable fully-qualified type name used verbatim
// by Check metadata, e.g. "con_mon_v2.mappings.github.GithubResource".
func (m *Model) FullName() string {
	return fmt.Sprintf("%s.%s.%s", TypeNamePrefix, m.Provider, m.Name)
}

// CollectionModel is the per-provider ResourceCollection type,
// parameterised by its resource element type.
type CollectionModel struct {
	Provider string
	Name     string
	Element  *Model
}

func (c *CollectionModel) FullName() string {
	return fmt.Sprintf("%s.%s.%s", TypeNamePrefix, c.Provider, c.Name)
}
