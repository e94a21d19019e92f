package schema

import (
	"github.com/conmonhq/conmon/engine/core"
	"github.com/conmonhq/conmon/engine/resource"
)

// NewDefault constructs a default instance of the model. Every
// declared field is present with its zero value; arrays hold exactly
// one default element so wildcard and aggregate paths resolve.
func (m *Model) NewDefault() *resource.Resource {
	data := core.JSONMap{}
	for i := range m.Record.Fields {
		f := &m.Record.Fields[i]
		if f.Name == "id" || f.Name == "source_connector" {
			continue
		}
		data[f.Name] = defaultValue(&f.Type)
	}
	return &resource.Resource{
		ID:              "default",
		SourceConnector: m.Provider,
		TypeName:        m.FullName(),
		Data:            data,
	}
}

func defaultValue(ft *FieldType) any {
	switch ft.Kind {
	case KindString, KindDatetime:
		return ""
	case KindInteger:
		return 0
	case KindFloat:
		return 0.0
	case KindBoolean:
		return false
	case KindArray:
		if ft.Elem == nil {
			return []any{}
		}
		return []any{defaultValue(ft.Elem)}
	case KindObject:
		st := ft.structure()
		out := map[string]any{}
		if st != nil {
			for i := range st.Fields {
				out[st.Fields[i].Name] = defaultValue(&st.Fields[i].Type)
			}
		}
		return out
	default:
		return nil
	}
}
