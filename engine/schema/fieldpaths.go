package schema

// DefaultFieldPathDepth bounds the path walk when callers do not
// choose a depth themselves.
const DefaultFieldPathDepth = 4

// FieldPaths produces the complete set of extractable paths for the
// model, walking the type tree to maxDepth segments. Array fields
// contribute `name[*]` wildcard variants and function-bearing
// wrappers (len over arrays and strings, any/all/count over boolean
// leaves reached through a wildcard, sum/max/min over numeric ones).
func (m *Model) FieldPaths(maxDepth int) []string {
	if maxDepth <= 0 {
		maxDepth = DefaultFieldPathDepth
	}
	var out []string
	walkStruct(m.Record, "", 0, maxDepth, false, &out)
	return out
}

func walkStruct(st *StructType, prefix string, depth, maxDepth int, throughArray bool, out *[]string) {
	if st == nil || depth >= maxDepth {
		return
	}
	for i := range st.Fields {
		f := &st.Fields[i]
		path := f.Name
		if prefix != "" {
			path = prefix + "." + f.Name
		}
		walkType(&f.Type, path, depth+1, maxDepth, throughArray, out)
	}
}

func walkType(ft *FieldType, path string, depth, maxDepth int, throughArray bool, out *[]string) {
	switch ft.Kind {
	case KindString, KindDatetime:
		emitLeaf(path, ft.Kind, throughArray, out)
		*out = append(*out, "len("+path+")")
	case KindInteger, KindFloat, KindBoolean, KindAny:
		emitLeaf(path, ft.Kind, throughArray, out)
	case KindObject:
		*out = append(*out, path)
		walkStruct(ft.structure(), path, depth, maxDepth, throughArray, out)
	case KindArray:
		*out = append(*out, path)
		*out = append(*out, "len("+path+")")
		if depth >= maxDepth || ft.Elem == nil {
			return
		}
		wildcard := path + "[*]"
		switch ft.Elem.Kind {
		case KindObject:
			walkStruct(ft.Elem.structure(), wildcard, depth+1, maxDepth, true, out)
		default:
			walkType(ft.Elem, wildcard, depth+1, maxDepth, true, out)
		}
	}
}

func emitLeaf(path string, kind Kind, throughArray bool, out *[]string) {
	*out = append(*out, path)
	if !throughArray {
		return
	}
	switch kind {
	case KindBoolean:
		*out = append(*out,
			"any("+path+")",
			"all("+path+")",
			"count("+path+")",
		)
	case KindInteger, KindFloat:
		*out = append(*out,
			"sum("+path+")",
			"max("+path+")",
			"min("+path+")",
		)
	}
}

// structure returns whichever struct body the type carries, inline or
// by nominal reference.
func (ft *FieldType) structure() *StructType {
	if ft.Struct != nil {
		return ft.Struct
	}
	return ft.Ref
}
