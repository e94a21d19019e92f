package schema

import (
	"context"
	"fmt"
	"sort"

	"github.com/goccy/go-yaml"

	"github.com/conmonhq/conmon/pkg/logger"
)

// providerDoc is the YAML shape of one provider entry.
type providerDoc struct {
	NestedSchemas      map[string]map[string]any `yaml:"nested_schemas"`
	Resources          map[string]map[string]any `yaml:"resources"`
	ResourceCollection map[string]map[string]any `yaml:"resource_collection"`
}

// Compile parses a YAML schema document mapping provider names to
// their declarations and produces a Registry of compiled models.
//
// Compilation is three-pass per provider: nested schema names are
// declared first so forward references resolve, then resources are
// built against them, then collection types are parameterised by
// their resource element type. Reference cycles in the type graph are
// rejected.
func Compile(ctx context.Context, doc []byte) (*Registry, error) {
	var root map[string]providerDoc
	if err := yaml.Unmarshal(doc, &root); err != nil {
		return nil, fmt.Errorf("failed to parse schema document: %w", err)
	}
	reg := NewRegistry()
	providers := make([]string, 0, len(root))
	for name := range root {
		providers = append(providers, name)
	}
	sort.Strings(providers)
	for _, name := range providers {
		p, err := compileProvider(ctx, name, root[name])
		if err != nil {
			return nil, fmt.Errorf("failed to compile provider %q: %w", name, err)
		}
		reg.add(p)
	}
	return reg, nil
}

type providerCompiler struct {
	provider string
	nested   map[string]*StructType
	visiting map[string]bool
	doc      providerDoc
}

func compileProvider(ctx context.Context, name string, doc providerDoc) (*Provider, error) {
	pc := &providerCompiler{
		provider: name,
		nested:   make(map[string]*StructType, len(doc.NestedSchemas)),
		visiting: make(map[string]bool),
		doc:      doc,
	}
	// Pass 1: declare nested schema names, then fill their bodies so
	// forward references within the declaration order resolve.
	nestedNames := sortedKeys(doc.NestedSchemas)
	for _, n := range nestedNames {
		pc.nested[n] = &StructType{Name: n}
	}
	for _, n := range nestedNames {
		if err := pc.fillStruct(ctx, pc.nested[n], doc.NestedSchemas[n]); err != nil {
			return nil, fmt.Errorf("nested schema %q: %w", n, err)
		}
	}
	if err := pc.checkCycles(); err != nil {
		return nil, err
	}
	p := &Provider{
		Name:          name,
		NestedSchemas: pc.nested,
		Resources:     make(map[string]*Model, len(doc.Resources)),
	}
	// Pass 2: resources, each carrying the Resource base fields.
	for _, rn := range sortedKeys(doc.Resources) {
		record := &StructType{Name: rn, Fields: baseFields()}
		if err := pc.fillStruct(ctx, record, doc.Resources[rn]); err != nil {
			return nil, fmt.Errorf("resource %q: %w", rn, err)
		}
		p.Resources[rn] = &Model{Provider: name, Name: rn, Record: record}
	}
	// Pass 3: collection types parameterised by their element type.
	for _, cn := range sortedKeys(doc.ResourceCollection) {
		elem, err := pc.collectionElement(doc.ResourceCollection[cn], p)
		if err != nil {
			return nil, fmt.Errorf("resource collection %q: %w", cn, err)
		}
		p.Collection = &CollectionModel{Provider: name, Name: cn, Element: elem}
	}
	return p, nil
}

// baseFields are inherited from the abstract Resource record.
func baseFields() []Field {
	return []Field{
		{Name: "id", Type: FieldType{Kind: KindString}},
		{Name: "source_connector", Type: FieldType{Kind: KindString}},
	}
}

func (pc *providerCompiler) fillStruct(ctx context.Context, st *StructType, decl map[string]any) error {
	for _, fieldName := range sortedKeys(decl) {
		ft, err := pc.resolveType(ctx, decl[fieldName])
		if err != nil {
			return fmt.Errorf("field %q: %w", fieldName, err)
		}
		st.Fields = append(st.Fields, Field{Name: fieldName, Type: ft})
	}
	return nil
}

// resolveType maps a YAML type declaration to a FieldType. A string
// is either a primitive keyword or a nominal reference to a nested
// schema; a map is a structured type with an inline structure.
func (pc *providerCompiler) resolveType(ctx context.Context, decl any) (FieldType, error) {
	switch t := decl.(type) {
	case string:
		return pc.resolveNamedType(ctx, t), nil
	case map[string]any:
		return pc.resolveStructuredType(ctx, t)
	default:
		return FieldType{}, fmt.Errorf("unsupported type declaration %T", decl)
	}
}

func (pc *providerCompiler) resolveNamedType(ctx context.Context, name string) FieldType {
	switch name {
	case "string":
		return FieldType{Kind: KindString}
	case "integer":
		return FieldType{Kind: KindInteger}
	case "boolean":
		return FieldType{Kind: KindBoolean}
	case "float", "number":
		return FieldType{Kind: KindFloat}
	case "datetime":
		return FieldType{Kind: KindDatetime}
	case "array":
		return FieldType{Kind: KindArray, Elem: &FieldType{Kind: KindAny}}
	case "object":
		return FieldType{Kind: KindObject, Struct: &StructType{}}
	}
	if ref, ok := pc.nested[name]; ok {
		return FieldType{Kind: KindObject, Ref: ref}
	}
	// Unknown keyword or reference. Keywords that look like
	// primitives degrade to string; anything capitalised is assumed
	// to be a missing schema reference and degrades to Any.
	log := logger.FromContext(ctx)
	if name != "" && name[0] >= 'A' && name[0] <= 'Z' {
		log.Warn("Unknown schema reference, using Any", "provider", pc.provider, "type", name)
		return FieldType{Kind: KindAny}
	}
	log.Warn("Unknown primitive type, using string", "provider", pc.provider, "type", name)
	return FieldType{Kind: KindString}
}

func (pc *providerCompiler) resolveStructuredType(ctx context.Context, decl map[string]any) (FieldType, error) {
	kindName, _ := decl["type"].(string)
	structure, hasStructure := decl["structure"].(map[string]any)
	switch kindName {
	case "array":
		elem := FieldType{Kind: KindAny}
		if hasStructure {
			st := &StructType{}
			if err := pc.fillStruct(ctx, st, structure); err != nil {
				return FieldType{}, err
			}
			elem = FieldType{Kind: KindObject, Struct: st}
		} else if itemDecl, ok := decl["items"]; ok {
			it, err := pc.resolveType(ctx, itemDecl)
			if err != nil {
				return FieldType{}, err
			}
			elem = it
		}
		return FieldType{Kind: KindArray, Elem: &elem}, nil
	case "object":
		st := &StructType{}
		if hasStructure {
			if err := pc.fillStruct(ctx, st, structure); err != nil {
				return FieldType{}, err
			}
		}
		return FieldType{Kind: KindObject, Struct: st}, nil
	default:
		return FieldType{}, fmt.Errorf("structured type must be array or object, got %q", kindName)
	}
}

func (pc *providerCompiler) collectionElement(decl map[string]any, p *Provider) (*Model, error) {
	raw, ok := decl["resources"]
	if !ok {
		return nil, fmt.Errorf("missing resources declaration")
	}
	var elemName string
	switch t := raw.(type) {
	case string:
		elemName = t
	case map[string]any:
		elemName, _ = t["items"].(string)
	}
	model, ok := p.Resources[elemName]
	if !ok {
		return nil, fmt.Errorf("unknown resource element type %q", elemName)
	}
	return model, nil
}

// checkCycles rejects reference cycles in the nested-schema graph.
// Declaration-order cycles are fine; type-graph cycles are not.
func (pc *providerCompiler) checkCycles() error {
	state := make(map[string]int, len(pc.nested)) // 0 unseen, 1 visiting, 2 done
	var visit func(name string, st *StructType) error
	var visitType func(origin string, ft *FieldType) error
	visitType = func(origin string, ft *FieldType) error {
		if ft == nil {
			return nil
		}
		if ft.Ref != nil {
			return visit(ft.Ref.Name, ft.Ref)
		}
		if ft.Struct != nil {
			for i := range ft.Struct.Fields {
				if err := visitType(origin, &ft.Struct.Fields[i].Type); err != nil {
					return err
				}
			}
		}
		return visitType(origin, ft.Elem)
	}
	visit = func(name string, st *StructType) error {
		switch state[name] {
		case 1:
			return fmt.Errorf("schema reference cycle through %q", name)
		case 2:
			return nil
		}
		state[name] = 1
		for i := range st.Fields {
			if err := visitType(name, &st.Fields[i].Type); err != nil {
				return err
			}
		}
		state[name] = 2
		return nil
	}
	for _, n := range sortedKeys(pc.nested) {
		if err := visit(n, pc.nested[n]); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
