package schema

import (
	"context"
	"embed"
	"fmt"
	"sort"
	"strings"
)

//go:embed schemas/*.yaml
var embeddedSchemas embed.FS

// Provider groups the compiled artifacts of one provider entry.
type Provider struct {
	Name          string
	NestedSchemas map[string]*StructType
	Resources     map[string]*Model
	Collection    *CollectionModel
}

// Registry is the closed set of compiled resource types. It is built
// once at startup and read without locks afterwards.
type Registry struct {
	providers map[string]*Provider
	byName    map[string]*Model
}

func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]*Provider),
		byName:    make(map[string]*Model),
	}
}

func (r *Registry) add(p *Provider) {
	r.providers[p.Name] = p
	for _, m := range p.Resources {
		r.byName[m.FullName()] = m
	}
}

// Provider returns the compiled artifacts for one provider.
func (r *Registry) Provider(name string) (*Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// Providers lists provider names in stable order.
func (r *Registry) Providers() []string {
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Lookup resolves a fully-qualified type name to its compiled model.
// Unknown names return false rather than erroring; checks bound to
// unknown types evaluate to zero results.
func (r *Registry) Lookup(fullName string) (*Model, bool) {
	m, ok := r.byName[strings.TrimSpace(fullName)]
	return m, ok
}

// Models lists every compiled resource model in stable order.
func (r *Registry) Models() []*Model {
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]*Model, 0, len(names))
	for _, n := range names {
		out = append(out, r.byName[n])
	}
	return out
}

// LoadEmbedded compiles the schemas shipped with the binary.
func LoadEmbedded(ctx context.Context) (*Registry, error) {
	entries, err := embeddedSchemas.ReadDir("schemas")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded schemas: %w", err)
	}
	merged := NewRegistry()
	for _, entry := range entries {
		data, err := embeddedSchemas.ReadFile("schemas/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read schema %s: %w", entry.Name(), err)
		}
		reg, err := Compile(ctx, data)
		if err != nil {
			return nil, fmt.Errorf("failed to compile schema %s: %w", entry.Name(), err)
		}
		for _, name := range reg.Providers() {
			p, _ := reg.Provider(name)
			merged.add(p)
		}
	}
	return merged, nil
}
