package connector

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/conmonhq/conmon/engine/core"
	"github.com/conmonhq/conmon/engine/resource"
	"github.com/conmonhq/conmon/engine/schema"
)

// Static serves a fixed resource collection. It backs generator
// sampling (a representative collection fetched once, possibly with
// dummy credentials) and tests.
type Static struct {
	provider   string
	model      string
	collection *resource.Collection
	info       *InfoData
}

func NewStatic(provider string, coll *resource.Collection) *Static {
	return &Static{
		provider:   provider,
		collection: coll,
		info: &InfoData{
			Principal: "static",
			FetchedAt: time.Now().UTC(),
		},
	}
}

func (s *Static) Fetch(_ context.Context, _ map[string]string) (*InfoData, *resource.Collection, error) {
	return s.info, s.collection, nil
}

// Provider returns the provider name the fixture was loaded for.
func (s *Static) Provider() string { return s.provider }

// Model returns the resource model name from the fixture, when known.
func (s *Static) Model() string { return s.model }

// Collection returns the fixed resource collection without a fetch.
func (s *Static) Collection() *resource.Collection { return s.collection }

// staticFixture is the YAML shape of a fixture file: a provider, a
// resource model name, and raw resource data maps.
type staticFixture struct {
	Provider  string           `yaml:"provider"`
	Model     string           `yaml:"model"`
	Resources []map[string]any `yaml:"resources"`
}

// LoadStatic reads a YAML fixture file and types its resources
// against the compiled registry.
func LoadStatic(path string, registry *schema.Registry) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture %s: %w", path, err)
	}
	var fx staticFixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("failed to parse fixture %s: %w", path, err)
	}
	provider, ok := registry.Provider(fx.Provider)
	if !ok {
		return nil, fmt.Errorf("fixture %s: unknown provider %q", path, fx.Provider)
	}
	model, ok := provider.Resources[fx.Model]
	if !ok {
		return nil, fmt.Errorf("fixture %s: unknown resource model %q", path, fx.Model)
	}
	resources := make([]*resource.Resource, 0, len(fx.Resources))
	for i, raw := range fx.Resources {
		id := fmt.Sprintf("%s-%d", fx.Provider, i)
		if v, ok := raw["id"]; ok {
			id = fmt.Sprintf("%v", v)
			delete(raw, "id")
		}
		resources = append(resources, &resource.Resource{
			ID:              id,
			SourceConnector: fx.Provider,
			TypeName:        model.FullName(),
			Data:            core.JSONMap(raw),
		})
	}
	static := NewStatic(fx.Provider, resource.NewCollection(fx.Provider, resources))
	static.model = fx.Model
	return static, nil
}
