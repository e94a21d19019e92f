package schema_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conmonhq/conmon/engine/schema"
)

const sampleDoc = `
gitlab:
  nested_schemas:
    Approval:
      required: boolean
      approvers: integer
  resources:
    GitlabResource:
      project_data:
        type: object
        structure:
          name: string
          visibility: string
          approval: Approval
          branches:
            type: array
            structure:
              name: string
              protected: boolean
      labels:
        type: array
        items: string
  resource_collection:
    GitlabResourceCollection:
      resources: GitlabResource
`

func TestCompile(t *testing.T) {
	ctx := context.Background()

	t.Run("Should compile providers with nested schemas and resources", func(t *testing.T) {
		reg, err := schema.Compile(ctx, []byte(sampleDoc))
		require.NoError(t, err)
		p, ok := reg.Provider("gitlab")
		require.True(t, ok)
		assert.Contains(t, p.NestedSchemas, "Approval")
		require.Contains(t, p.Resources, "GitlabResource")
		require.NotNil(t, p.Collection)
		assert.Equal(t, "GitlabResourceCollection", p.Collection.Name)
		assert.Equal(t, p.Resources["GitlabResource"], p.Collection.Element)
	})
	t.Run("Should qualify model names with the type prefix", func(t *testing.T) {
		reg, err := schema.Compile(ctx, []byte(sampleDoc))
		require.NoError(t, err)
		model, ok := reg.Lookup("con_mon_v2.mappings.gitlab.GitlabResource")
		require.True(t, ok)
		assert.Equal(t, "gitlab", model.Provider)
	})
	t.Run("Should inherit the resource base fields", func(t *testing.T) {
		reg, err := schema.Compile(ctx, []byte(sampleDoc))
		require.NoError(t, err)
		model, _ := reg.Lookup("con_mon_v2.mappings.gitlab.GitlabResource")
		names := make([]string, 0, len(model.Record.Fields))
		for _, f := range model.Record.Fields {
			names = append(names, f.Name)
		}
		assert.Contains(t, names, "id")
		assert.Contains(t, names, "source_connector")
	})
	t.Run("Should degrade unknown schema references to Any", func(t *testing.T) {
		doc := `
p:
  resources:
    R:
      field: MissingSchema
`
		reg, err := schema.Compile(ctx, []byte(doc))
		require.NoError(t, err)
		model, ok := reg.Lookup("con_mon_v2.mappings.p.R")
		require.True(t, ok)
		for _, f := range model.Record.Fields {
			if f.Name == "field" {
				assert.Equal(t, schema.KindAny, f.Type.Kind)
			}
		}
	})
	t.Run("Should degrade unknown primitive keywords to string", func(t *testing.T) {
		doc := `
p:
  resources:
    R:
      field: varchar
`
		reg, err := schema.Compile(ctx, []byte(doc))
		require.NoError(t, err)
		model, _ := reg.Lookup("con_mon_v2.mappings.p.R")
		for _, f := range model.Record.Fields {
			if f.Name == "field" {
				assert.Equal(t, schema.KindString, f.Type.Kind)
			}
		}
	})
	t.Run("Should reject reference cycles in nested schemas", func(t *testing.T) {
		doc := `
p:
  nested_schemas:
    A:
      next: B
    B:
      back: A
  resources:
    R:
      field: A
`
		_, err := schema.Compile(ctx, []byte(doc))
		assert.ErrorContains(t, err, "cycle")
	})
	t.Run("Should reject unknown collection element types", func(t *testing.T) {
		doc := `
p:
  resources:
    R:
      field: string
  resource_collection:
    C:
      resources: Missing
`
		_, err := schema.Compile(ctx, []byte(doc))
		assert.ErrorContains(t, err, "unknown resource element type")
	})
	t.Run("Should reject structured types that are neither array nor object", func(t *testing.T) {
		doc := `
p:
  resources:
    R:
      field:
        type: tuple
`
		_, err := schema.Compile(ctx, []byte(doc))
		assert.ErrorContains(t, err, "must be array or object")
	})
}

func TestLoadEmbedded(t *testing.T) {
	t.Run("Should load the shipped provider schemas", func(t *testing.T) {
		reg, err := schema.LoadEmbedded(context.Background())
		require.NoError(t, err)
		assert.Contains(t, reg.Providers(), "github")
		assert.Contains(t, reg.Providers(), "aws")
		_, ok := reg.Lookup("con_mon_v2.mappings.github.GithubResource")
		assert.True(t, ok)
		_, ok = reg.Lookup("con_mon_v2.mappings.aws.AwsResource")
		assert.True(t, ok)
	})
}
