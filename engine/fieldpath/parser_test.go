package fieldpath_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conmonhq/conmon/engine/fieldpath"
)

func TestParse(t *testing.T) {
	t.Run("Should parse a plain dotted path", func(t *testing.T) {
		p, err := fieldpath.Parse("repository_data.basic_info.private")
		require.NoError(t, err)
		assert.Empty(t, p.Func)
		require.Len(t, p.Segments, 3)
		assert.Equal(t, "repository_data", p.Segments[0].Name)
		assert.False(t, p.Segments[0].Wildcard)
	})
	t.Run("Should parse a single identifier", func(t *testing.T) {
		p, err := fieldpath.Parse("name")
		require.NoError(t, err)
		require.Len(t, p.Segments, 1)
		assert.Equal(t, "name", p.Segments[0].Name)
	})
	t.Run("Should parse a bracket wildcard segment", func(t *testing.T) {
		p, err := fieldpath.Parse("branches[*].protection_details.enabled")
		require.NoError(t, err)
		require.Len(t, p.Segments, 3)
		assert.Equal(t, "branches", p.Segments[0].Name)
		assert.True(t, p.Segments[0].Wildcard)
		assert.False(t, p.Segments[1].Wildcard)
	})
	t.Run("Should parse a bare star segment", func(t *testing.T) {
		p, err := fieldpath.Parse("branches.*.name")
		require.NoError(t, err)
		require.Len(t, p.Segments, 3)
		assert.Empty(t, p.Segments[1].Name)
		assert.True(t, p.Segments[1].Wildcard)
	})
	t.Run("Should parse a function wrapper", func(t *testing.T) {
		p, err := fieldpath.Parse("len(branches)")
		require.NoError(t, err)
		assert.Equal(t, fieldpath.FuncLen, p.Func)
		require.Len(t, p.Segments, 1)
		assert.Equal(t, "branches", p.Segments[0].Name)
	})
	t.Run("Should parse a function over a wildcard path", func(t *testing.T) {
		p, err := fieldpath.Parse("all(branches[*].protection_details.enabled)")
		require.NoError(t, err)
		assert.Equal(t, fieldpath.FuncAll, p.Func)
		require.Len(t, p.Segments, 3)
		assert.True(t, p.Segments[0].Wildcard)
	})
	t.Run("Should reject an unknown function name", func(t *testing.T) {
		_, err := fieldpath.Parse("avg(branches)")
		assert.ErrorContains(t, err, "unknown path function")
	})
	t.Run("Should reject an empty expression", func(t *testing.T) {
		_, err := fieldpath.Parse("   ")
		assert.ErrorContains(t, err, "empty field path")
	})
	t.Run("Should reject an empty inner path", func(t *testing.T) {
		_, err := fieldpath.Parse("len()")
		assert.ErrorContains(t, err, "empty inner path")
	})
	t.Run("Should reject invalid segment characters", func(t *testing.T) {
		_, err := fieldpath.Parse("repository data.name")
		assert.ErrorContains(t, err, "invalid segment")
	})
	t.Run("Should reject a segment starting with a digit", func(t *testing.T) {
		_, err := fieldpath.Parse("1name")
		assert.ErrorContains(t, err, "invalid segment")
	})
	t.Run("Should preserve the raw expression in String", func(t *testing.T) {
		p, err := fieldpath.Parse("sum(findings[*].count)")
		require.NoError(t, err)
		assert.Equal(t, "sum(findings[*].count)", p.String())
	})
}
