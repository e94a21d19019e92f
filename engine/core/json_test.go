package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONMap(t *testing.T) {
	t.Run("Should serialise nil maps as an empty object", func(t *testing.T) {
		var m JSONMap
		data, err := m.AsJSON()
		require.NoError(t, err)
		assert.Equal(t, "{}", data)
	})
	t.Run("Should round-trip through the stored string form", func(t *testing.T) {
		m := JSONMap{"region": "us-east-1", "count": 2}
		data, err := m.AsJSON()
		require.NoError(t, err)
		back, err := JSONMapFromAny(data)
		require.NoError(t, err)
		assert.Equal(t, "us-east-1", back["region"])
		assert.Equal(t, float64(2), back["count"])
	})
	t.Run("Should accept native maps and bytes", func(t *testing.T) {
		back, err := JSONMapFromAny(map[string]any{"k": "v"})
		require.NoError(t, err)
		assert.Equal(t, "v", back["k"])
		back, err = JSONMapFromAny([]byte(`{"k":"v"}`))
		require.NoError(t, err)
		assert.Equal(t, "v", back["k"])
	})
	t.Run("Should reject unconvertible values", func(t *testing.T) {
		_, err := JSONMapFromAny(42)
		assert.ErrorContains(t, err, "cannot convert")
	})
}

func TestSliceFromAny(t *testing.T) {
	t.Run("Should decode JSON-encoded cells", func(t *testing.T) {
		out, err := SliceFromAny(`["a","b"]`)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, out)
	})
	t.Run("Should stringify mixed element slices", func(t *testing.T) {
		out, err := SliceFromAny([]any{"a", 1})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "1"}, out)
	})
	t.Run("Should treat empty cells as absent", func(t *testing.T) {
		out, err := SliceFromAny("")
		require.NoError(t, err)
		assert.Nil(t, out)
	})
}

func TestID(t *testing.T) {
	t.Run("Should mint parseable sortable ids", func(t *testing.T) {
		id := MustNewID()
		assert.False(t, id.IsZero())
		parsed, err := ParseID(id.String())
		require.NoError(t, err)
		assert.Equal(t, id, parsed)
	})
	t.Run("Should reject malformed ids", func(t *testing.T) {
		_, err := ParseID("not-a-ksuid")
		assert.Error(t, err)
	})
}
