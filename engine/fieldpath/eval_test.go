package fieldpath_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conmonhq/conmon/engine/fieldpath"
)

func repoView() map[string]any {
	return map[string]any{
		"name": "payments-api",
		"repository_data": map[string]any{
			"basic_info": map[string]any{
				"private":        true,
				"default_branch": "main",
			},
		},
		"branches": []any{
			map[string]any{
				"name":               "main",
				"protection_details": map[string]any{"enabled": true},
			},
			map[string]any{
				"name":               "develop",
				"protection_details": map[string]any{"enabled": false},
			},
		},
		"organization_data": map[string]any{
			"members": []any{
				map[string]any{"login": "alice", "role": "admin"},
				map[string]any{"login": "bob", "role": "member"},
			},
		},
	}
}

func TestEval_Access(t *testing.T) {
	t.Run("Should resolve a nested dotted path", func(t *testing.T) {
		got, err := fieldpath.Eval(repoView(), "repository_data.basic_info.private")
		require.NoError(t, err)
		assert.Equal(t, true, got)
	})
	t.Run("Should resolve a top-level field", func(t *testing.T) {
		got, err := fieldpath.Eval(repoView(), "name")
		require.NoError(t, err)
		assert.Equal(t, "payments-api", got)
	})
	t.Run("Should report a missing field with the consumed path", func(t *testing.T) {
		_, err := fieldpath.Eval(repoView(), "repository_data.security_info.private")
		var missing *fieldpath.MissingFieldError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, "repository_data.security_info", missing.Path)
	})
	t.Run("Should report scalar traversal as a missing field", func(t *testing.T) {
		_, err := fieldpath.Eval(repoView(), "name.length")
		var missing *fieldpath.MissingFieldError
		require.ErrorAs(t, err, &missing)
	})
	t.Run("Should access mapping keys on string maps", func(t *testing.T) {
		got, err := fieldpath.Eval(map[string]string{"token": "abc"}, "token")
		require.NoError(t, err)
		assert.Equal(t, "abc", got)
	})
}

func TestEval_Wildcards(t *testing.T) {
	t.Run("Should project a field across array elements", func(t *testing.T) {
		got, err := fieldpath.Eval(repoView(), "branches[*].name")
		require.NoError(t, err)
		assert.Equal(t, []any{"main", "develop"}, got)
	})
	t.Run("Should treat bare star the same as bracket form", func(t *testing.T) {
		bracket, err := fieldpath.Eval(repoView(), "branches[*].name")
		require.NoError(t, err)
		star, err := fieldpath.Eval(repoView(), "branches.*.name")
		require.NoError(t, err)
		assert.Equal(t, bracket, star)
	})
	t.Run("Should drop elements where the suffix fails", func(t *testing.T) {
		view := map[string]any{
			"branches": []any{
				map[string]any{"protection_details": map[string]any{"enabled": true}},
				map[string]any{"name": "orphan"},
			},
		}
		got, err := fieldpath.Eval(view, "branches[*].protection_details.enabled")
		require.NoError(t, err)
		assert.Equal(t, []any{true}, got)
	})
	t.Run("Should flatten one dimension per nested wildcard", func(t *testing.T) {
		view := map[string]any{
			"teams": []any{
				map[string]any{"members": []any{
					map[string]any{"login": "alice"},
					map[string]any{"login": "bob"},
				}},
				map[string]any{"members": []any{
					map[string]any{"login": "carol"},
				}},
			},
		}
		got, err := fieldpath.Eval(view, "teams[*].members[*].login")
		require.NoError(t, err)
		assert.Equal(t, []any{"alice", "bob", "carol"}, got)
	})
	t.Run("Should error when wildcard target is not an array", func(t *testing.T) {
		_, err := fieldpath.Eval(repoView(), "repository_data[*].basic_info")
		var missing *fieldpath.MissingFieldError
		require.ErrorAs(t, err, &missing)
		assert.Contains(t, missing.Reason, "expected array")
	})
	t.Run("Should return an empty projection for an empty array", func(t *testing.T) {
		got, err := fieldpath.Eval(map[string]any{"branches": []any{}}, "branches[*].name")
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestEval_Functions(t *testing.T) {
	t.Run("Should count array length with len", func(t *testing.T) {
		got, err := fieldpath.Eval(repoView(), "len(branches)")
		require.NoError(t, err)
		assert.Equal(t, 2, got)
	})
	t.Run("Should count string characters with len", func(t *testing.T) {
		got, err := fieldpath.Eval(repoView(), "len(name)")
		require.NoError(t, err)
		assert.Equal(t, 12, got)
	})
	t.Run("Should report zero length for nil values", func(t *testing.T) {
		got, err := fieldpath.Eval(map[string]any{"field": nil}, "len(field)")
		require.NoError(t, err)
		assert.Equal(t, 0, got)
	})
	t.Run("Should evaluate any over projected booleans", func(t *testing.T) {
		got, err := fieldpath.Eval(repoView(), "any(branches[*].protection_details.enabled)")
		require.NoError(t, err)
		assert.Equal(t, true, got)
	})
	t.Run("Should evaluate all over projected booleans", func(t *testing.T) {
		got, err := fieldpath.Eval(repoView(), "all(branches[*].protection_details.enabled)")
		require.NoError(t, err)
		assert.Equal(t, false, got)
	})
	t.Run("Should return false for any over an empty list", func(t *testing.T) {
		got, err := fieldpath.Eval(map[string]any{"items": []any{}}, "any(items)")
		require.NoError(t, err)
		assert.Equal(t, false, got)
	})
	t.Run("Should return true for all over an empty list", func(t *testing.T) {
		got, err := fieldpath.Eval(map[string]any{"items": []any{}}, "all(items)")
		require.NoError(t, err)
		assert.Equal(t, true, got)
	})
	t.Run("Should count truthy elements with count", func(t *testing.T) {
		view := map[string]any{"flags": []any{true, false, true, 0, 1, ""}}
		got, err := fieldpath.Eval(view, "count(flags)")
		require.NoError(t, err)
		assert.Equal(t, 3, got)
	})
	t.Run("Should sum numeric elements and skip non-numeric ones", func(t *testing.T) {
		view := map[string]any{"values": []any{1, 2.5, "skip", 3}}
		got, err := fieldpath.Eval(view, "sum(values)")
		require.NoError(t, err)
		assert.Equal(t, 6.5, got)
	})
	t.Run("Should return zero for sum over an empty list", func(t *testing.T) {
		got, err := fieldpath.Eval(map[string]any{"values": []any{}}, "sum(values)")
		require.NoError(t, err)
		assert.Equal(t, 0.0, got)
	})
	t.Run("Should find the maximum numeric element", func(t *testing.T) {
		view := map[string]any{"values": []any{3, 9, 1}}
		got, err := fieldpath.Eval(view, "max(values)")
		require.NoError(t, err)
		assert.Equal(t, 9.0, got)
	})
	t.Run("Should find the minimum numeric element", func(t *testing.T) {
		view := map[string]any{"values": []any{3, 9, 1}}
		got, err := fieldpath.Eval(view, "min(values)")
		require.NoError(t, err)
		assert.Equal(t, 1.0, got)
	})
	t.Run("Should error for max over an empty list", func(t *testing.T) {
		_, err := fieldpath.Eval(map[string]any{"values": []any{}}, "max(values)")
		var aggErr *fieldpath.AggregateError
		require.ErrorAs(t, err, &aggErr)
		assert.Equal(t, "max", aggErr.Func)
	})
	t.Run("Should error for min over non-numeric elements", func(t *testing.T) {
		_, err := fieldpath.Eval(map[string]any{"values": []any{"a", "b"}}, "min(values)")
		var aggErr *fieldpath.AggregateError
		require.ErrorAs(t, err, &aggErr)
	})
	t.Run("Should wrap a scalar as a single-element list", func(t *testing.T) {
		got, err := fieldpath.Eval(map[string]any{"flag": true}, "any(flag)")
		require.NoError(t, err)
		assert.Equal(t, true, got)
	})
	t.Run("Should skip nil elements in aggregates", func(t *testing.T) {
		view := map[string]any{"values": []any{nil, 2, nil, 4}}
		got, err := fieldpath.Eval(view, "sum(values)")
		require.NoError(t, err)
		assert.Equal(t, 6.0, got)
	})
}

func TestEval_Determinism(t *testing.T) {
	t.Run("Should return identical results across repeated evaluations", func(t *testing.T) {
		view := repoView()
		first, err := fieldpath.Eval(view, "organization_data.members[*].role")
		require.NoError(t, err)
		for i := 0; i < 10; i++ {
			again, err := fieldpath.Eval(view, "organization_data.members[*].role")
			require.NoError(t, err)
			assert.Equal(t, first, again)
		}
	})
}
