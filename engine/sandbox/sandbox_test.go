package sandbox_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conmonhq/conmon/engine/sandbox"
)

func newSandbox(t *testing.T, opts ...sandbox.Option) *sandbox.Sandbox {
	t.Helper()
	sb, err := sandbox.New(opts...)
	require.NoError(t, err)
	return sb
}

func TestValidateLogic(t *testing.T) {
	t.Run("Should accept a plain expression", func(t *testing.T) {
		assert.NoError(t, sandbox.ValidateLogic("fetched_value == expected_value"))
	})
	t.Run("Should reject empty logic", func(t *testing.T) {
		var cfgErr *sandbox.ConfigError
		assert.ErrorAs(t, sandbox.ValidateLogic(""), &cfgErr)
	})
	t.Run("Should reject whitespace-only logic", func(t *testing.T) {
		var cfgErr *sandbox.ConfigError
		assert.ErrorAs(t, sandbox.ValidateLogic("   \n\t  \n"), &cfgErr)
	})
	t.Run("Should reject comment-only logic", func(t *testing.T) {
		logic := "# this predicate does nothing\n// and neither does this\n"
		var cfgErr *sandbox.ConfigError
		assert.ErrorAs(t, sandbox.ValidateLogic(logic), &cfgErr)
	})
}

func TestSandbox_Run(t *testing.T) {
	ctx := context.Background()
	sb := newSandbox(t)

	t.Run("Should evaluate a bare expression", func(t *testing.T) {
		ok, err := sb.Run(ctx, "fetched_value == expected_value", "main", "main")
		require.NoError(t, err)
		assert.True(t, ok)
	})
	t.Run("Should evaluate a result assignment", func(t *testing.T) {
		ok, err := sb.Run(ctx, "result = fetched_value > 5", 10, nil)
		require.NoError(t, err)
		assert.True(t, ok)
	})
	t.Run("Should keep the last result assignment", func(t *testing.T) {
		logic := "result = false\nresult = fetched_value == 'x'"
		ok, err := sb.Run(ctx, logic, "x", nil)
		require.NoError(t, err)
		assert.True(t, ok)
	})
	t.Run("Should skip comment lines around the assignment", func(t *testing.T) {
		logic := "# check branch protection\nresult = fetched_value\n// done"
		ok, err := sb.Run(ctx, logic, true, nil)
		require.NoError(t, err)
		assert.True(t, ok)
	})
	t.Run("Should return false when assignments never touch result", func(t *testing.T) {
		ok, err := sb.Run(ctx, "other = fetched_value == expected_value", "a", "a")
		require.NoError(t, err)
		assert.False(t, ok)
	})
	t.Run("Should expose config_value as an alias of the expected input", func(t *testing.T) {
		ok, err := sb.Run(ctx, "result = config_value == 'main'", "ignored", "main")
		require.NoError(t, err)
		assert.True(t, ok)
	})
	t.Run("Should error on comment-only logic", func(t *testing.T) {
		var cfgErr *sandbox.ConfigError
		_, err := sb.Run(ctx, "# nothing here", true, true)
		assert.ErrorAs(t, err, &cfgErr)
	})
	t.Run("Should fail compilation for unknown identifiers", func(t *testing.T) {
		_, err := sb.Run(ctx, "result = os.getenv('PATH') != ''", nil, nil)
		var execErr *sandbox.ExecutionError
		require.ErrorAs(t, err, &execErr)
		assert.Equal(t, "compile", execErr.Stage)
	})
	t.Run("Should fail compilation for malformed expressions", func(t *testing.T) {
		_, err := sb.Run(ctx, "result = fetched_value ==", nil, nil)
		var execErr *sandbox.ExecutionError
		require.ErrorAs(t, err, &execErr)
		assert.Equal(t, "compile", execErr.Stage)
	})
	t.Run("Should coerce truthy non-boolean results", func(t *testing.T) {
		ok, err := sb.Run(ctx, "result = size(fetched_value)", []any{"a", "b"}, nil)
		require.NoError(t, err)
		assert.True(t, ok)
	})
	t.Run("Should coerce zero results to false", func(t *testing.T) {
		ok, err := sb.Run(ctx, "result = size(fetched_value)", []any{}, nil)
		require.NoError(t, err)
		assert.False(t, ok)
	})
	t.Run("Should support string helper functions", func(t *testing.T) {
		ok, err := sb.Run(ctx, "result = fetched_value.startsWith('refs/')", "refs/heads/main", nil)
		require.NoError(t, err)
		assert.True(t, ok)
	})
	t.Run("Should evaluate list comprehension macros over fetched values", func(t *testing.T) {
		logic := "result = fetched_value.all(v, v == true)"
		ok, err := sb.Run(ctx, logic, []any{true, true}, nil)
		require.NoError(t, err)
		assert.True(t, ok)
	})
	t.Run("Should stop runaway evaluation at the cost limit", func(t *testing.T) {
		limited := newSandbox(t, sandbox.WithCostLimit(10), sandbox.WithTimeout(time.Second))
		big := make([]any, 1000)
		for i := range big {
			big[i] = i
		}
		_, err := limited.Run(ctx, "result = fetched_value.all(v, v >= 0)", big, nil)
		var execErr *sandbox.ExecutionError
		require.ErrorAs(t, err, &execErr)
		assert.Equal(t, "eval", execErr.Stage)
	})
	t.Run("Should be deterministic across repeated runs", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			ok, err := sb.Run(ctx, "result = fetched_value >= expected_value", 7, 5)
			require.NoError(t, err)
			assert.True(t, ok)
		}
	})
}
