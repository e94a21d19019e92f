package result_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conmonhq/conmon/engine/check"
	"github.com/conmonhq/conmon/engine/compare"
	"github.com/conmonhq/conmon/engine/infra/csvstore"
	"github.com/conmonhq/conmon/engine/infra/store"
	"github.com/conmonhq/conmon/engine/resource"
	"github.com/conmonhq/conmon/engine/result"
)

func testCheck(id string) *check.Check {
	return &check.Check{
		ID:   id,
		Name: "repo-visibility-private",
		OutputStatements: check.OutputStatements{
			Success: "All repositories are private",
			Failure: "Public repositories detected",
			Partial: "Some repositories are public",
		},
		Metadata: check.Metadata{
			ResourceType:  "con_mon_v2.mappings.github.GithubResource",
			FieldPath:     "repository_data.basic_info.private",
			Operation:     compare.Operation{Name: compare.OpEqual},
			ExpectedValue: true,
		},
	}
}

func resultsFor(c *check.Check, outcomes ...any) []*check.Result {
	out := make([]*check.Result, 0, len(outcomes))
	for i, o := range outcomes {
		r := &check.Result{
			Check: c,
			Resource: &resource.Resource{
				ID:              resourceName(i),
				SourceConnector: "github",
				TypeName:        c.Metadata.ResourceType,
			},
		}
		if b, ok := o.(bool); ok {
			passed := b
			r.Passed = &passed
		}
		out = append(out, r)
	}
	return out
}

func resourceName(i int) string {
	return string(rune('a'+i)) + "-repo"
}

func TestBuild(t *testing.T) {
	t.Run("Should report success when every resource passes", func(t *testing.T) {
		c := testCheck("chk-1")
		agg := result.Build(c, resultsFor(c, true, true), "cust-1", 3)
		assert.Equal(t, result.StatusSuccess, agg.Result)
		assert.Equal(t, 2, agg.SuccessCount)
		assert.Equal(t, 0, agg.FailureCount)
		assert.Equal(t, 100.0, agg.SuccessPercentage)
		assert.Equal(t, "All repositories are private", agg.ResultMessage)
	})
	t.Run("Should report failure when every resource fails", func(t *testing.T) {
		c := testCheck("chk-1")
		agg := result.Build(c, resultsFor(c, false, false), "cust-1", 3)
		assert.Equal(t, result.StatusFailure, agg.Result)
		assert.Equal(t, 0.0, agg.SuccessPercentage)
		assert.Equal(t, "Public repositories detected", agg.ResultMessage)
	})
	t.Run("Should report partial for mixed outcomes", func(t *testing.T) {
		c := testCheck("chk-1")
		agg := result.Build(c, resultsFor(c, true, false), "cust-1", 3)
		assert.Equal(t, result.StatusPartial, agg.Result)
		assert.Equal(t, 50.0, agg.SuccessPercentage)
	})
	t.Run("Should exclude execution failures from both counts", func(t *testing.T) {
		c := testCheck("chk-1")
		agg := result.Build(c, resultsFor(c, true, nil, false), "cust-1", 3)
		assert.Equal(t, 1, agg.SuccessCount)
		assert.Equal(t, 1, agg.FailureCount)
		assert.Equal(t, 50.0, agg.SuccessPercentage)
	})
	t.Run("Should keep resource lists consistent with counts", func(t *testing.T) {
		c := testCheck("chk-1")
		agg := result.Build(c, resultsFor(c, true, false, true, nil), "cust-1", 3)
		assert.Len(t, agg.SuccessResources, agg.SuccessCount)
		assert.Len(t, agg.FailedResources, agg.FailureCount)
		assert.ElementsMatch(t, []string{"a-repo", "c-repo"}, agg.SuccessResources)
		assert.ElementsMatch(t, []string{"b-repo"}, agg.FailedResources)
	})
	t.Run("Should report partial with zero percentage when nothing evaluated", func(t *testing.T) {
		c := testCheck("chk-1")
		agg := result.Build(c, resultsFor(c, nil, nil), "cust-1", 3)
		assert.Equal(t, result.StatusPartial, agg.Result)
		assert.Equal(t, 0.0, agg.SuccessPercentage)
	})
	t.Run("Should fall back to a generated message without output statements", func(t *testing.T) {
		c := testCheck("chk-1")
		c.OutputStatements = check.OutputStatements{}
		agg := result.Build(c, resultsFor(c, true, false), "cust-1", 3)
		assert.Contains(t, agg.ResultMessage, "1 of 2 resources passed")
	})
}

func TestWriter_UpsertCurrent(t *testing.T) {
	ctx := context.Background()

	newWriter := func(t *testing.T) (*result.Writer, store.Store) {
		t.Helper()
		st, err := csvstore.New(t.TempDir())
		require.NoError(t, err)
		return result.NewWriter(st), st
	}
	key := store.Filter{"customer_id": "cust-1", "connection_id": 3, "check_id": "chk-1"}

	t.Run("Should insert exactly one current row per key", func(t *testing.T) {
		w, st := newWriter(t)
		c := testCheck("chk-1")
		err := w.UpsertCurrent(ctx, []result.CheckResults{
			{Check: c, Results: resultsFor(c, true, true)},
		}, "cust-1", 3)
		require.NoError(t, err)
		rows, err := st.Select(ctx, "con_mon_results", key)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "success", rows[0]["result"])
	})
	t.Run("Should archive the previous current row before replacing it", func(t *testing.T) {
		w, st := newWriter(t)
		c := testCheck("chk-1")
		require.NoError(t, w.UpsertCurrent(ctx, []result.CheckResults{
			{Check: c, Results: resultsFor(c, true, true)},
		}, "cust-1", 3))
		require.NoError(t, w.UpsertCurrent(ctx, []result.CheckResults{
			{Check: c, Results: resultsFor(c, false, false)},
		}, "cust-1", 3))

		current, err := st.Select(ctx, "con_mon_results", key)
		require.NoError(t, err)
		require.Len(t, current, 1)
		assert.Equal(t, "failure", current[0]["result"])

		history, err := st.Select(ctx, "con_mon_results_history", key)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, "success", history[0]["result"])
		assert.NotEmpty(t, history[0]["archived_at"])
	})
	t.Run("Should grow history by one row per upsert after the first", func(t *testing.T) {
		w, st := newWriter(t)
		c := testCheck("chk-1")
		for i := 0; i < 4; i++ {
			require.NoError(t, w.UpsertCurrent(ctx, []result.CheckResults{
				{Check: c, Results: resultsFor(c, true)},
			}, "cust-1", 3))
		}
		current, err := st.Select(ctx, "con_mon_results", key)
		require.NoError(t, err)
		assert.Len(t, current, 1)
		history, err := st.Select(ctx, "con_mon_results_history", key)
		require.NoError(t, err)
		assert.Len(t, history, 3)
	})
	t.Run("Should keep identical outcomes equivalent across repeated upserts", func(t *testing.T) {
		w, st := newWriter(t)
		c := testCheck("chk-1")
		results := resultsFor(c, true, false)
		require.NoError(t, w.UpsertCurrent(ctx, []result.CheckResults{{Check: c, Results: results}}, "cust-1", 3))
		first, err := st.Select(ctx, "con_mon_results", key)
		require.NoError(t, err)
		require.NoError(t, w.UpsertCurrent(ctx, []result.CheckResults{{Check: c, Results: results}}, "cust-1", 3))
		second, err := st.Select(ctx, "con_mon_results", key)
		require.NoError(t, err)
		require.Len(t, second, 1)
		assert.Equal(t, first[0]["result"], second[0]["result"])
		assert.Equal(t, first[0]["success_count"], second[0]["success_count"])
		assert.Equal(t, first[0]["failure_count"], second[0]["failure_count"])
		assert.Equal(t, first[0]["result_message"], second[0]["result_message"])
	})
	t.Run("Should keep keys independent", func(t *testing.T) {
		w, st := newWriter(t)
		a := testCheck("chk-a")
		b := testCheck("chk-b")
		require.NoError(t, w.UpsertCurrent(ctx, []result.CheckResults{
			{Check: a, Results: resultsFor(a, true)},
			{Check: b, Results: resultsFor(b, false)},
		}, "cust-1", 3))
		rows, err := st.Select(ctx, "con_mon_results", store.Filter{"customer_id": "cust-1"})
		require.NoError(t, err)
		assert.Len(t, rows, 2)
	})
}
