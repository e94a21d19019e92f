package postgres

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conmonhq/conmon/engine/check"
	"github.com/conmonhq/conmon/engine/infra/store"
	"github.com/conmonhq/conmon/engine/resource"
	"github.com/conmonhq/conmon/engine/result"
)

type capturedCall struct {
	sql  string
	args []any
}

// captureQuerier records every statement instead of executing it, so
// statement construction is testable without a live database.
type captureQuerier struct {
	calls []capturedCall
}

func (c *captureQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	c.calls = append(c.calls, capturedCall{sql: sql, args: args})
	return pgconn.CommandTag{}, nil
}

func (c *captureQuerier) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, pgx.ErrNoRows
}

// insertColumns extracts the column list from a generated INSERT.
func insertColumns(t *testing.T, sql string) []string {
	t.Helper()
	start := strings.Index(sql, "(")
	end := strings.Index(sql, ")")
	require.Greater(t, end, start)
	return strings.Split(sql[start+1:end], ",")
}

func aggregateRow(t *testing.T) store.Row {
	t.Helper()
	passed := true
	c := &check.Check{ID: "chk-1", Name: "repo_private_check"}
	results := []*check.Result{{
		Passed:   &passed,
		Check:    c,
		Resource: &resource.Resource{ID: "repo-1"},
	}}
	return result.Build(c, results, "default", 1).Row()
}

func TestInsertWith(t *testing.T) {
	ctx := context.Background()

	t.Run("Should mint an id when inserting result aggregate rows", func(t *testing.T) {
		q := &captureQuerier{}
		require.NoError(t, insertWith(ctx, q, "con_mon_results", aggregateRow(t)))
		require.Len(t, q.calls, 1)
		call := q.calls[0]
		assert.True(t, strings.HasPrefix(call.sql, "INSERT INTO con_mon_results "))

		cols := insertColumns(t, call.sql)
		require.Len(t, call.args, len(cols))
		idx := -1
		for i, col := range cols {
			if col == "id" {
				idx = i
			}
		}
		require.NotEqual(t, -1, idx, "generated insert must carry the id primary key")
		minted, ok := call.args[idx].(string)
		require.True(t, ok)
		_, err := uuid.Parse(minted)
		assert.NoError(t, err, "minted id must match the CSV adapter's format")
	})
	t.Run("Should preserve caller-supplied ids", func(t *testing.T) {
		q := &captureQuerier{}
		row := aggregateRow(t)
		row["id"] = "fixed-id"
		require.NoError(t, insertWith(ctx, q, "con_mon_results", row))
		require.Len(t, q.calls, 1)
		assert.Contains(t, q.calls[0].args, "fixed-id")
	})
	t.Run("Should not mint ids for tables without an id column", func(t *testing.T) {
		q := &captureQuerier{}
		now := time.Now().UTC()
		mapping := store.Row{
			"control_id": 42,
			"check_id":   "chk-1",
			"created_at": now,
			"updated_at": now,
			"is_deleted": false,
		}
		require.NoError(t, insertWith(ctx, q, "control_checks_mapping", mapping))
		require.Len(t, q.calls, 1)
		assert.NotContains(t, insertColumns(t, q.calls[0].sql), "id")
	})
	t.Run("Should leave the caller's row unchanged when minting", func(t *testing.T) {
		q := &captureQuerier{}
		row := aggregateRow(t)
		require.NoError(t, insertWith(ctx, q, "con_mon_results", row))
		_, ok := row["id"]
		assert.False(t, ok)
	})
	t.Run("Should JSON-encode slice columns", func(t *testing.T) {
		q := &captureQuerier{}
		require.NoError(t, insertWith(ctx, q, "con_mon_results", aggregateRow(t)))
		call := q.calls[0]
		cols := insertColumns(t, call.sql)
		for i, col := range cols {
			if col == "success_resources" {
				assert.JSONEq(t, `["repo-1"]`, string(call.args[i].([]byte)))
			}
		}
	})
	t.Run("Should reject unknown tables", func(t *testing.T) {
		q := &captureQuerier{}
		err := insertWith(ctx, q, "no_such_table", store.Row{"id": "x"})
		assert.ErrorContains(t, err, "unknown table")
		assert.Empty(t, q.calls)
	})
}

func TestUpdateWith(t *testing.T) {
	ctx := context.Background()

	t.Run("Should build updates with equality filters", func(t *testing.T) {
		q := &captureQuerier{}
		err := updateWith(ctx, q, "connections",
			store.Filter{"id": 3},
			store.Row{"sync_status": "success"},
		)
		require.NoError(t, err)
		require.Len(t, q.calls, 1)
		call := q.calls[0]
		assert.True(t, strings.HasPrefix(call.sql, "UPDATE connections SET "))
		assert.Contains(t, call.sql, "sync_status = $1")
		assert.Contains(t, call.sql, "WHERE id = $2")
		assert.Equal(t, []any{"success", 3}, call.args)
	})
}

func TestDeleteWith(t *testing.T) {
	ctx := context.Background()

	t.Run("Should scope deletes to the filter", func(t *testing.T) {
		q := &captureQuerier{}
		err := deleteWith(ctx, q, "con_mon_results", store.Filter{"check_id": "chk-1"})
		require.NoError(t, err)
		require.Len(t, q.calls, 1)
		call := q.calls[0]
		assert.True(t, strings.HasPrefix(call.sql, "DELETE FROM con_mon_results"))
		assert.Contains(t, call.sql, "WHERE check_id = $1")
		assert.Equal(t, []any{"chk-1"}, call.args)
	})
}
