package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/conmonhq/conmon/engine/infra/store"
)

// querier is the minimal pgx surface the adapter depends on; both
// pgxpool.Pool and pgx.Tx satisfy it.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

func (s *Store) Select(ctx context.Context, table string, where store.Filter) ([]store.Row, error) {
	return selectWith(ctx, s.pool, table, where)
}

func (s *Store) Insert(ctx context.Context, table string, row store.Row) error {
	return insertWith(ctx, s.pool, table, row)
}

func (s *Store) Update(ctx context.Context, table string, where store.Filter, values store.Row) error {
	return updateWith(ctx, s.pool, table, where, values)
}

func (s *Store) Delete(ctx context.Context, table string, where store.Filter) error {
	return deleteWith(ctx, s.pool, table, where)
}

// WithTx runs fn inside one database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Store) error) error {
	pgtx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	adapter := &txAdapter{q: pgtx}
	if err := fn(adapter); err != nil {
		if rbErr := pgtx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("postgres: rollback after %w: %v", err, rbErr)
		}
		return err
	}
	if err := pgtx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit tx: %w", err)
	}
	return nil
}

type txAdapter struct {
	q pgx.Tx
}

func (t *txAdapter) Select(ctx context.Context, table string, where store.Filter) ([]store.Row, error) {
	return selectWith(ctx, t.q, table, where)
}

func (t *txAdapter) Insert(ctx context.Context, table string, row store.Row) error {
	return insertWith(ctx, t.q, table, row)
}

func (t *txAdapter) Update(ctx context.Context, table string, where store.Filter, values store.Row) error {
	return updateWith(ctx, t.q, table, where, values)
}

func (t *txAdapter) Delete(ctx context.Context, table string, where store.Filter) error {
	return deleteWith(ctx, t.q, table, where)
}

func (t *txAdapter) WithTx(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(t)
}

func (t *txAdapter) Close(_ context.Context) error {
	return nil
}

func tableOf(name string) (store.Table, error) {
	t, ok := store.Tables[name]
	if !ok {
		return store.Table{}, fmt.Errorf("unknown table %q", name)
	}
	return t, nil
}

func selectWith(ctx context.Context, q querier, table string, where store.Filter) ([]store.Row, error) {
	t, err := tableOf(table)
	if err != nil {
		return nil, err
	}
	sb := psql.Select(t.Columns...).From(t.Name)
	if len(where) > 0 {
		sb = sb.Where(squirrel.Eq(where))
	}
	sql, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select: %w", err)
	}
	var raw []map[string]any
	if err := pgxscan.Select(ctx, q, &raw, sql, args...); err != nil {
		return nil, fmt.Errorf("querying %s: %w", table, err)
	}
	out := make([]store.Row, 0, len(raw))
	for _, rec := range raw {
		row := make(store.Row, len(rec))
		for col, v := range rec {
			row[col] = normalizeOut(v)
		}
		out = append(out, row)
	}
	return out, nil
}

func insertWith(ctx context.Context, q querier, table string, row store.Row) error {
	t, err := tableOf(table)
	if err != nil {
		return err
	}
	// id-keyed tables have no column default; mint one when the caller
	// supplied none, same as the CSV adapter.
	if _, ok := row["id"]; !ok && hasColumn(t, "id") {
		row = cloneRow(row)
		row["id"] = uuid.NewString()
	}
	cols := sortedColumns(row)
	ib := psql.Insert(table).Columns(cols...)
	args := make([]any, 0, len(cols))
	for _, col := range cols {
		args = append(args, normalizeIn(row[col]))
	}
	ib = ib.Values(args...)
	sql, sqlArgs, err := ib.ToSql()
	if err != nil {
		return fmt.Errorf("building insert: %w", err)
	}
	if _, err := q.Exec(ctx, sql, sqlArgs...); err != nil {
		return fmt.Errorf("inserting into %s: %w", table, err)
	}
	return nil
}

func updateWith(ctx context.Context, q querier, table string, where store.Filter, values store.Row) error {
	if _, err := tableOf(table); err != nil {
		return err
	}
	ub := psql.Update(table)
	for _, col := range sortedColumns(values) {
		ub = ub.Set(col, normalizeIn(values[col]))
	}
	if len(where) > 0 {
		ub = ub.Where(squirrel.Eq(where))
	}
	sql, args, err := ub.ToSql()
	if err != nil {
		return fmt.Errorf("building update: %w", err)
	}
	if _, err := q.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("updating %s: %w", table, err)
	}
	return nil
}

func deleteWith(ctx context.Context, q querier, table string, where store.Filter) error {
	if _, err := tableOf(table); err != nil {
		return err
	}
	db := psql.Delete(table)
	if len(where) > 0 {
		db = db.Where(squirrel.Eq(where))
	}
	sql, args, err := db.ToSql()
	if err != nil {
		return fmt.Errorf("building delete: %w", err)
	}
	if _, err := q.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("deleting from %s: %w", table, err)
	}
	return nil
}

func hasColumn(t store.Table, col string) bool {
	for _, c := range t.Columns {
		if c == col {
			return true
		}
	}
	return false
}

func cloneRow(row store.Row) store.Row {
	out := make(store.Row, len(row)+1)
	for k, v := range row {
		out[k] = v
	}
	return out
}

func sortedColumns(row store.Row) []string {
	cols := make([]string, 0, len(row))
	for col := range row {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}

// normalizeIn encodes nested maps and slices as JSON so blob and
// array columns land in jsonb.
func normalizeIn(v any) any {
	switch v.(type) {
	case nil, string, bool, int, int32, int64, float32, float64, time.Time, []byte:
		return v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return data
	}
}

// normalizeOut keeps the logical row shape consistent with the CSV
// backend: jsonb comes back as nested maps, numerics as Go numbers.
func normalizeOut(v any) any {
	switch t := v.(type) {
	case []byte:
		var decoded any
		if err := json.Unmarshal(t, &decoded); err == nil {
			return decoded
		}
		return string(t)
	default:
		return v
	}
}
