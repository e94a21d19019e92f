// Package csvstore is the table-file adapter: one CSV file per table
// under a directory, presenting the same dispatcher surface as the
// relational adapter. Writes serialise through an advisory lock file
// and commit via temp-file rename, so readers never observe partial
// state.
package csvstore

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/conmonhq/conmon/engine/infra/store"
)

type Store struct {
	dir  string
	mu   sync.Mutex
	lock *flock.Flock
}

func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create csv store dir: %w", err)
	}
	return &Store{
		dir:  dir,
		lock: flock.New(filepath.Join(dir, ".conmon.lock")),
	}, nil
}

func (s *Store) Close(_ context.Context) error {
	return nil
}

func (s *Store) Select(_ context.Context, table string, where store.Filter) ([]store.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.load(table)
	if err != nil {
		return nil, err
	}
	return filterRows(rows, where), nil
}

func (s *Store) Insert(ctx context.Context, table string, row store.Row) error {
	return s.WithTx(ctx, func(tx store.Store) error {
		return tx.Insert(ctx, table, row)
	})
}

func (s *Store) Update(ctx context.Context, table string, where store.Filter, values store.Row) error {
	return s.WithTx(ctx, func(tx store.Store) error {
		return tx.Update(ctx, table, where, values)
	})
}

func (s *Store) Delete(ctx context.Context, table string, where store.Filter) error {
	return s.WithTx(ctx, func(tx store.Store) error {
		return tx.Delete(ctx, table, where)
	})
}

// WithTx stages writes in memory and commits every dirty table via
// rename at the end, under both the process mutex and the advisory
// file lock.
func (s *Store) WithTx(_ context.Context, fn func(tx store.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire csv store lock: %w", err)
	}
	defer s.lock.Unlock() //nolint:errcheck
	tx := &txStore{parent: s, staged: map[string][]store.Row{}, dirty: map[string]bool{}}
	if err := fn(tx); err != nil {
		return err
	}
	for table := range tx.dirty {
		if err := s.save(table, tx.staged[table]); err != nil {
			return err
		}
	}
	return nil
}

// txStore is the transactional view handed to WithTx callbacks.
type txStore struct {
	parent *Store
	staged map[string][]store.Row
	dirty  map[string]bool
}

func (t *txStore) table(name string) ([]store.Row, error) {
	if rows, ok := t.staged[name]; ok {
		return rows, nil
	}
	rows, err := t.parent.load(name)
	if err != nil {
		return nil, err
	}
	t.staged[name] = rows
	return rows, nil
}

func (t *txStore) Select(_ context.Context, table string, where store.Filter) ([]store.Row, error) {
	rows, err := t.table(table)
	if err != nil {
		return nil, err
	}
	return filterRows(rows, where), nil
}

func (t *txStore) Insert(_ context.Context, table string, row store.Row) error {
	rows, err := t.table(table)
	if err != nil {
		return err
	}
	row = cloneRow(row)
	if _, ok := row["id"]; !ok && hasColumn(table, "id") {
		row["id"] = uuid.NewString()
	}
	t.staged[table] = append(rows, row)
	t.dirty[table] = true
	return nil
}

func (t *txStore) Update(_ context.Context, table string, where store.Filter, values store.Row) error {
	rows, err := t.table(table)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if matches(row, where) {
			for k, v := range values {
				row[k] = v
			}
		}
	}
	t.dirty[table] = true
	return nil
}

func (t *txStore) Delete(_ context.Context, table string, where store.Filter) error {
	rows, err := t.table(table)
	if err != nil {
		return err
	}
	kept := rows[:0]
	for _, row := range rows {
		if !matches(row, where) {
			kept = append(kept, row)
		}
	}
	t.staged[table] = kept
	t.dirty[table] = true
	return nil
}

func (t *txStore) WithTx(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(t)
}

func (t *txStore) Close(_ context.Context) error {
	return nil
}

func (s *Store) path(table string) string {
	return filepath.Join(s.dir, table+".csv")
}

func (s *Store) load(table string) ([]store.Row, error) {
	t, ok := store.Tables[table]
	if !ok {
		return nil, fmt.Errorf("unknown table %q", table)
	}
	f, err := os.Open(s.path(table))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open table %s: %w", table, err)
	}
	defer f.Close()
	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read table %s: %w", table, err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	header := records[0]
	rows := make([]store.Row, 0, len(records)-1)
	for _, record := range records[1:] {
		rows = append(rows, decodeRow(t, header, record))
	}
	return rows, nil
}

// save writes the whole table to a temp file and renames it into
// place; partial writes are never visible.
func (s *Store) save(table string, rows []store.Row) error {
	t, ok := store.Tables[table]
	if !ok {
		return fmt.Errorf("unknown table %q", table)
	}
	tmp, err := os.CreateTemp(s.dir, table+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp table file: %w", err)
	}
	tmpName := tmp.Name()
	writer := csv.NewWriter(tmp)
	if err := writer.Write(t.FlatColumns()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write header for %s: %w", table, err)
	}
	for _, row := range rows {
		if err := writer.Write(encodeRow(t, row)); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return fmt.Errorf("failed to write row for %s: %w", table, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to flush table %s: %w", table, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync table %s: %w", table, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close table %s: %w", table, err)
	}
	if err := os.Rename(tmpName, s.path(table)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to commit table %s: %w", table, err)
	}
	return nil
}

func hasColumn(table, col string) bool {
	t, ok := store.Tables[table]
	if !ok {
		return false
	}
	for _, c := range t.Columns {
		if c == col {
			return true
		}
	}
	return false
}

func filterRows(rows []store.Row, where store.Filter) []store.Row {
	if len(where) == 0 {
		out := make([]store.Row, len(rows))
		copy(out, rows)
		return out
	}
	var out []store.Row
	for _, row := range rows {
		if matches(row, where) {
			out = append(out, row)
		}
	}
	return out
}

// matches compares loosely on the string view so numeric columns
// round-tripped through CSV still match their typed filters.
func matches(row store.Row, where store.Filter) bool {
	for k, want := range where {
		got, ok := row[k]
		if !ok {
			return false
		}
		if fmt.Sprintf("%v", got) != fmt.Sprintf("%v", want) {
			return false
		}
	}
	return true
}

func cloneRow(row store.Row) store.Row {
	out := make(store.Row, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}
