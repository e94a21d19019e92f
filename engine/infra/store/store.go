// Package store declares the backend-neutral persistence dispatcher.
// The relational and CSV adapters expose the same surface over named
// tables, so columns flow unchanged between them.
package store

import "context"

// Row is one table row keyed by column name. JSON blob columns hold
// nested maps; adapters flatten or encode them as the backend needs.
type Row = map[string]any

// Filter matches rows by column equality.
type Filter = map[string]any

// Store is the dispatcher surface both adapters implement.
type Store interface {
	Select(ctx context.Context, table string, where Filter) ([]Row, error)
	Insert(ctx context.Context, table string, row Row) error
	Update(ctx context.Context, table string, where Filter, values Row) error
	Delete(ctx context.Context, table string, where Filter) error
	// WithTx runs fn against a transactional view of the store.
	// Either every write in fn commits or none do; readers never
	// observe partial state.
	WithTx(ctx context.Context, fn func(tx Store) error) error
	Close(ctx context.Context) error
}
