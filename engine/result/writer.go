package result

import (
	"context"
	"fmt"
	"time"

	"github.com/conmonhq/conmon/engine/check"
	"github.com/conmonhq/conmon/engine/infra/store"
	"github.com/conmonhq/conmon/pkg/logger"
)

const (
	tableCurrent = "con_mon_results"
	tableHistory = "con_mon_results_history"
)

// CheckResults pairs a check with its per-resource results for one
// upsert call.
type CheckResults struct {
	Check   *check.Check
	Results []*check.Result
}

// Writer persists aggregates with history. For each check key it
// archives every existing current row, then inserts exactly one new
// current row, atomically per key.
type Writer struct {
	store store.Store
}

func NewWriter(st store.Store) *Writer {
	return &Writer{store: st}
}

// UpsertCurrent applies the archive-then-insert protocol for every
// (check, results) pair. Each key commits in its own transaction: a
// crash can leave orphan history rows but never a missing current row
// where an older one existed.
func (w *Writer) UpsertCurrent(
	ctx context.Context,
	resultsPerCheck []CheckResults,
	customerID string,
	connectionID int,
) error {
	log := logger.FromContext(ctx)
	for _, cr := range resultsPerCheck {
		agg := Build(cr.Check, cr.Results, customerID, connectionID)
		if err := w.upsertOne(ctx, agg); err != nil {
			return fmt.Errorf("upsert result for check %s: %w", cr.Check.ID, err)
		}
		log.Debug("Result row upserted",
			"check_id", cr.Check.ID,
			"connection_id", connectionID,
			"result", string(agg.Result),
		)
	}
	return nil
}

func (w *Writer) upsertOne(ctx context.Context, agg *Aggregate) error {
	key := store.Filter{
		"customer_id":   agg.CustomerID,
		"connection_id": agg.ConnectionID,
		"check_id":      agg.CheckID,
	}
	return w.store.WithTx(ctx, func(tx store.Store) error {
		existing, err := tx.Select(ctx, tableCurrent, key)
		if err != nil {
			return fmt.Errorf("load current rows: %w", err)
		}
		archivedAt := time.Now().UTC()
		for _, row := range existing {
			history := make(store.Row, len(row)+1)
			for k, v := range row {
				history[k] = v
			}
			history["archived_at"] = archivedAt
			if err := tx.Insert(ctx, tableHistory, history); err != nil {
				return fmt.Errorf("archive current row: %w", err)
			}
		}
		if len(existing) > 0 {
			if err := tx.Delete(ctx, tableCurrent, key); err != nil {
				return fmt.Errorf("supersede current rows: %w", err)
			}
		}
		if err := tx.Insert(ctx, tableCurrent, agg.Row()); err != nil {
			return fmt.Errorf("insert current row: %w", err)
		}
		return nil
	})
}
