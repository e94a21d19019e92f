package connection

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/conmonhq/conmon/engine/core"
	"github.com/conmonhq/conmon/engine/infra/store"
)

// FromRow decodes a connections table row. Rows may come from the
// relational or the CSV backend, so numeric cells tolerate both native
// ints and stringly values.
func FromRow(row store.Row) (*Connection, error) {
	id, err := intAt(row, "id")
	if err != nil {
		return nil, fmt.Errorf("connection row: %w", err)
	}
	typ, err := intAt(row, "type")
	if err != nil {
		return nil, fmt.Errorf("connection row: %w", err)
	}
	credentials, err := core.JSONMapFromAny(row["credentials"])
	if err != nil {
		return nil, fmt.Errorf("connection %d credentials: %w", id, err)
	}
	metadata, err := core.JSONMapFromAny(row["metadata"])
	if err != nil {
		return nil, fmt.Errorf("connection %d metadata: %w", id, err)
	}
	return &Connection{
		ID:            id,
		CustomerID:    stringAt(row, "customer_id"),
		Type:          Type(typ),
		Credentials:   credentials,
		Metadata:      metadata,
		SyncStatus:    stringAt(row, "sync_status"),
		SyncError:     stringAt(row, "sync_error"),
		SyncFrequency: stringAt(row, "sync_frequency"),
		SyncedAt:      timeAt(row, "synced_at"),
		Alias:         stringAt(row, "alias"),
		CreatedBy:     stringAt(row, "created_by"),
		UpdatedBy:     stringAt(row, "updated_by"),
		CreatedAt:     timeAt(row, "created_at"),
		UpdatedAt:     timeAt(row, "updated_at"),
		IsDeleted:     boolAt(row, "is_deleted"),
	}, nil
}

// Load reads one live connection by id.
func Load(ctx context.Context, st store.Store, id int) (*Connection, error) {
	rows, err := st.Select(ctx, "connections", store.Filter{"id": id, "is_deleted": false})
	if err != nil {
		return nil, fmt.Errorf("load connection %d: %w", id, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("connection %d not found", id)
	}
	return FromRow(rows[0])
}

// MarkSynced records a successful fetch: sync_status, synced_at, and
// the provider-side info merged into metadata.info. The connection
// itself is never created or deleted here.
func MarkSynced(ctx context.Context, st store.Store, conn *Connection, info core.JSONMap) error {
	now := time.Now().UTC()
	conn.MergeInfo(info)
	conn.SyncStatus = "success"
	conn.SyncError = ""
	conn.SyncedAt = now
	metadata, err := conn.Metadata.AsJSON()
	if err != nil {
		return fmt.Errorf("serialise connection %d metadata: %w", conn.ID, err)
	}
	values := store.Row{
		"sync_status": "success",
		"sync_error":  "",
		"synced_at":   now,
		"updated_at":  now,
		"metadata":    metadata,
	}
	if err := st.Update(ctx, "connections", store.Filter{"id": conn.ID}, values); err != nil {
		return fmt.Errorf("update connection %d: %w", conn.ID, err)
	}
	return nil
}

// MarkSyncError records a failed fetch without touching metadata.
func MarkSyncError(ctx context.Context, st store.Store, conn *Connection, syncErr error) error {
	now := time.Now().UTC()
	conn.SyncStatus = "error"
	conn.SyncError = syncErr.Error()
	values := store.Row{
		"sync_status": "error",
		"sync_error":  syncErr.Error(),
		"updated_at":  now,
	}
	if err := st.Update(ctx, "connections", store.Filter{"id": conn.ID}, values); err != nil {
		return fmt.Errorf("update connection %d: %w", conn.ID, err)
	}
	return nil
}

func stringAt(row store.Row, key string) string {
	if v, ok := row[key]; ok && v != nil {
		return fmt.Sprintf("%v", v)
	}
	return ""
}

func intAt(row store.Row, key string) (int, error) {
	v, ok := row[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("missing column %q", key)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case string:
		parsed, err := strconv.Atoi(n)
		if err != nil {
			return 0, fmt.Errorf("column %q is not numeric: %w", key, err)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("column %q has unsupported type %T", key, v)
	}
}

func boolAt(row store.Row, key string) bool {
	switch v := row[key].(type) {
	case bool:
		return v
	case string:
		parsed, err := strconv.ParseBool(v)
		return err == nil && parsed
	default:
		return false
	}
}

func timeAt(row store.Row, key string) time.Time {
	switch v := row[key].(type) {
	case time.Time:
		return v
	case string:
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			return ts
		}
		if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return ts
		}
	}
	return time.Time{}
}
