package csvstore

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/conmonhq/conmon/engine/infra/store"
)

// encodeRow projects a logical row onto the flat CSV column list.
// Blob columns are dotted-flattened; arrays and free-typed values are
// JSON-encoded within their single cell.
func encodeRow(t store.Table, row store.Row) []string {
	flat := t.FlatColumns()
	out := make([]string, len(flat))
	for i, col := range flat {
		out[i] = encodeCell(lookupPath(row, col), t.Typed[col])
	}
	return out
}

// lookupPath resolves a dotted flat column against the nested row.
func lookupPath(row store.Row, col string) any {
	parts := strings.Split(col, ".")
	var cur any = map[string]any(row)
	for _, part := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = m[part]
		if !ok {
			return nil
		}
	}
	return cur
}

func encodeCell(v any, typed bool) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		if typed {
			data, _ := json.Marshal(t)
			return string(data)
		}
		return t
	case time.Time:
		if t.IsZero() {
			return ""
		}
		return t.UTC().Format(time.RFC3339)
	case bool, int, int32, int64, float32, float64:
		return fmt.Sprintf("%v", t)
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(data)
	}
}

// decodeRow reconstructs the nested logical row from one CSV record,
// so callers are agnostic to the backend.
func decodeRow(t store.Table, header []string, record []string) store.Row {
	row := store.Row{}
	for i, col := range header {
		if i >= len(record) {
			break
		}
		setPath(row, col, decodeCell(record[i], t.Typed[col]))
	}
	return row
}

func setPath(row store.Row, col string, v any) {
	parts := strings.Split(col, ".")
	cur := map[string]any(row)
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[part] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = v
}

func decodeCell(cell string, typed bool) any {
	if cell == "" {
		return nil
	}
	if !typed {
		return cell
	}
	var v any
	if err := json.Unmarshal([]byte(cell), &v); err != nil {
		return cell
	}
	return v
}
