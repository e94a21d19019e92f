package catalog

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/conmonhq/conmon/engine/infra/store"
)

// ControlFromRow decodes a control table row. Rows may come from the
// relational or the CSV backend, so numeric cells tolerate both native
// ints and stringly values.
func ControlFromRow(row store.Row) (*Control, error) {
	id, err := intAt(row, "id")
	if err != nil {
		return nil, fmt.Errorf("control row: %w", err)
	}
	frameworkID, _ := intAt(row, "framework_id")
	parentID, _ := intAt(row, "control_parent_id")
	orderIndex, _ := intAt(row, "order_index")
	return &Control{
		ID:              id,
		FrameworkID:     frameworkID,
		ControlParentID: parentID,
		ControlName:     stringAt(row, "control_name"),
		FamilyName:      stringAt(row, "family_name"),
		ControlLongName: stringAt(row, "control_long_name"),
		ControlText:     stringAt(row, "control_text"),
		Active:          boolAt(row, "active"),
		OrderIndex:      orderIndex,
		CreatedAt:       timeAt(row, "created_at"),
		UpdatedAt:       timeAt(row, "updated_at"),
	}, nil
}

// LoadControls reads every active control from the store.
func LoadControls(ctx context.Context, st store.Store) ([]*Control, error) {
	rows, err := st.Select(ctx, "control", store.Filter{"active": true})
	if err != nil {
		return nil, fmt.Errorf("load controls: %w", err)
	}
	controls := make([]*Control, 0, len(rows))
	for _, row := range rows {
		ctrl, err := ControlFromRow(row)
		if err != nil {
			return nil, err
		}
		controls = append(controls, ctrl)
	}
	return controls, nil
}

// LoadControl reads one control by id.
func LoadControl(ctx context.Context, st store.Store, id int) (*Control, error) {
	rows, err := st.Select(ctx, "control", store.Filter{"id": id})
	if err != nil {
		return nil, fmt.Errorf("load control %d: %w", id, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("control %d not found", id)
	}
	return ControlFromRow(rows[0])
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
	}
	return time.Time{}
}
