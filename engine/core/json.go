package core

import (
	"encoding/json"
	"fmt"
)

// JSONMap is a free-form JSON object column (metadata, credentials,
// output_statements and friends all round-trip through it).
type JSONMap map[string]any

// AsJSON serialises the map to its stored representation.
func (m JSONMap) AsJSON() (string, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON map: %w", err)
	}
	return string(data), nil
}

// JSONMapFromAny coerces a stored column value back into a JSONMap.
// Accepts an existing map, a JSON string, or raw bytes.
func JSONMapFromAny(v any) (JSONMap, error) {
	switch t := v.(type) {
	case nil:
		return JSONMap{}, nil
	case JSONMap:
		return t, nil
	case map[string]any:
		return JSONMap(t), nil
	case []byte:
		return unmarshalJSONMap(t)
	case string:
		if t == "" {
			return JSONMap{}, nil
		}
		return unmarshalJSONMap([]byte(t))
	default:
		return nil, fmt.Errorf("cannot convert %T to JSON map", v)
	}
}

func unmarshalJSONMap(data []byte) (JSONMap, error) {
	var m JSONMap
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON map: %w", err)
	}
	return m, nil
}

// SliceFromAny coerces a stored column value into a string slice.
// Arrays are JSON-encoded within a single cell in the CSV backend,
// so a string payload is decoded rather than split.
func SliceFromAny(v any) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case []string:
		return t, nil
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, fmt.Sprintf("%v", item))
		}
		return out, nil
	case string:
		if t == "" {
			return nil, nil
		}
		var out []string
		if err := json.Unmarshal([]byte(t), &out); err != nil {
			return nil, fmt.Errorf("failed to unmarshal string slice: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to string slice", v)
	}
}
