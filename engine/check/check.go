package check

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/conmonhq/conmon/engine/compare"
	"github.com/conmonhq/conmon/engine/core"
	"github.com/conmonhq/conmon/engine/sandbox"
)

// OutputStatements are the human-readable roll-up messages attached
// to the aggregate result.
type OutputStatements struct {
	Success string `json:"success"`
	Failure string `json:"failure"`
	Partial string `json:"partial"`
}

// FixDetails describe remediation. Only descriptions are stored;
// remediation execution is out of scope.
type FixDetails struct {
	Description         string   `json:"description"`
	Instructions        []string `json:"instructions"`
	EstimatedTime       string   `json:"estimated_time"`
	AutomationAvailable bool     `json:"automation_available"`
}

// Metadata binds the check to a compiled resource type and carries
// its executable sub-artifacts: the field-path extractor, the
// comparison operation, and the expected value.
type Metadata struct {
	ResourceType  string            `json:"resource_type"`
	FieldPath     string            `json:"field_path"`
	Operation     compare.Operation `json:"operation"`
	ExpectedValue any               `json:"expected_value"`
	Tags          []string          `json:"tags,omitempty"`
	Severity      string            `json:"severity,omitempty"`
	Category      string            `json:"category,omitempty"`
}

// Check is a declarative compliance rule pairing a field path and a
// predicate over a typed resource.
type Check struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	Description      string           `json:"description"`
	Category         string           `json:"category"`
	CreatedBy        string           `json:"created_by"`
	UpdatedBy        string           `json:"updated_by"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
	IsDeleted        bool             `json:"is_deleted"`
	OutputStatements OutputStatements `json:"output_statements"`
	FixDetails       FixDetails       `json:"fix_details"`
	Metadata         Metadata         `json:"metadata"`

	compareOnce sync.Once
	compareFn   compare.Func
	compareErr  error
}

// Validate enforces the structural invariants: custom operations need
// non-trivial logic, every other operation needs an expected value.
func (c *Check) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("check name is required")
	}
	if strings.TrimSpace(c.Metadata.ResourceType) == "" {
		return fmt.Errorf("check %q: resource_type is required", c.Name)
	}
	if strings.TrimSpace(c.Metadata.FieldPath) == "" {
		return fmt.Errorf("check %q: field_path is required", c.Name)
	}
	op, err := compare.ParseOperator(string(c.Metadata.Operation.Name))
	if err != nil {
		return fmt.Errorf("check %q: %w", c.Name, err)
	}
	if op == compare.OpCustom {
		if err := sandbox.ValidateLogic(c.Metadata.Operation.Logic); err != nil {
			return fmt.Errorf("check %q: %w", c.Name, err)
		}
		return nil
	}
	if c.Metadata.ExpectedValue == nil {
		return fmt.Errorf("check %q: expected_value is required for operator %q", c.Name, op)
	}
	return nil
}

// ComparisonOperation materialises the executable comparison from
// metadata, memoised per check instance.
func (c *Check) ComparisonOperation(sb *sandbox.Sandbox) (compare.Func, error) {
	c.compareOnce.Do(func() {
		c.compareFn, c.compareErr = c.Metadata.Operation.Materialize(sb)
	})
	return c.compareFn, c.compareErr
}

// FromRow builds a Check from a stored row. The JSON blob columns
// (output_statements, fix_details, metadata) arrive either as nested
// maps (relational backend) or JSON strings (CSV backend); both parse
// to the same typed sub-records.
func FromRow(row map[string]any) (*Check, error) {
	c := &Check{
		ID:          stringAt(row, "id"),
		Name:        stringAt(row, "name"),
		Description: stringAt(row, "description"),
		Category:    stringAt(row, "category"),
		CreatedBy:   stringAt(row, "created_by"),
		UpdatedBy:   stringAt(row, "updated_by"),
		IsDeleted:   boolAt(row, "is_deleted"),
		CreatedAt:   timeAt(row, "created_at"),
		UpdatedAt:   timeAt(row, "updated_at"),
	}
	if err := decodeBlob(row["output_statements"], &c.OutputStatements); err != nil {
		return nil, fmt.Errorf("check row %q: output_statements: %w", c.ID, err)
	}
	if err := decodeBlob(row["fix_details"], &c.FixDetails); err != nil {
		return nil, fmt.Errorf("check row %q: fix_details: %w", c.ID, err)
	}
	if err := decodeBlob(row["metadata"], &c.Metadata); err != nil {
		return nil, fmt.Errorf("check row %q: metadata: %w", c.ID, err)
	}
	return c, nil
}

// Row serialises the check to its stored shape. Blob columns keep
// their nested form; adapters flatten or encode as their backend
// requires.
func (c *Check) Row() (map[string]any, error) {
	blobs := map[string]any{}
	for name, v := range map[string]any{
		"output_statements": c.OutputStatements,
		"fix_details":       c.FixDetails,
		"metadata":          c.Metadata,
	} {
		m, err := toJSONMap(v)
		if err != nil {
			return nil, fmt.Errorf("check %q: %s: %w", c.Name, name, err)
		}
		blobs[name] = m
	}
	return map[string]any{
		"id":                c.ID,
		"name":              c.Name,
		"description":       c.Description,
		"category":          c.Category,
		"created_by":        c.CreatedBy,
		"updated_by":        c.UpdatedBy,
		"created_at":        c.CreatedAt,
		"updated_at":        c.UpdatedAt,
		"is_deleted":        c.IsDeleted,
		"output_statements": blobs["output_statements"],
		"fix_details":       blobs["fix_details"],
		"metadata":          blobs["metadata"],
	}, nil
}

func toJSONMap(v any) (core.JSONMap, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m core.JSONMap
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func decodeBlob(v any, target any) error {
	var data []byte
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		if strings.TrimSpace(t) == "" {
			return nil
		}
		data = []byte(t)
	case []byte:
		data = t
	default:
		var err error
		data, err = json.Marshal(t)
		if err != nil {
			return err
		}
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to decode blob: %w", err)
	}
	return nil
}

func stringAt(row map[string]any, key string) string {
	if v, ok := row[key]; ok && v != nil {
		return fmt.Sprintf("%v", v)
	}
	return ""
}

func boolAt(row map[string]any, key string) bool {
	switch t := row[key].(type) {
	case bool:
		return t
	case string:
		return t == "true" || t == "1"
	}
	return false
}

func timeAt(row map[string]any, key string) time.Time {
	switch t := row[key].(type) {
	case time.Time:
		return t
	case string:
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed
		}
	}
	return time.Time{}
}
