package compare

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/conmonhq/conmon/engine/sandbox"
)

// Operator wire values must match stored check metadata exactly; they
// are persisted as-is and never as internal symbols.
type Operator string

const (
	OpEqual        Operator = "=="
	OpNotEqual     Operator = "!="
	OpLess         Operator = "<"
	OpGreater      Operator = ">"
	OpLessEqual    Operator = "<="
	OpGreaterEqual Operator = ">="
	OpContains     Operator = "contains"
	OpNotContains  Operator = "not_contains"
	OpCustom       Operator = "custom"
)

var operators = map[Operator]bool{
	OpEqual: true, OpNotEqual: true,
	OpLess: true, OpGreater: true,
	OpLessEqual: true, OpGreaterEqual: true,
	OpContains: true, OpNotContains: true,
	OpCustom: true,
}

// ParseOperator validates a stored operator wire value.
func ParseOperator(s string) (Operator, error) {
	op := Operator(strings.TrimSpace(s))
	if !operators[op] {
		return "", fmt.Errorf("unknown comparison operator %q", s)
	}
	return op, nil
}

// Operators lists every wire value in declaration order, for prompt
// construction and validation messages.
func Operators() []Operator {
	return []Operator{
		OpEqual, OpNotEqual, OpLess, OpGreater,
		OpLessEqual, OpGreaterEqual, OpContains, OpNotContains, OpCustom,
	}
}

// ComparisonError is an operator applied to incompatible types.
type ComparisonError struct {
	Op     Operator
	Reason string
}

func (e *ComparisonError) Error() string {
	return fmt.Sprintf("comparison %q failed: %s", e.Op, e.Reason)
}

// Operation is the executable view of check metadata: an operator
// plus, for custom operations, the predicate source text.
type Operation struct {
	Name  Operator `json:"name"`
	Logic string   `json:"logic,omitempty"`
}

// Func is a materialised binary comparison.
type Func func(ctx context.Context, fetched, expected any) (bool, error)

// Materialize validates the operation and binds it to an executable
// function. Custom operations with empty or comment-only logic are
// rejected here, before any evaluation happens.
func (op *Operation) Materialize(sb *sandbox.Sandbox) (Func, error) {
	name, err := ParseOperator(string(op.Name))
	if err != nil {
		return nil, err
	}
	if name == OpCustom {
		if err := sandbox.ValidateLogic(op.Logic); err != nil {
			return nil, err
		}
		logic := op.Logic
		return func(ctx context.Context, fetched, expected any) (bool, error) {
			return sb.Run(ctx, logic, fetched, expected)
		}, nil
	}
	return func(_ context.Context, fetched, expected any) (bool, error) {
		return apply(name, fetched, expected)
	}, nil
}

func apply(op Operator, fetched, expected any) (bool, error) {
	switch op {
	case OpEqual:
		return looseEqual(fetched, expected), nil
	case OpNotEqual:
		return !looseEqual(fetched, expected), nil
	case OpLess, OpGreater, OpLessEqual, OpGreaterEqual:
		return ordered(op, fetched, expected)
	case OpContains:
		return contains(fetched, expected), nil
	case OpNotContains:
		// A non-container fetched value yields true: absence by default.
		return !contains(fetched, expected), nil
	default:
		return false, fmt.Errorf("unknown comparison operator %q", op)
	}
}

// looseEqual compares with numeric coercion so 1 == 1.0 and values
// decoded from JSON or YAML compare naturally.
func looseEqual(a, b any) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
		return false
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if reflect.DeepEqual(a, b) {
		return true
	}
	// String views of the same scalar (true vs "true") compare equal.
	as, aIsScalar := scalarString(a)
	bs, bIsScalar := scalarString(b)
	return aIsScalar && bIsScalar && as == bs
}

func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case bool:
		return fmt.Sprintf("%v", t), true
	default:
		return "", false
	}
}

func ordered(op Operator, fetched, expected any) (bool, error) {
	if ff, fok := toFloat(fetched); fok {
		ef, eok := toFloat(expected)
		if !eok {
			return false, &ComparisonError{Op: op, Reason: fmt.Sprintf("cannot order %T against %T", fetched, expected)}
		}
		return orderFloat(op, ff, ef), nil
	}
	fs, fok := fetched.(string)
	es, eok := expected.(string)
	if fok && eok {
		return orderString(op, fs, es), nil
	}
	return false, &ComparisonError{Op: op, Reason: fmt.Sprintf("cannot order %T against %T", fetched, expected)}
}

func orderFloat(op Operator, a, b float64) bool {
	switch op {
	case OpLess:
		return a < b
	case OpGreater:
		return a > b
	case OpLessEqual:
		return a <= b
	default:
		return a >= b
	}
}

func orderString(op Operator, a, b string) bool {
	switch op {
	case OpLess:
		return a < b
	case OpGreater:
		return a > b
	case OpLessEqual:
		return a <= b
	default:
		return a >= b
	}
}

// contains is true iff expected is in fetched for values with a
// containment relation (string, array, map keys); false otherwise.
// It never raises.
func contains(fetched, expected any) bool {
	switch f := fetched.(type) {
	case string:
		return strings.Contains(f, fmt.Sprintf("%v", expected))
	case map[string]any:
		key, ok := expected.(string)
		if !ok {
			return false
		}
		_, present := f[key]
		return present
	}
	items, ok := asSlice(fetched)
	if !ok {
		return false
	}
	for _, item := range items {
		if looseEqual(item, expected) {
			return true
		}
	}
	return false
}

func asSlice(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	if items, ok := v.([]any); ok {
		return items, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint64:
		return float64(t), true
	case float32:
		return float64(t), true
	case float64:
		return t, true
	}
	return 0, false
}
