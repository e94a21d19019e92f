package fieldpath

import (
	"fmt"
	"reflect"
	"strings"
	"unicode/utf8"
)

// MissingFieldError reports a field access that failed, carrying the
// portion of the path consumed up to the failure.
type MissingFieldError struct {
	Path   string
	Reason string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing field at %q: %s", e.Path, e.Reason)
}

// AggregateError reports an aggregate function that is undefined for
// its input (max/min over an empty or non-numeric list).
type AggregateError struct {
	Func   string
	Reason string
}

func (e *AggregateError) Error() string {
	return fmt.Sprintf("%s: %s", e.Func, e.Reason)
}

// Eval extracts the value selected by expr from v. The engine is
// pure: it performs no I/O and holds no state between calls.
func Eval(v any, expr string) (any, error) {
	p, err := Parse(expr)
	if err != nil {
		return nil, err
	}
	return p.Eval(v)
}

// Eval applies the parsed path to a value which is a record view
// (map), an array, or a scalar at the leaves.
func (p *Path) Eval(v any) (any, error) {
	inner, err := evalSegments(v, p.Segments, nil)
	if err != nil {
		return nil, err
	}
	if p.Func == "" {
		return inner, nil
	}
	return applyFunc(p.Func, inner)
}

func evalSegments(v any, segs []Segment, consumed []string) (any, error) {
	if len(segs) == 0 {
		return v, nil
	}
	seg := segs[0]
	rest := segs[1:]
	if seg.Wildcard {
		return evalWildcard(v, seg, rest, consumed)
	}
	child, err := access(v, seg.Name, consumed)
	if err != nil {
		return nil, err
	}
	return evalSegments(child, rest, append(consumed, seg.Name))
}

// evalWildcard applies the suffix path to each element of an array,
// keeping successful results in order. Deeper wildcard levels flatten
// one array dimension each.
func evalWildcard(v any, seg Segment, rest []Segment, consumed []string) (any, error) {
	target := v
	if seg.Name != "" {
		child, err := access(v, seg.Name, consumed)
		if err != nil {
			return nil, err
		}
		target = child
		consumed = append(consumed, seg.Name+"[*]")
	} else {
		consumed = append(consumed, "*")
	}
	items, ok := asSlice(target)
	if !ok {
		return nil, &MissingFieldError{
			Path:   strings.Join(consumed, "."),
			Reason: fmt.Sprintf("expected array, got %T", target),
		}
	}
	restFlattens := containsWildcard(rest)
	out := make([]any, 0, len(items))
	for _, item := range items {
		res, err := evalSegments(item, rest, consumed)
		if err != nil {
			continue // unsuccessful elements are dropped
		}
		if restFlattens {
			if inner, ok := asSlice(res); ok {
				out = append(out, inner...)
				continue
			}
		}
		out = append(out, res)
	}
	return out, nil
}

func containsWildcard(segs []Segment) bool {
	for _, s := range segs {
		if s.Wildcard {
			return true
		}
	}
	return false
}

// access resolves a plain identifier: field access on a record view
// with mapping-key access as the fallback.
func access(v any, name string, consumed []string) (any, error) {
	fullPath := strings.Join(append(consumed, name), ".")
	switch m := v.(type) {
	case map[string]any:
		if val, ok := m[name]; ok {
			return val, nil
		}
	case map[string]string:
		if val, ok := m[name]; ok {
			return val, nil
		}
	case interface{ Value() map[string]any }:
		if val, ok := m.Value()[name]; ok {
			return val, nil
		}
	default:
		return nil, &MissingFieldError{
			Path:   fullPath,
			Reason: fmt.Sprintf("cannot access field on %T", v),
		}
	}
	return nil, &MissingFieldError{Path: fullPath, Reason: "field not found"}
}

func applyFunc(fn string, x any) (any, error) {
	switch fn {
	case FuncLen:
		return lengthOf(x), nil
	case FuncAny:
		items := dropNil(coerceList(x))
		for _, item := range items {
			if truthy(item) {
				return true, nil
			}
		}
		return false, nil
	case FuncAll:
		items := dropNil(coerceList(x))
		for _, item := range items {
			if !truthy(item) {
				return false, nil
			}
		}
		return true, nil
	case FuncCount:
		n := 0
		for _, item := range dropNil(coerceList(x)) {
			if truthy(item) {
				n++
			}
		}
		return n, nil
	case FuncSum:
		total := 0.0
		for _, item := range dropNil(coerceList(x)) {
			if f, ok := toFloat(item); ok {
				total += f
			}
		}
		return total, nil
	case FuncMax, FuncMin:
		return extremum(fn, dropNil(coerceList(x)))
	default:
		return nil, fmt.Errorf("unknown path function %q", fn)
	}
}

func extremum(fn string, items []any) (any, error) {
	var best float64
	found := false
	for _, item := range items {
		f, ok := toFloat(item)
		if !ok {
			return nil, &AggregateError{Func: fn, Reason: fmt.Sprintf("non-numeric element %T", item)}
		}
		if !found {
			best = f
			found = true
			continue
		}
		if (fn == FuncMax && f > best) || (fn == FuncMin && f < best) {
			best = f
		}
	}
	if !found {
		return nil, &AggregateError{Func: fn, Reason: "empty input"}
	}
	return best, nil
}

// lengthOf never raises: sized values report their size, strings
// their character length, nil and unsized values report 0.
func lengthOf(x any) int {
	switch t := x.(type) {
	case nil:
		return 0
	case string:
		return utf8.RuneCountInString(t)
	case map[string]any:
		return len(t)
	}
	if items, ok := asSlice(x); ok {
		return len(items)
	}
	return 0
}

func coerceList(x any) []any {
	if x == nil {
		return nil
	}
	if items, ok := asSlice(x); ok {
		return items
	}
	return []any{x}
}

func dropNil(items []any) []any {
	out := make([]any, 0, len(items))
	for _, item := range items {
		if item != nil {
			out = append(out, item)
		}
	}
	return out
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

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case map[string]any:
		return len(t) > 0
	}
	if f, ok := toFloat(v); ok {
		return f != 0
	}
	if items, ok := asSlice(v); ok {
		return len(items) > 0
	}
	return true
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
