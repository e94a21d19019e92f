// Package sandbox runs custom check predicates inside a restricted
// expression environment. Logic text compiles to CEL with only the
// bound inputs visible; unknown identifiers fail at compile time, and
// evaluation runs under cost and wall-clock ceilings. There is no
// file, network, or host access of any kind.
package sandbox

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/ext"
)

const (
	defaultCostLimit = uint64(1_000_000)
	defaultTimeout   = 2 * time.Second
)

// ExecutionError is a predicate that failed to compile or run:
// disallowed names, type errors, cost or deadline exceeded. It is the
// execution-failure leg of the result taxonomy, distinct from a
// predicate that ran and returned false.
type ExecutionError struct {
	Stage  string // "compile" or "eval"
	Reason string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("predicate %s error: %s", e.Stage, e.Reason)
}

// ConfigError is logic that is rejected before any execution: empty,
// whitespace-only, or consisting exclusively of comment lines.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid custom logic: %s", e.Reason)
}

// Sandbox owns a compiled CEL environment with the bound input
// variables declared. It is immutable and safe for concurrent use.
type Sandbox struct {
	env       *cel.Env
	costLimit uint64
	timeout   time.Duration
}

type Option func(*Sandbox)

func WithCostLimit(limit uint64) Option {
	return func(s *Sandbox) {
		if limit > 0 {
			s.costLimit = limit
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(s *Sandbox) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New builds the restricted environment. Only the bound inputs and
// the CEL standard library (plus string helpers) are visible.
func New(opts ...Option) (*Sandbox, error) {
	env, err := cel.NewEnv(
		cel.Variable("fetched_value", cel.DynType),
		cel.Variable("expected_value", cel.DynType),
		cel.Variable("config_value", cel.DynType),
		ext.Strings(),
		ext.Math(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build sandbox environment: %w", err)
	}
	s := &Sandbox{env: env, costLimit: defaultCostLimit, timeout: defaultTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ValidateLogic rejects logic that could never produce a result:
// empty, whitespace-only, or comment-only text.
func ValidateLogic(logic string) error {
	if len(meaningfulLines(logic)) == 0 {
		return &ConfigError{Reason: "logic is empty or contains only comments"}
	}
	return nil
}

// Run executes the predicate against the bound inputs and coerces the
// result to a boolean. Logic written as `result = <expr>` lines keeps
// the last assignment to result; assignments to any other name leave
// result unset, which evaluates to false rather than erroring.
func (s *Sandbox) Run(ctx context.Context, logic string, fetched, expected any) (bool, error) {
	if err := ValidateLogic(logic); err != nil {
		return false, err
	}
	expr, ok := extractExpression(logic)
	if !ok {
		// Assignments present but none to result.
		return false, nil
	}
	ast, iss := s.env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return false, &ExecutionError{Stage: "compile", Reason: iss.Err().Error()}
	}
	prg, err := s.env.Program(ast,
		cel.CostLimit(s.costLimit),
		cel.InterruptCheckFrequency(128),
	)
	if err != nil {
		return false, &ExecutionError{Stage: "compile", Reason: err.Error()}
	}
	evalCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	out, _, err := prg.ContextEval(evalCtx, map[string]any{
		"fetched_value":  fetched,
		"expected_value": expected,
		"config_value":   expected,
	})
	if err != nil {
		return false, &ExecutionError{Stage: "eval", Reason: err.Error()}
	}
	return coerceBool(out.Value()), nil
}

// meaningfulLines strips blank and comment lines (# and // prefixes).
func meaningfulLines(logic string) []string {
	var out []string
	for _, line := range strings.Split(logic, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "//") {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}

// extractExpression reduces logic text to a single expression. The
// second return is false when the logic assigns names but never
// assigns result.
func extractExpression(logic string) (string, bool) {
	lines := meaningfulLines(logic)
	var resultExpr string
	sawAssignment := false
	var freeLines []string
	for _, line := range lines {
		if name, rhs, ok := splitAssignment(line); ok {
			sawAssignment = true
			if name == "result" {
				resultExpr = rhs
			}
			continue
		}
		freeLines = append(freeLines, line)
	}
	if resultExpr != "" {
		return resultExpr, true
	}
	if sawAssignment {
		return "", false
	}
	return strings.Join(freeLines, "\n"), true
}

// splitAssignment matches `ident = rhs` with a single equals sign.
func splitAssignment(line string) (name, rhs string, ok bool) {
	idx := strings.Index(line, "=")
	if idx <= 0 || idx+1 >= len(line) {
		return "", "", false
	}
	// Reject ==, <=, >=, != which are comparisons, not assignments.
	if line[idx+1] == '=' || line[idx-1] == '<' || line[idx-1] == '>' || line[idx-1] == '!' {
		return "", "", false
	}
	name = strings.TrimSpace(line[:idx])
	if !isBareIdentifier(name) {
		return "", "", false
	}
	return name, strings.TrimSpace(line[idx+1:]), true
}

func isBareIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func coerceBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t != ""
	case int64:
		return t != 0
	case uint64:
		return t != 0
	case float64:
		return t != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	case nil:
		return false
	default:
		return true
	}
}
