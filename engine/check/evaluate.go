package check

import (
	"context"
	"errors"
	"fmt"

	"github.com/conmonhq/conmon/engine/fieldpath"
	"github.com/conmonhq/conmon/engine/resource"
	"github.com/conmonhq/conmon/engine/sandbox"
	"github.com/conmonhq/conmon/engine/schema"
)

// Result is the per-resource outcome of one check evaluation.
// Passed is three-valued: true/false are logical outcomes, nil is an
// execution failure (the predicate could not produce an outcome).
// Execution failures are excluded from success and failure counts by
// aggregation and drive the generator invalidity rule.
type Result struct {
	Passed   *bool              `json:"passed"`
	Check    *Check             `json:"-"`
	Resource *resource.Resource `json:"-"`
	Message  string             `json:"message"`
	Error    string             `json:"error,omitempty"`
}

// ExecutionFailed reports whether the evaluation produced no usable
// logical outcome for this resource.
func (r *Result) ExecutionFailed() bool {
	return r.Passed == nil
}

// Errored reports whether the result carries an error of any kind:
// execution failures, field extraction failures, comparison type
// errors. Errored results still count as logical failures where they
// have one, but they disqualify a candidate check.
func (r *Result) Errored() bool {
	return r.ExecutionFailed() || r.Error != ""
}

// Invalid implements the generator acceptance rule: a result list is
// invalid iff it is empty or no result produced a clean logical
// outcome. A check that runs cleanly and fails is valid; a check that
// cannot be evaluated on anything is not.
func Invalid(results []*Result) bool {
	if len(results) == 0 {
		return true
	}
	for _, r := range results {
		if !r.Errored() {
			return false
		}
	}
	return true
}

// Evaluator runs checks against resource collections. It is stateless
// beyond its immutable collaborators and safe for concurrent use; a
// single check evaluates its resources sequentially so aggregate
// results are reproducible.
type Evaluator struct {
	registry *schema.Registry
	sandbox  *sandbox.Sandbox
}

func NewEvaluator(registry *schema.Registry, sb *sandbox.Sandbox) *Evaluator {
	return &Evaluator{registry: registry, sandbox: sb}
}

// Evaluate runs the check over every matching resource in the
// collection. Unknown resource types yield zero results, not an
// error; per-resource failures are encoded in the results and never
// propagate as errors. Invalid check configuration (empty or
// uncompilable custom logic) surfaces as passed = nil on every
// result rather than as a distinct rejection.
func (e *Evaluator) Evaluate(ctx context.Context, c *Check, coll *resource.Collection) []*Result {
	model, ok := e.registry.Lookup(c.Metadata.ResourceType)
	if !ok {
		return nil
	}
	selected := coll.OfType(model.FullName())
	if len(selected) == 0 {
		return nil
	}
	results := make([]*Result, 0, len(selected))
	for _, res := range selected {
		results = append(results, e.evaluateOne(ctx, c, res))
	}
	return results
}

func (e *Evaluator) evaluateOne(ctx context.Context, c *Check, res *resource.Resource) *Result {
	fetched, err := fieldpath.Eval(res.Value(), c.Metadata.FieldPath)
	if err != nil {
		return &Result{
			Passed:   boolPtr(false),
			Check:    c,
			Resource: res,
			Message:  fmt.Sprintf("Check %s failed due to missing field", c.Name),
			Error:    fmt.Sprintf("Field extraction failed: %v", err),
		}
	}
	fn, err := c.ComparisonOperation(e.sandbox)
	if err != nil {
		// Materialisation failure: no usable outcome for any resource.
		return &Result{
			Check:    c,
			Resource: res,
			Message:  fmt.Sprintf("Check %s could not execute", c.Name),
			Error:    err.Error(),
		}
	}
	passed, err := fn(ctx, fetched, c.Metadata.ExpectedValue)
	if err != nil {
		var execErr *sandbox.ExecutionError
		if errors.As(err, &execErr) {
			return &Result{
				Check:    c,
				Resource: res,
				Message:  fmt.Sprintf("Check %s could not execute", c.Name),
				Error:    err.Error(),
			}
		}
		return &Result{
			Passed:   boolPtr(false),
			Check:    c,
			Resource: res,
			Message:  fmt.Sprintf("Check %s failed due to comparison error", c.Name),
			Error:    err.Error(),
		}
	}
	verdict := "failed"
	if passed {
		verdict = "passed"
	}
	return &Result{
		Passed:   boolPtr(passed),
		Check:    c,
		Resource: res,
		Message: fmt.Sprintf(
			"Check %s %s. Expected: %v, Actual: %v",
			c.Name, verdict, c.Metadata.ExpectedValue, fetched,
		),
	}
}

func boolPtr(b bool) *bool {
	return &b
}
