// Package generator produces checks from controls with an LLM and a
// self-improvement loop: generate, evaluate against a representative
// sample, feed failures back into the prompt, retry up to a bounded
// attempt count, persist only checks that execute cleanly.
package generator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/conmonhq/conmon/engine/catalog"
	"github.com/conmonhq/conmon/engine/check"
	"github.com/conmonhq/conmon/engine/infra/store"
	"github.com/conmonhq/conmon/engine/llm"
	"github.com/conmonhq/conmon/engine/resource"
	"github.com/conmonhq/conmon/engine/schema"
	"github.com/conmonhq/conmon/pkg/logger"
)

const (
	// DefaultMaxAttempts bounds retries after the initial attempt.
	DefaultMaxAttempts = 2
	maxSamplePaths     = 40
	maxFeedbackErrors  = 5
)

// CaptureSink receives the exact prompt and response of every
// attempt for post-hoc analysis. Implementations must tolerate being
// called from concurrent workers.
type CaptureSink interface {
	Capture(ctx context.Context, attempt int, prompt, response string) error
}

// NopCapture discards captures.
type NopCapture struct{}

func (NopCapture) Capture(context.Context, int, string, string) error { return nil }

// Request identifies one generation task.
type Request struct {
	Control           *catalog.Control
	Provider          string
	ResourceModel     string
	SuggestedSeverity string
	SuggestedCategory string
	Sample            *resource.Collection
	Capture           CaptureSink
}

// Outcome is the terminal result of one generation task.
type Outcome struct {
	Check      *check.Check
	Results    []*check.Result
	AllResults []*check.Result
	Attempts   int
}

// Generator drives the LLM loop. It is safe for concurrent use; all
// mutable state lives per call.
type Generator struct {
	client         llm.Client
	evaluator      *check.Evaluator
	registry       *schema.Registry
	maxAttempts    int
	fieldPathDepth int
	samplePaths    int
}

type Option func(*Generator)

func WithMaxAttempts(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxAttempts = n
		}
	}
}

func WithFieldPathDepth(d int) Option {
	return func(g *Generator) {
		if d > 0 {
			g.fieldPathDepth = d
		}
	}
}

func WithSamplePaths(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.samplePaths = n
		}
	}
}

func New(client llm.Client, evaluator *check.Evaluator, registry *schema.Registry, opts ...Option) *Generator {
	g := &Generator{
		client:         client,
		evaluator:      evaluator,
		registry:       registry,
		maxAttempts:    DefaultMaxAttempts,
		fieldPathDepth: schema.DefaultFieldPathDepth,
		samplePaths:    maxSamplePaths,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate runs the self-improvement loop until the check evaluates
// cleanly or attempts are exhausted. A check is rejected when its
// sample evaluation is invalid: zero results, or execution failure on
// every resource.
func (g *Generator) Generate(ctx context.Context, req *Request) (*Outcome, error) {
	log := logger.FromContext(ctx)
	model, err := g.resolveModel(req)
	if err != nil {
		return nil, err
	}
	capture := req.Capture
	if capture == nil {
		capture = NopCapture{}
	}
	severity, category := g.defaults(req)
	var allResults []*check.Result
	var attemptPaths []string
	outcome := &Outcome{}
	for attempt := 0; attempt <= g.maxAttempts; attempt++ {
		outcome.Attempts = attempt + 1
		feedback := ""
		if attempt > 0 {
			feedback = buildFeedback(allResults, attemptPaths)
		}
		prompt := buildPrompt(&promptInput{
			Control:        req.Control,
			Provider:       req.Provider,
			Model:          model,
			Severity:       severity,
			Category:       category,
			SamplePaths:    g.pathSample(model),
			FieldPathDepth: g.fieldPathDepth,
			Feedback:       feedback,
		})
		resp, err := g.client.Generate(ctx, &llm.Request{Prompt: prompt})
		if err != nil {
			return outcome, fmt.Errorf("llm request failed on attempt %d: %w", attempt+1, err)
		}
		if cErr := capture.Capture(ctx, attempt+1, prompt, resp.Content); cErr != nil {
			log.Warn("Failed to capture generation attempt", "attempt", attempt+1, "error", cErr)
		}
		c, err := parseResponse(resp.Content)
		if err != nil {
			log.Warn("Generated check rejected",
				"control", req.Control.ControlName,
				"attempt", attempt+1,
				"error", err,
			)
			attemptPaths = append(attemptPaths, "(unparseable response)")
			continue
		}
		results := g.evaluator.Evaluate(ctx, c, req.Sample)
		allResults = append(allResults, results...)
		attemptPaths = append(attemptPaths, c.Metadata.FieldPath)
		outcome.Check = c
		outcome.Results = results
		outcome.AllResults = allResults
		if !check.Invalid(results) {
			log.Info("Check generated",
				"control", req.Control.ControlName,
				"check", c.Name,
				"attempts", attempt+1,
			)
			return outcome, nil
		}
		log.Debug("Check invalid on sample, retrying",
			"control", req.Control.ControlName,
			"attempt", attempt+1,
			"field_path", c.Metadata.FieldPath,
		)
	}
	outcome.AllResults = allResults
	return outcome, fmt.Errorf(
		"no valid check produced for control %s after %d attempts",
		req.Control.ControlName, outcome.Attempts,
	)
}

func (g *Generator) resolveModel(req *Request) (*schema.Model, error) {
	provider, ok := g.registry.Provider(req.Provider)
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", req.Provider)
	}
	model, ok := provider.Resources[req.ResourceModel]
	if !ok {
		return nil, fmt.Errorf("unknown resource model %q for provider %q", req.ResourceModel, req.Provider)
	}
	return model, nil
}

func (g *Generator) defaults(req *Request) (severity, category string) {
	severity, category = catalog.FamilyDefaults(req.Control.Family())
	if req.SuggestedSeverity != "" {
		severity = req.SuggestedSeverity
	}
	if req.SuggestedCategory != "" {
		category = req.SuggestedCategory
	}
	return severity, category
}

func (g *Generator) pathSample(model *schema.Model) []string {
	paths := model.FieldPaths(g.fieldPathDepth)
	if len(paths) > g.samplePaths {
		paths = paths[:g.samplePaths]
	}
	return paths
}

// buildFeedback summarises prior failures: the field paths already
// tried, distinct error strings, and per-resource outcomes, with
// explicit guidance to avoid the failed paths.
func buildFeedback(results []*check.Result, attemptPaths []string) string {
	var b strings.Builder
	b.WriteString("Earlier attempts did not produce a usable check.\n")
	if len(attemptPaths) > 0 {
		b.WriteString("Field paths already tried (avoid these):\n")
		for _, p := range dedupe(attemptPaths) {
			fmt.Fprintf(&b, "  - %s\n", p)
		}
	}
	errs := dedupe(collectErrors(results))
	if len(errs) > maxFeedbackErrors {
		errs = errs[:maxFeedbackErrors]
	}
	if len(errs) > 0 {
		b.WriteString("Observed errors:\n")
		for _, e := range errs {
			fmt.Fprintf(&b, "  - %s\n", e)
		}
	}
	for _, r := range results {
		if r.Resource == nil {
			continue
		}
		fmt.Fprintf(&b, "Resource %s: %s\n", r.Resource.ID, r.Message)
	}
	b.WriteString("Pick a field path from the list that exists on the schema.\n")
	return b.String()
}

func collectErrors(results []*check.Result) []string {
	var out []string
	for _, r := range results {
		if r.Error != "" {
			out = append(out, r.Error)
		}
	}
	return out
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// Persist writes the accepted check and its control mapping in one
// transaction.
func Persist(ctx context.Context, st store.Store, c *check.Check, controlID int) error {
	row, err := c.Row()
	if err != nil {
		return fmt.Errorf("serialise check: %w", err)
	}
	now := time.Now().UTC()
	return st.WithTx(ctx, func(tx store.Store) error {
		if err := tx.Insert(ctx, "checks", row); err != nil {
			return fmt.Errorf("insert check: %w", err)
		}
		mapping := store.Row{
			"control_id": controlID,
			"check_id":   c.ID,
			"created_at": now,
			"updated_at": now,
			"is_deleted": false,
		}
		if err := tx.Insert(ctx, "control_checks_mapping", mapping); err != nil {
			return fmt.Errorf("insert control mapping: %w", err)
		}
		return nil
	})
}
