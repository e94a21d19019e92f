// Package orchestrator runs check generation as a resumable batch: a
// task per (control, provider, resource model), a bounded worker pool,
// and a durable status log that survives interruption.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/conmonhq/conmon/engine/catalog"
	"github.com/conmonhq/conmon/engine/generator"
	"github.com/conmonhq/conmon/engine/infra/store"
	"github.com/conmonhq/conmon/engine/resource"
	"github.com/conmonhq/conmon/pkg/logger"
)

// Mode selects which tasks a run picks up.
type Mode string

const (
	// ModeResume skips tasks whose latest status is success.
	ModeResume Mode = "resume"
	// ModeFresh ignores prior statuses and runs everything.
	ModeFresh Mode = "fresh"
	// ModeError reruns only tasks whose latest status is error.
	ModeError Mode = "error"
)

const progressEvery = 10

// Orchestrator fans generation tasks out over a worker pool and
// persists accepted checks. Samples are keyed by provider name; a task
// for a provider without a sample fails rather than generating blind.
type Orchestrator struct {
	gen        *generator.Generator
	store      store.Store
	samples    map[string]*resource.Collection
	workers    int
	captureDir string
}

type Config struct {
	Workers    int
	CaptureDir string
}

func New(gen *generator.Generator, st store.Store, samples map[string]*resource.Collection, cfg Config) *Orchestrator {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	return &Orchestrator{
		gen:        gen,
		store:      st,
		samples:    samples,
		workers:    workers,
		captureDir: cfg.CaptureDir,
	}
}

// BuildTasks crosses active controls with the provider resource models.
func BuildTasks(controls []*catalog.Control, targets map[string][]string) []Task {
	var tasks []Task
	for _, ctrl := range controls {
		if !ctrl.Active {
			continue
		}
		for provider, models := range targets {
			for _, model := range models {
				tasks = append(tasks, Task{
					ControlID:    ctrl.ID,
					ControlName:  ctrl.ControlName,
					Provider:     provider,
					ResourceType: model,
				})
			}
		}
	}
	return tasks
}

// Summary is the terminal tally of one batch run.
type Summary struct {
	Total     int
	Success   int
	Failed    int
	Skipped   int
	Cancelled bool
}

// Run executes the batch. Cancelling ctx stops scheduling new tasks;
// tasks that never ran get a terminal error row so resume sees them.
func (o *Orchestrator) Run(ctx context.Context, controls map[int]*catalog.Control, tasks []Task, log *StatusLog, mode Mode) (*Summary, error) {
	lg := logger.FromContext(ctx)
	runnable, skipped, err := o.filterTasks(tasks, log, mode)
	if err != nil {
		return nil, err
	}
	metrics := NewMetrics(len(tasks))
	for range skipped {
		metrics.RecordSkipped()
	}
	lg.Info("Batch starting",
		"tasks", len(runnable),
		"skipped", len(skipped),
		"workers", o.workers,
		"mode", string(mode),
	)
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(o.workers)
	for _, task := range runnable {
		group.Go(func() error {
			o.runTask(gctx, controls, task, log, metrics)
			return nil
		})
	}
	// Worker failures terminate through the status log, not the group.
	_ = group.Wait()
	snap := metrics.Snapshot()
	summary := &Summary{
		Total:     snap.Total,
		Success:   snap.Success,
		Failed:    snap.Failed,
		Skipped:   snap.Skipped,
		Cancelled: ctx.Err() != nil,
	}
	lg.Info("Batch finished",
		"success", summary.Success,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"elapsed", snap.Elapsed.Round(time.Second),
		"cancelled", summary.Cancelled,
	)
	return summary, nil
}

// filterTasks applies the run mode against the log's latest-row view.
func (o *Orchestrator) filterTasks(tasks []Task, log *StatusLog, mode Mode) (runnable, skipped []Task, err error) {
	if mode == ModeFresh {
		return tasks, nil, nil
	}
	statuses, err := log.CurrentStatuses()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load task statuses: %w", err)
	}
	for _, task := range tasks {
		current, seen := statuses[task.Key()]
		switch mode {
		case ModeError:
			if seen && current.Status == StatusError {
				runnable = append(runnable, task)
			} else {
				skipped = append(skipped, task)
			}
		default:
			if seen && current.Status == StatusSuccess {
				skipped = append(skipped, task)
			} else {
				runnable = append(runnable, task)
			}
		}
	}
	return runnable, skipped, nil
}

func (o *Orchestrator) runTask(ctx context.Context, controls map[int]*catalog.Control, task Task, log *StatusLog, metrics *Metrics) {
	lg := logger.FromContext(ctx)
	if ctx.Err() != nil {
		o.recordError(ctx, task, log, metrics, 0, "run cancelled before task started")
		return
	}
	if aErr := log.Append(StatusRow{
		ControlID: task.ControlID, ControlName: task.ControlName,
		Provider: task.Provider, ResourceType: task.ResourceType,
		Status: StatusRunning,
	}); aErr != nil {
		lg.Error("Failed to append running status", "task", task.Key(), "error", aErr)
	}
	ctrl, ok := controls[task.ControlID]
	if !ok {
		o.recordError(ctx, task, log, metrics, 0, fmt.Sprintf("unknown control id %d", task.ControlID))
		return
	}
	sample, ok := o.samples[task.Provider]
	if !ok {
		o.recordError(ctx, task, log, metrics, 0, fmt.Sprintf("no sample resources for provider %q", task.Provider))
		return
	}
	var capture generator.CaptureSink = generator.NopCapture{}
	if o.captureDir != "" {
		capture = newFileCapture(o.captureDir, task)
	}
	outcome, genErr := o.gen.Generate(ctx, &generator.Request{
		Control:       ctrl,
		Provider:      task.Provider,
		ResourceModel: task.ResourceType,
		Sample:        sample,
		Capture:       capture,
	})
	attempts := 0
	if outcome != nil {
		attempts = outcome.Attempts
	}
	if genErr != nil {
		if o.captureDir != "" && !errors.Is(genErr, context.Canceled) {
			var results = outcomeResults(outcome)
			if cErr := writeErrorCapture(o.captureDir, task, genErr, results, attempts); cErr != nil {
				lg.Warn("Failed to write error capture", "task", task.Key(), "error", cErr)
			}
		}
		o.recordError(ctx, task, log, metrics, attempts, genErr.Error())
		return
	}
	if pErr := generator.Persist(ctx, o.store, outcome.Check, task.ControlID); pErr != nil {
		o.recordError(ctx, task, log, metrics, attempts, fmt.Sprintf("persist failed: %v", pErr))
		return
	}
	if aErr := log.Append(StatusRow{
		ControlID: task.ControlID, ControlName: task.ControlName,
		Provider: task.Provider, ResourceType: task.ResourceType,
		Status: StatusSuccess, CheckID: outcome.Check.ID, Attempts: attempts,
	}); aErr != nil {
		lg.Error("Failed to append success status", "task", task.Key(), "error", aErr)
	}
	metrics.RecordSuccess()
	o.logProgress(ctx, metrics)
}

func (o *Orchestrator) recordError(ctx context.Context, task Task, log *StatusLog, metrics *Metrics, attempts int, msg string) {
	lg := logger.FromContext(ctx)
	if aErr := log.Append(StatusRow{
		ControlID: task.ControlID, ControlName: task.ControlName,
		Provider: task.Provider, ResourceType: task.ResourceType,
		Status: StatusError, ErrorMessage: msg, Attempts: attempts,
	}); aErr != nil {
		lg.Error("Failed to append error status", "task", task.Key(), "error", aErr)
	}
	lg.Warn("Task failed", "task", task.Key(), "error", msg)
	metrics.RecordError()
	o.logProgress(ctx, metrics)
}

func (o *Orchestrator) logProgress(ctx context.Context, metrics *Metrics) {
	snap := metrics.Snapshot()
	if snap.Completed == 0 || snap.Completed%progressEvery != 0 {
		return
	}
	logger.FromContext(ctx).Info("Batch progress",
		"completed", snap.Completed,
		"remaining", snap.Remaining,
		"per_minute", fmt.Sprintf("%.1f", snap.PerMinute),
		"eta", snap.ETA.Round(time.Second),
	)
}

// ResetStatusLog removes the log so the next open starts fresh.
func ResetStatusLog(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to reset status log: %w", err)
	}
	return nil
}
