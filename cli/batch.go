package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conmonhq/conmon/engine/catalog"
	"github.com/conmonhq/conmon/engine/check"
	"github.com/conmonhq/conmon/engine/connector"
	"github.com/conmonhq/conmon/engine/generator"
	"github.com/conmonhq/conmon/engine/llm"
	"github.com/conmonhq/conmon/engine/orchestrator"
	"github.com/conmonhq/conmon/engine/resource"
	"github.com/conmonhq/conmon/engine/schema"
	"github.com/conmonhq/conmon/pkg/config"
	"github.com/conmonhq/conmon/pkg/logger"
)

func BatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Generate checks for every control across providers",
		RunE:  handleBatchCmd,
	}
	cmd.Flags().StringSlice("fixture", nil, "Sample resource fixture (repeatable, one per provider)")
	cmd.Flags().Bool("fresh", false, "Ignore prior progress and rerun every task")
	cmd.Flags().Bool("error", false, "Rerun only tasks that previously errored")
	cmd.Flags().Int("workers", 0, "Worker pool size (default from config)")
	_ = cmd.MarkFlagRequired("fixture")
	return cmd
}

func handleBatchCmd(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg := config.FromContext(ctx)
	log := logger.FromContext(ctx)

	mode, err := batchMode(cmd)
	if err != nil {
		return err
	}
	registry, err := schema.LoadEmbedded(ctx)
	if err != nil {
		return err
	}
	sb, err := newSandbox(cfg)
	if err != nil {
		return err
	}
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close(ctx)

	fixtures, _ := cmd.Flags().GetStringSlice("fixture")
	samples := make(map[string]*resource.Collection, len(fixtures))
	targets := make(map[string][]string, len(fixtures))
	for _, path := range fixtures {
		static, err := connector.LoadStatic(path, registry)
		if err != nil {
			return err
		}
		samples[static.Provider()] = static.Collection()
		targets[static.Provider()] = append(targets[static.Provider()], static.Model())
	}

	controls, err := catalog.LoadControls(ctx, st)
	if err != nil {
		return err
	}
	if len(controls) == 0 {
		return fmt.Errorf("no active controls found; import a framework first")
	}
	byID := make(map[int]*catalog.Control, len(controls))
	for _, ctrl := range controls {
		byID[ctrl.ID] = ctrl
	}
	tasks := orchestrator.BuildTasks(controls, targets)

	client, err := llm.NewClient(ctx, &cfg.LLM)
	if err != nil {
		return err
	}
	gen := generator.New(client, check.NewEvaluator(registry, sb), registry,
		generator.WithMaxAttempts(cfg.Generator.MaxAttempts),
		generator.WithFieldPathDepth(cfg.Generator.FieldPathDepth),
		generator.WithSamplePaths(cfg.Generator.SamplePaths),
	)

	if mode == orchestrator.ModeFresh {
		if err := orchestrator.ResetStatusLog(cfg.Orchestrator.StatusLogPath); err != nil {
			return err
		}
	}
	statusLog, err := orchestrator.OpenStatusLog(cfg.Orchestrator.StatusLogPath)
	if err != nil {
		return err
	}
	defer statusLog.Close()

	workers, _ := cmd.Flags().GetInt("workers")
	if workers <= 0 {
		workers = cfg.Orchestrator.Workers
	}
	orch := orchestrator.New(gen, st, samples, orchestrator.Config{
		Workers:    workers,
		CaptureDir: cfg.Orchestrator.CaptureDir,
	})

	runCtx, stop := signalContext(ctx)
	defer stop()
	summary, err := orch.Run(runCtx, byID, tasks, statusLog, mode)
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		log.Warn("Batch completed with failures; rerun with --error to retry",
			"failed", summary.Failed)
	}
	return nil
}

func batchMode(cmd *cobra.Command) (orchestrator.Mode, error) {
	fresh, _ := cmd.Flags().GetBool("fresh")
	errOnly, _ := cmd.Flags().GetBool("error")
	if fresh && errOnly {
		return "", fmt.Errorf("--fresh and --error are mutually exclusive")
	}
	switch {
	case fresh:
		return orchestrator.ModeFresh, nil
	case errOnly:
		return orchestrator.ModeError, nil
	default:
		return orchestrator.ModeResume, nil
	}
}
