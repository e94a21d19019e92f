package cli

import (
	"github.com/spf13/cobra"

	"github.com/conmonhq/conmon/engine/catalog"
	"github.com/conmonhq/conmon/engine/check"
	"github.com/conmonhq/conmon/engine/connector"
	"github.com/conmonhq/conmon/engine/generator"
	"github.com/conmonhq/conmon/engine/llm"
	"github.com/conmonhq/conmon/engine/schema"
	"github.com/conmonhq/conmon/pkg/config"
	"github.com/conmonhq/conmon/pkg/logger"
)

func GenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a check for a single control",
		RunE:  handleGenerateCmd,
	}
	cmd.Flags().Int("control-id", 0, "Control to generate a check for")
	cmd.Flags().String("fixture", "", "Sample resource fixture for validation")
	cmd.Flags().Bool("dry-run", false, "Print the generated check without persisting")
	_ = cmd.MarkFlagRequired("control-id")
	_ = cmd.MarkFlagRequired("fixture")
	return cmd
}

func handleGenerateCmd(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg := config.FromContext(ctx)
	log := logger.FromContext(ctx)

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

	fixturePath, _ := cmd.Flags().GetString("fixture")
	static, err := connector.LoadStatic(fixturePath, registry)
	if err != nil {
		return err
	}
	controlID, _ := cmd.Flags().GetInt("control-id")
	ctrl, err := catalog.LoadControl(ctx, st, controlID)
	if err != nil {
		return err
	}
	client, err := llm.NewClient(ctx, &cfg.LLM)
	if err != nil {
		return err
	}
	gen := generator.New(client, check.NewEvaluator(registry, sb), registry,
		generator.WithMaxAttempts(cfg.Generator.MaxAttempts),
		generator.WithFieldPathDepth(cfg.Generator.FieldPathDepth),
		generator.WithSamplePaths(cfg.Generator.SamplePaths),
	)
	outcome, err := gen.Generate(ctx, &generator.Request{
		Control:       ctrl,
		Provider:      static.Provider(),
		ResourceModel: static.Model(),
		Sample:        static.Collection(),
	})
	if err != nil {
		return err
	}
	if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
		log.Info("Generated check (dry run)",
			"check", outcome.Check.Name,
			"field_path", outcome.Check.Metadata.FieldPath,
			"operation", outcome.Check.Metadata.Operation.Name,
			"attempts", outcome.Attempts,
		)
		return nil
	}
	if err := generator.Persist(ctx, st, outcome.Check, ctrl.ID); err != nil {
		return err
	}
	log.Info("Check persisted",
		"check_id", outcome.Check.ID,
		"control", ctrl.ControlName,
		"attempts", outcome.Attempts,
	)
	return nil
}
