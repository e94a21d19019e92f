package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conmonhq/conmon/engine/check"
	"github.com/conmonhq/conmon/engine/connection"
	"github.com/conmonhq/conmon/engine/connector"
	"github.com/conmonhq/conmon/engine/infra/store"
	"github.com/conmonhq/conmon/engine/resource"
	"github.com/conmonhq/conmon/engine/result"
	"github.com/conmonhq/conmon/engine/schema"
	"github.com/conmonhq/conmon/pkg/config"
	"github.com/conmonhq/conmon/pkg/logger"
)

func EvaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate stored checks against fetched resources",
		RunE:  handleEvaluateCmd,
	}
	cmd.Flags().StringSlice("fixture", nil, "Resource fixture file (repeatable, one per provider)")
	cmd.Flags().String("customer", "default", "Customer identifier for result rows")
	cmd.Flags().Int("connection-id", 0, "Connection identifier for result rows")
	cmd.Flags().String("check-id", "", "Evaluate only this check")
	_ = cmd.MarkFlagRequired("fixture")
	return cmd
}

func handleEvaluateCmd(cmd *cobra.Command, _ []string) error {
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

	fixtures, _ := cmd.Flags().GetStringSlice("fixture")
	statics, err := loadStatics(fixtures, registry)
	if err != nil {
		return err
	}
	collections := make([]*resource.Collection, 0, len(statics))
	for _, static := range statics {
		collections = append(collections, static.Collection())
	}
	checks, err := loadChecks(cmd, st)
	if err != nil {
		return err
	}
	if len(checks) == 0 {
		return fmt.Errorf("no checks to evaluate")
	}

	customer, _ := cmd.Flags().GetString("customer")
	connectionID, _ := cmd.Flags().GetInt("connection-id")
	evaluator := check.NewEvaluator(registry, sb)
	writer := result.NewWriter(st)

	var batch []result.CheckResults
	for _, c := range checks {
		var results []*check.Result
		for _, coll := range collections {
			results = append(results, evaluator.Evaluate(ctx, c, coll)...)
		}
		if len(results) == 0 {
			log.Warn("Check matched no resources", "check", c.Name, "resource_type", c.Metadata.ResourceType)
			continue
		}
		batch = append(batch, result.CheckResults{Check: c, Results: results})
	}
	if err := writer.UpsertCurrent(ctx, batch, customer, connectionID); err != nil {
		return err
	}
	if connectionID != 0 {
		if err := syncConnection(ctx, st, connectionID, statics); err != nil {
			log.Warn("Failed to update connection sync status", "connection_id", connectionID, "error", err)
		}
	}
	log.Info("Evaluation complete",
		"checks", len(batch),
		"customer", customer,
		"connection_id", connectionID,
	)
	return nil
}

func loadStatics(paths []string, registry *schema.Registry) ([]*connector.Static, error) {
	var out []*connector.Static
	for _, path := range paths {
		static, err := connector.LoadStatic(path, registry)
		if err != nil {
			return nil, err
		}
		out = append(out, static)
	}
	return out, nil
}

// syncConnection records the fetch on the connection row: matching
// provider info is merged into metadata.info and sync_status becomes
// success.
func syncConnection(ctx context.Context, st store.Store, connectionID int, statics []*connector.Static) error {
	conn, err := connection.Load(ctx, st, connectionID)
	if err != nil {
		return err
	}
	for _, static := range statics {
		if static.Provider() != conn.Type.String() {
			continue
		}
		info, _, err := static.Fetch(ctx, conn.CredentialMap())
		if err != nil {
			return connection.MarkSyncError(ctx, st, conn, err)
		}
		return connection.MarkSynced(ctx, st, conn, info.AsJSONMap())
	}
	return fmt.Errorf("no fixture matches connection type %s", conn.Type)
}

func loadChecks(cmd *cobra.Command, st store.Store) ([]*check.Check, error) {
	ctx := cmd.Context()
	filter := store.Filter{"is_deleted": false}
	if checkID, _ := cmd.Flags().GetString("check-id"); checkID != "" {
		filter["id"] = checkID
	}
	rows, err := st.Select(ctx, "checks", filter)
	if err != nil {
		return nil, fmt.Errorf("load checks: %w", err)
	}
	checks := make([]*check.Check, 0, len(rows))
	for _, row := range rows {
		c, err := check.FromRow(row)
		if err != nil {
			return nil, fmt.Errorf("decode check row: %w", err)
		}
		checks = append(checks, c)
	}
	return checks, nil
}
