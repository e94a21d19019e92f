package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/conmonhq/conmon/engine/infra/csvstore"
	"github.com/conmonhq/conmon/engine/infra/postgres"
	"github.com/conmonhq/conmon/engine/infra/store"
	"github.com/conmonhq/conmon/engine/sandbox"
	"github.com/conmonhq/conmon/pkg/config"
	"github.com/conmonhq/conmon/pkg/logger"
)

// openStore builds the configured persistence backend. Both drivers
// satisfy the same dispatcher surface, so callers never branch.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		if cfg.Postgres.AutoMigrate {
			if err := postgres.ApplyMigrations(ctx, postgres.DSN(&cfg.Postgres)); err != nil {
				return nil, err
			}
		}
		return postgres.NewStore(ctx, &cfg.Postgres)
	case "csv":
		return csvstore.New(cfg.Store.CSVDir)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func newSandbox(cfg *config.Config) (*sandbox.Sandbox, error) {
	return sandbox.New(
		sandbox.WithCostLimit(cfg.Sandbox.CostLimit),
		sandbox.WithTimeout(cfg.Sandbox.Timeout),
	)
}

// signalContext cancels on SIGINT/SIGTERM so long runs shut down
// cleanly and the status log stays consistent.
func signalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCtx.Done()
		if ctx.Err() == nil {
			logger.FromContext(ctx).Info("Shutdown signal received, finishing in-flight work")
		}
	}()
	return sigCtx, stop
}
