// Package cliutil holds flag and connection helpers shared by CLI subcommands.
package cliutil

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	platformlogging "github.com/marmoreal/stonecms/platform/go/logging"
	"github.com/marmoreal/stonecms/platform/go/persistence"
)

// DatabaseURLFlag registers --database-url, defaulting to $DATABASE_URL.
func DatabaseURLFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVar(target, "database-url", os.Getenv("DATABASE_URL"), "Postgres connection URL (defaults to $DATABASE_URL)")
}

// RequireDatabaseURL reports a usage error when no URL was given.
func RequireDatabaseURL(databaseURL string) error {
	if databaseURL == "" {
		return errors.New("--database-url or DATABASE_URL is required")
	}
	return nil
}

// OpenPool connects to Postgres. Callers close the pool with persistence.ClosePool.
func OpenPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	if err := RequireDatabaseURL(databaseURL); err != nil {
		return nil, err
	}
	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: databaseURL, MaxConns: 2})
	if err != nil {
		return nil, fmt.Errorf("init pool: %w", err)
	}
	return pool, nil
}

// Logger writes console-format logs to the command's stderr.
func Logger(cmd *cobra.Command) *zap.Logger {
	logger, err := platformlogging.NewLogger(platformlogging.Config{
		Component: "cms-cli",
		Level:     "info",
		Format:    "console",
		Output:    cmd.ErrOrStderr(),
	})
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
