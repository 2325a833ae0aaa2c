package seed

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/marmoreal/stonecms/apps/cli/cmd/cliutil"
	"github.com/marmoreal/stonecms/database"
	collectionsrepo "github.com/marmoreal/stonecms/domains/collections/be/repo"
	collectionsservice "github.com/marmoreal/stonecms/domains/collections/be/service"
	settingsrepo "github.com/marmoreal/stonecms/domains/settings/be/repo"
	settingsservice "github.com/marmoreal/stonecms/domains/settings/be/service"
	"github.com/marmoreal/stonecms/platform/go/persistence"
	"github.com/marmoreal/stonecms/platform/go/requesttrace"
)

// Command seeds the default collections and site settings. Existing content is left alone.
func Command() *cobra.Command {
	var databaseURL string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create default collections and settings when absent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			logger := cliutil.Logger(cmd)
			defer func() { _ = logger.Sync() }()

			pool, err := cliutil.OpenPool(ctx, databaseURL)
			if err != nil {
				return err
			}
			defer persistence.ClosePool(pool)

			defaults, err := database.LoadDefaults()
			if err != nil {
				return err
			}
			settingsJSON, err := defaults.SettingsJSON()
			if err != nil {
				return err
			}

			collectionStore, err := persistence.NewCollectionStore(ctx, pool)
			if err != nil {
				return fmt.Errorf("init collection store: %w", err)
			}
			settingsStore, err := persistence.NewSettingsStore(ctx, pool, persistence.NewDocumentValidator())
			if err != nil {
				return fmt.Errorf("init settings store: %w", err)
			}

			collections := collectionsservice.New(collectionsrepo.NewPostgresRepository(collectionStore), collectionsservice.Config{Defaults: defaults.Collections})
			settings := settingsservice.New(settingsrepo.NewPostgresRepository(settingsStore), settingsservice.Config{Defaults: settingsJSON, Logger: logger})

			audit := requesttrace.System("cli-seed")
			live, err := collections.List(ctx, audit, false)
			if err != nil {
				return fmt.Errorf("seed collections: %w", err)
			}
			if _, err := settings.Get(ctx, audit); err != nil {
				return fmt.Errorf("seed settings: %w", err)
			}

			logger.Info("seed complete", zap.Int("collections", len(live)))
			fmt.Fprintf(cmd.OutOrStdout(), "collections: %d live\nsettings: present\n", len(live))
			return nil
		},
	}
	cliutil.DatabaseURLFlag(cmd, &databaseURL)
	return cmd
}
