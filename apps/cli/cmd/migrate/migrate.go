package migrate

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmoreal/stonecms/apps/cli/cmd/cliutil"
	"github.com/marmoreal/stonecms/database"
)

// Command groups schema migration helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or revert the embedded database migrations",
	}

	cmd.AddCommand(directionCommand(database.Up, "Apply all pending migrations"))
	cmd.AddCommand(directionCommand(database.Down, "Revert all migrations"))
	cmd.AddCommand(versionCommand())
	return cmd
}

func directionCommand(direction database.Direction, short string) *cobra.Command {
	var databaseURL string

	cmd := &cobra.Command{
		Use:   string(direction),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cliutil.RequireDatabaseURL(databaseURL); err != nil {
				return err
			}
			if err := database.Migrate(databaseURL, direction); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrations %s: done\n", direction)
			return nil
		},
	}
	cliutil.DatabaseURLFlag(cmd, &databaseURL)
	return cmd
}

func versionCommand() *cobra.Command {
	var databaseURL string

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the applied migration version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cliutil.RequireDatabaseURL(databaseURL); err != nil {
				return err
			}
			version, dirty, err := database.Version(databaseURL)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%t\n", version, dirty)
			return nil
		},
	}
	cliutil.DatabaseURLFlag(cmd, &databaseURL)
	return cmd
}
