package root

import (
	"github.com/spf13/cobra"
)

// rootCmd is the base command for the operator CLI. Subcommands are attached in wire.go.
var rootCmd = &cobra.Command{
	Use:           "stonecms",
	Short:         "Stone CMS operator CLI",
	Long:          "Operator utilities for the Stone CMS backend (migrations, seeding, admin accounts, tokens, slugs).",
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

// Root returns the mutable root command for wiring from subpackages.
func Root() *cobra.Command {
	return rootCmd
}
