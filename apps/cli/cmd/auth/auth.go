package auth

import "github.com/spf13/cobra"

// Command groups token helpers for scripting against the admin API.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authentication utilities",
		Long:  "Authentication utilities (signed admin tokens, unsigned dev tokens).",
	}

	cmd.AddCommand(tokenCommand())
	cmd.AddCommand(devTokenCommand())

	return cmd
}
