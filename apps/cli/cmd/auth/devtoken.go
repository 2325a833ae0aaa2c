package auth

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	platformauth "github.com/marmoreal/stonecms/platform/go/auth"
)

func devTokenCommand() *cobra.Command {
	var (
		subject   platformauth.Subject
		expiresIn time.Duration
	)

	cmd := &cobra.Command{
		Use:   "devtoken",
		Short: "Generate an unsigned JWT accepted by AUTH_PROVIDER=dev",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if subject.ID == "" {
				subject.ID = uuid.NewString()
			}

			token, err := platformauth.BuildUnsignedToken(subject, time.Now().UTC(), expiresIn)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject.ID, "user-id", "", "sub claim; random when empty")
	cmd.Flags().StringVar(&subject.Email, "email", "", "email claim")
	cmd.Flags().StringVar(&subject.Name, "name", "", "display name")
	cmd.Flags().BoolVar(&subject.IsAdmin, "admin", true, "set isAdmin")
	cmd.Flags().DurationVar(&expiresIn, "expires-in", time.Hour, "token lifetime (e.g. 30m, 2h)")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}
