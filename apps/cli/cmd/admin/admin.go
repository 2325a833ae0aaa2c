package admin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marmoreal/stonecms/apps/cli/cmd/cliutil"
	adminsrepo "github.com/marmoreal/stonecms/domains/admins/be/repo"
	adminsservice "github.com/marmoreal/stonecms/domains/admins/be/service"
	"github.com/marmoreal/stonecms/platform/go/persistence"
	"github.com/marmoreal/stonecms/platform/go/requesttrace"
)

// Command groups admin account management.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage admin accounts",
	}
	cmd.AddCommand(createCommand())
	return cmd
}

func createCommand() *cobra.Command {
	var (
		databaseURL string
		email       string
		name        string
		password    string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an admin account",
		Long:  "Create an admin account. The password may be passed with --password or STONECMS_ADMIN_PASSWORD.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if password == "" {
				password = os.Getenv("STONECMS_ADMIN_PASSWORD")
			}

			pool, err := cliutil.OpenPool(ctx, databaseURL)
			if err != nil {
				return err
			}
			defer persistence.ClosePool(pool)

			store, err := persistence.NewAdminStore(ctx, pool)
			if err != nil {
				return fmt.Errorf("init admin store: %w", err)
			}

			logger := cliutil.Logger(cmd)
			defer func() { _ = logger.Sync() }()

			svc := adminsservice.New(adminsrepo.NewPostgresRepository(store), adminsservice.Config{Logger: logger})
			created, err := svc.Create(ctx, requesttrace.System("cli-admin-create"), adminsservice.CreateInput{
				Email:    email,
				Name:     name,
				Password: password,
			})
			if err != nil {
				return describe(err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (%s)\n", created.Email, created.ID)
			return nil
		},
	}

	cliutil.DatabaseURLFlag(cmd, &databaseURL)
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&password, "password", "", "initial password (min 10 characters)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

// describe flattens service errors into one line for the terminal.
func describe(err error) error {
	var validationErr *adminsservice.ValidationError
	if errors.As(err, &validationErr) {
		fields := make([]string, 0, len(validationErr.Fields))
		for field, messages := range validationErr.Fields {
			fields = append(fields, field+": "+strings.Join(messages, ", "))
		}
		sort.Strings(fields)
		return fmt.Errorf("invalid admin: %s", strings.Join(fields, "; "))
	}
	if errors.Is(err, adminsservice.ErrConflict) {
		return errors.New("an admin with this email already exists")
	}
	return err
}
