package auth

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmoreal/stonecms/apps/cli/cmd/cliutil"
	adminsrepo "github.com/marmoreal/stonecms/domains/admins/be/repo"
	adminsservice "github.com/marmoreal/stonecms/domains/admins/be/service"
	platformauth "github.com/marmoreal/stonecms/platform/go/auth"
	"github.com/marmoreal/stonecms/platform/go/persistence"
	"github.com/marmoreal/stonecms/platform/go/requesttrace"
)

func tokenCommand() *cobra.Command {
	var (
		databaseURL string
		email       string
		secret      string
		issuer      string
		ttl         time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a signed session token for an existing admin",
		Long:  "Mint an HS256 session token for an existing admin without a password. Uses the same secret as the API (JWT_SECRET).",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			tokens, err := platformauth.NewTokenIssuer(platformauth.TokenConfig{
				Secret: []byte(secret),
				Issuer: issuer,
				TTL:    ttl,
			})
			if err != nil {
				return err
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

			svc := adminsservice.New(adminsrepo.NewPostgresRepository(store), adminsservice.Config{Issuer: tokens, Logger: logger})
			session, err := svc.IssueFor(ctx, requesttrace.System("cli-auth-token"), email)
			if err != nil {
				return fmt.Errorf("issue token for %s: %w", email, err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), session.Token)
			return nil
		},
	}

	cliutil.DatabaseURLFlag(cmd, &databaseURL)
	cmd.Flags().StringVar(&email, "email", "", "admin email")
	cmd.Flags().StringVar(&secret, "secret", os.Getenv("JWT_SECRET"), "HMAC secret (defaults to $JWT_SECRET)")
	cmd.Flags().StringVar(&issuer, "issuer", envOr("JWT_ISSUER", "stonecms"), "iss claim; must match the API")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime (e.g. 30m, 2h)")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
