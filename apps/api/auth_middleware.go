package main

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	adminsservice "github.com/marmoreal/stonecms/domains/admins/be/service"
	platformauth "github.com/marmoreal/stonecms/platform/go/auth"
)

// buildAuth selects the token verifier for AUTH_PROVIDER. The returned issuer is nil when
// sessions are minted elsewhere, which disables password sign-in.
func buildAuth(ctx context.Context, cfg config, logger *zap.Logger) (func(http.Handler) http.Handler, adminsservice.Issuer, error) {
	var (
		verify platformauth.VerifyFunc
		issuer adminsservice.Issuer
	)

	switch cfg.AuthProvider {
	case "local":
		tokens, err := platformauth.NewTokenIssuer(platformauth.TokenConfig{
			Secret: []byte(cfg.JWTSecret),
			Issuer: cfg.JWTIssuer,
			TTL:    cfg.JWTTTL,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("init token issuer: %w", err)
		}
		verify = tokens.Verifier()
		issuer = tokens
	case "firebase":
		client, err := platformauth.InitFirebaseAuth(ctx, cfg.FirebaseCredentialsFile)
		if err != nil {
			return nil, nil, err
		}
		verify = platformauth.FirebaseTokenVerifier(client)
	case "dev":
		logger.Warn("using dev auth middleware; do not use in production")
		verify = platformauth.UnsignedTokenVerifier()
	default:
		return nil, nil, fmt.Errorf("unsupported auth provider %q (use local, firebase or dev)", cfg.AuthProvider)
	}

	return platformauth.JWT(verify, platformauth.DefaultCredentialExtractor), issuer, nil
}
