package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	oapimiddleware "github.com/oapi-codegen/nethttp-middleware"

	platformauth "github.com/marmoreal/stonecms/platform/go/auth"
	"github.com/marmoreal/stonecms/platform/go/problem"
)

// ValidateAuthenticationViaSwagger enforces operations that declare bearerAuth. Anonymous operations
// (security: [] or none) never reach this function.
func ValidateAuthenticationViaSwagger(ctx context.Context, input *openapi3filter.AuthenticationInput) error {
	if input == nil || input.SecuritySchemeName != "bearerAuth" {
		return nil
	}

	r := input.RequestValidationInput.Request
	if r == nil {
		return errors.New("no request in validation input")
	}
	authz := r.Header.Get("Authorization")
	if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return errors.New("missing or invalid Authorization header")
	}

	creds, ok := platformauth.UserFromContext(r.Context())
	if !ok || creds == nil {
		return errors.New("missing credentials")
	}
	for _, scope := range input.Scopes {
		if scope == platformauth.RoleAdmin && !creds.IsAdmin {
			return errors.New("admin role required")
		}
	}

	return nil
}

// SpecValidator validates requests against the OpenAPI document. Failures are answered with
// problem documents instead of the validator's plain-text default.
func SpecValidator(spec *openapi3.T) func(http.Handler) http.Handler {
	return oapimiddleware.OapiRequestValidatorWithOptions(spec, &oapimiddleware.Options{
		Options: openapi3filter.Options{
			AuthenticationFunc: ValidateAuthenticationViaSwagger,
		},
		SilenceServersWarning: true,
		ErrorHandler: func(w http.ResponseWriter, message string, statusCode int) {
			title := http.StatusText(statusCode)
			problemType := problem.TypeValidation
			switch statusCode {
			case http.StatusUnauthorized, http.StatusForbidden:
				problemType = problem.TypeUnauthorized
			case http.StatusNotFound:
				problemType = problem.TypeNotFound
			}
			problem.Write(w, problem.Build(title, message, problemType, statusCode, nil))
		},
	})
}
