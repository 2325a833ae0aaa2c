package middleware

import (
	"net"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	platformauth "github.com/marmoreal/stonecms/platform/go/auth"
	platformlogging "github.com/marmoreal/stonecms/platform/go/logging"
	"github.com/marmoreal/stonecms/platform/go/requesttrace"
)

// RequestTrace populates the context with request-scoped AuditInfo so services can attribute changes.
// It runs after the JWT middleware so admin credentials are available when present.
func RequestTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger, hasLogger := platformlogging.FromContext(r.Context())
		requestID := middleware.GetReqID(r.Context())

		var audit requesttrace.AuditInfo
		if creds, ok := platformauth.UserFromContext(r.Context()); ok && creds != nil {
			var err error
			audit, err = requesttrace.FromCredentials(creds, requestID)
			if err != nil {
				if hasLogger {
					logger.Error("build audit info from credentials", zap.Error(err))
				}
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		} else {
			audit = requesttrace.Anonymous(requestID)
		}
		audit.ClientIP = ClientIP(r)

		ctx := requesttrace.IntoContext(r.Context(), audit)
		if hasLogger {
			logger = logger.With(zap.String("actor", audit.Actor()))
			ctx = platformlogging.WithLogger(ctx, logger)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIP returns the host part of RemoteAddr. chi's RealIP should run first when behind a proxy.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
