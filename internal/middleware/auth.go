// Package middleware provides the HTTP middleware chain: request ids, rate
// limiting, bearer authentication and request metrics.
package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"metricgate/internal/domain"
)

// Authenticate requires a valid bearer token and stores the caller as the
// request principal. The principal name is the email claim when present,
// otherwise the subject.
func Authenticate(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	logger = logger.With("component", "auth")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "Unauthorized", "unauthorized: provide a Bearer token")
				return
			}

			claims, err := validator.Validate(r.Context(), token)
			if err != nil {
				logger.Debug("token rejected", "request_id", domain.RequestIDFromContext(r.Context()), "error", err)
				writeError(w, http.StatusUnauthorized, "Unauthorized", "unauthorized: invalid token")
				return
			}

			name := claims.Email
			if name == "" {
				name = claims.Subject
			}
			if name == "" {
				writeError(w, http.StatusUnauthorized, "Unauthorized", "unauthorized: token has no subject")
				return
			}

			ctx := domain.WithPrincipal(r.Context(), domain.ContextPrincipal{Name: name, Type: "user"})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(auth[len(prefix):])
	return token, token != ""
}
