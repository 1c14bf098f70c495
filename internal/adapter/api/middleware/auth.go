package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/V4T54L/trailwatch/internal/pkg/token"
)

type contextKey string

const emailKey contextKey = "email"

// TokenValidator checks a bearer token and returns its claims.
type TokenValidator interface {
	Validate(tokenString string) (*token.Claims, error)
}

// Auth is a middleware factory that returns a new authentication middleware.
// It expects "Authorization: Bearer <token>" and stores the token's email in
// the request context.
func Auth(tokens TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r.Header.Get("Authorization"))
			if raw == "" {
				logger.Warn("Token missing from request", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
				writeMessage(w, http.StatusUnauthorized, "Token is missing")
				return
			}

			claims, err := tokens.Validate(raw)
			if err != nil {
				logger.Warn("Invalid token provided", "remote_addr", r.RemoteAddr, "error", err)
				writeMessage(w, http.StatusUnauthorized, "Token is invalid or expired")
				return
			}

			ctx := context.WithValue(r.Context(), emailKey, claims.Email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserEmail returns the authenticated email stored by Auth.
func UserEmail(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(emailKey).(string)
	return email, ok && email != ""
}

// WithUserEmail returns a copy of ctx carrying email, as Auth would.
func WithUserEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, emailKey, email)
}

func bearerToken(header string) string {
	scheme, value, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(value)
}
