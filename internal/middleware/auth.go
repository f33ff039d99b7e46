package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"streampass/internal/api/v1/response"
	"streampass/internal/model"
	"streampass/internal/service"

	"github.com/rs/zerolog"
)

// Injected key type to avoid context collisions
type contextKey string

const UserContextKey = contextKey("user")

// Authenticator resolves a bearer token to an active user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.User, error)
}

func AuthMiddleware(auth Authenticator, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Debug().Msg("Authorization header missing")
				response.Error(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
				logger.Debug().Msg("Invalid authorization header")
				response.Error(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			user, err := auth.Authenticate(r.Context(), parts[1])
			switch {
			case err == nil:
			case errors.Is(err, service.ErrInvalidToken),
				errors.Is(err, service.ErrUserNotFound),
				errors.Is(err, service.ErrUserInactive):
				logger.Debug().Err(err).Msg("Rejected bearer token")
				response.Error(w, http.StatusUnauthorized, "Unauthorized")
				return
			default:
				logger.Error().Err(err).Str("path", r.URL.Path).Msg("Failed to authenticate request")
				response.Error(w, http.StatusInternalServerError, "Unexpected error, check server logs")
				return
			}
			ctx := context.WithValue(r.Context(), UserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext returns the user stored by AuthMiddleware.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(UserContextKey).(*model.User)
	return u, ok && u != nil
}
