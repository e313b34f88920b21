package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/airobot/server/internal/apperr"
	"github.com/airobot/server/internal/auth"
	"github.com/airobot/server/internal/http/respond"
	"github.com/airobot/server/internal/model"
	"github.com/airobot/server/internal/repo"
)

type contextKey string

const (
	userKey   contextKey = "user"
	userIDKey contextKey = "user_id"
)

// AuthMiddleware validates the bearer JWT, loads the user and attaches it to
// the request context. Disabled accounts are rejected.
func AuthMiddleware(jwtService *auth.JWTService, userRepo repo.UserRepo) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respond.Error(w, apperr.Unauthorized("missing authorization header"))
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				respond.Error(w, apperr.Unauthorized("invalid authorization header format"))
				return
			}

			tokenString := strings.TrimSpace(parts[1])
			if tokenString == "" {
				respond.Error(w, apperr.Unauthorized("missing token"))
				return
			}

			claims, err := jwtService.VerifyToken(tokenString)
			if err != nil {
				respond.Error(w, apperr.Unauthorized("invalid or expired token"))
				return
			}

			user, err := userRepo.GetByID(r.Context(), claims.UserID)
			if err != nil {
				if errors.Is(err, repo.ErrNotFound) {
					respond.Error(w, apperr.Unauthorized("user not found"))
					return
				}
				respond.Error(w, apperr.Internal("failed to load user", err))
				return
			}
			if !user.Active() {
				respond.Error(w, apperr.Forbidden("account is disabled"))
				return
			}

			ctx := context.WithValue(r.Context(), userKey, &user)
			ctx = context.WithValue(ctx, userIDKey, user.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects authenticated users whose role is not one of roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := GetUser(r.Context())
			if !ok {
				respond.Error(w, apperr.Unauthorized("authentication required"))
				return
			}
			for _, role := range roles {
				if user.RoleName() == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			respond.Error(w, apperr.Forbidden("insufficient permissions"))
		})
	}
}

// GetUser returns the user attached to the request context (set by AuthMiddleware)
func GetUser(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userKey).(*model.User)
	return u, ok
}

// GetUserID extracts user ID from context
func GetUserID(ctx context.Context) (uint, bool) {
	userID, ok := ctx.Value(userIDKey).(uint)
	return userID, ok
}

// WithUser attaches u to ctx as AuthMiddleware does.
func WithUser(ctx context.Context, u *model.User) context.Context {
	ctx = context.WithValue(ctx, userKey, u)
	return context.WithValue(ctx, userIDKey, u.ID)
}
