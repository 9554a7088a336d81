package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"greenloan-engine/internal/config"
	"greenloan-engine/internal/domain/applicant"
)

type contextKey string

const (
	userIDKey   contextKey = "authUserID"
	userRoleKey contextKey = "authUserRole"
)

// UserID returns the authenticated user's ID from the request context.
func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok
}

// UserRole returns the authenticated user's role from the request context.
func UserRole(ctx context.Context) (applicant.Role, bool) {
	role, ok := ctx.Value(userRoleKey).(applicant.Role)
	return role, ok
}

// WithUser injects identity into a context; used by tests and internal
// callers that bypass the HTTP layer.
func WithUser(ctx context.Context, userID int64, role applicant.Role) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, userRoleKey, role)
}

func AuthMiddleware(cfg config.AuthConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, role, ok := validateJWT(r, cfg.JWTSecret, logger)
			if !ok {
				http.Error(w, `{"error":{"message":"Unauthorized"}}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), userID, role)))
		})
	}
}

// RequireOfficer rejects requests whose authenticated role is not an
// officer role. Must run after AuthMiddleware.
func RequireOfficer(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := UserRole(r.Context())
			if !ok || !role.IsOfficer() {
				logger.Warn("RequireOfficer: access denied", "role", role)
				http.Error(w, `{"error":{"message":"Forbidden"}}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func validateJWT(r *http.Request, secret string, logger *slog.Logger) (int64, applicant.Role, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		logger.Warn("AuthMiddleware: Missing Authorization header")
		return 0, "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		logger.Warn("AuthMiddleware: Invalid Authorization header format")
		return 0, "", false
	}
	tokenString := parts[1]

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			logger.Warn("AuthMiddleware: Unexpected signing method")
			return nil, http.ErrAbortHandler
		}
		return []byte(secret), nil
	})

	if err != nil || !token.Valid {
		logger.Warn("AuthMiddleware: Invalid token", "error", err)
		return 0, "", false
	}

	sub, ok := claims["sub"].(float64)
	if !ok {
		logger.Warn("AuthMiddleware: Token missing numeric sub claim")
		return 0, "", false
	}
	roleStr, _ := claims["role"].(string)
	if roleStr == "" {
		roleStr = string(applicant.RoleCustomer)
	}

	return int64(sub), applicant.Role(roleStr), true
}
