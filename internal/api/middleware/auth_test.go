package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"greenloan-engine/internal/config"
	"greenloan-engine/internal/domain/applicant"
)

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func TestAuthMiddleware(t *testing.T) {
	const statusErrorMsg = "expected status %d, got %d"

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	secret := "testsecret"

	cfg := config.AuthConfig{
		Enabled:   true,
		JWTSecret: secret,
	}

	t.Run("should allow request when middleware is disabled", func(t *testing.T) {
		disabled := config.AuthConfig{Enabled: false, JWTSecret: secret}
		mw := AuthMiddleware(disabled, logger)

		nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()

		mw(nextHandler).ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf(statusErrorMsg, http.StatusOK, rec.Code)
		}
	})

	t.Run("should reject request without Authorization header", func(t *testing.T) {
		mw := AuthMiddleware(cfg, logger)

		nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("next handler should not be called")
		})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()

		mw(nextHandler).ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf(statusErrorMsg, http.StatusUnauthorized, rec.Code)
		}
	})

	t.Run("should reject request with malformed header", func(t *testing.T) {
		mw := AuthMiddleware(cfg, logger)

		nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("next handler should not be called")
		})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "NotBearer abc")
		rec := httptest.NewRecorder()

		mw(nextHandler).ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf(statusErrorMsg, http.StatusUnauthorized, rec.Code)
		}
	})

	t.Run("should reject token signed with wrong secret", func(t *testing.T) {
		mw := AuthMiddleware(cfg, logger)
		tokenString := signToken(t, "wrongsecret", jwt.MapClaims{
			"sub": float64(42),
			"exp": time.Now().Add(time.Hour).Unix(),
		})

		nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("next handler should not be called")
		})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tokenString)
		rec := httptest.NewRecorder()

		mw(nextHandler).ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf(statusErrorMsg, http.StatusUnauthorized, rec.Code)
		}
	})

	t.Run("should inject user identity from a valid token", func(t *testing.T) {
		mw := AuthMiddleware(cfg, logger)
		tokenString := signToken(t, secret, jwt.MapClaims{
			"sub":  float64(42),
			"role": "officer",
			"exp":  time.Now().Add(time.Hour).Unix(),
		})

		var gotID int64
		var gotRole applicant.Role
		nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotID, _ = UserID(r.Context())
			gotRole, _ = UserRole(r.Context())
			w.WriteHeader(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tokenString)
		rec := httptest.NewRecorder()

		mw(nextHandler).ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf(statusErrorMsg, http.StatusOK, rec.Code)
		}
		if gotID != 42 {
			t.Errorf("expected user ID 42, got %d", gotID)
		}
		if gotRole != applicant.RoleOfficer {
			t.Errorf("expected role officer, got %s", gotRole)
		}
	})

	t.Run("should default missing role to customer", func(t *testing.T) {
		mw := AuthMiddleware(cfg, logger)
		tokenString := signToken(t, secret, jwt.MapClaims{
			"sub": float64(7),
			"exp": time.Now().Add(time.Hour).Unix(),
		})

		var gotRole applicant.Role
		nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotRole, _ = UserRole(r.Context())
			w.WriteHeader(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tokenString)
		rec := httptest.NewRecorder()

		mw(nextHandler).ServeHTTP(rec, req)
		if gotRole != applicant.RoleCustomer {
			t.Errorf("expected role customer, got %s", gotRole)
		}
	})
}

func TestRequireOfficer(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	guarded := RequireOfficer(logger)(nextHandler)

	t.Run("should forbid customers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req = req.WithContext(WithUser(req.Context(), 1, applicant.RoleCustomer))
		rec := httptest.NewRecorder()

		guarded.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("expected status %d, got %d", http.StatusForbidden, rec.Code)
		}
	})

	t.Run("should forbid unauthenticated requests", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		rec := httptest.NewRecorder()

		guarded.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("expected status %d, got %d", http.StatusForbidden, rec.Code)
		}
	})

	t.Run("should allow officers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req = req.WithContext(WithUser(req.Context(), 2, applicant.RoleOfficer))
		rec := httptest.NewRecorder()

		guarded.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
	})
}
