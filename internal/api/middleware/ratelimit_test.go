package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"greenloan-engine/internal/config"
)

func TestRateLimiterMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	cfg := config.RateLimitConfig{
		Enabled: true,
		RPS:     1,
		Burst:   2,
	}

	t.Run("allows requests under the rate limit", func(t *testing.T) {
		rl := NewRateLimiterMiddleware(cfg, nil, logger)
		nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		handler := rl.Middleware(nextHandler)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "127.0.0.1:12345"
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
	})

	t.Run("rejects requests over the burst", func(t *testing.T) {
		rl := NewRateLimiterMiddleware(cfg, nil, logger)
		nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		handler := rl.Middleware(nextHandler)

		var lastCode int
		for i := 0; i < cfg.Burst+1; i++ {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "10.0.0.1:4000"
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			lastCode = rec.Code
		}

		if lastCode != http.StatusTooManyRequests {
			t.Errorf("expected status %d after burst, got %d", http.StatusTooManyRequests, lastCode)
		}
	})

	t.Run("returns a JSON error body when limited", func(t *testing.T) {
		rl := NewRateLimiterMiddleware(config.RateLimitConfig{Enabled: true, RPS: 0, Burst: 0}, nil, logger)
		handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.2:4000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("expected status %d, got %d", http.StatusTooManyRequests, rec.Code)
		}
		var body map[string]map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("expected JSON body, got %q", rec.Body.String())
		}
		if body["error"]["message"] != "Rate limit exceeded" {
			t.Errorf("unexpected error message: %q", body["error"]["message"])
		}
	})

	t.Run("passes through when disabled", func(t *testing.T) {
		rl := NewRateLimiterMiddleware(config.RateLimitConfig{Enabled: false}, nil, logger)
		handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		for i := 0; i < 10; i++ {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "10.0.0.3:4000"
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != http.StatusOK {
				t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
			}
		}
	})
}

func TestExtractIP(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	rl := NewRateLimiterMiddleware(config.RateLimitConfig{Enabled: true}, nil, logger)

	t.Run("prefers X-Forwarded-For", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
		req.RemoteAddr = "10.0.0.9:1234"

		if ip := rl.extractIP(req); ip != "203.0.113.5" {
			t.Errorf("expected 203.0.113.5, got %s", ip)
		}
	})

	t.Run("falls back to X-Real-IP", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Real-IP", "198.51.100.7")
		req.RemoteAddr = "10.0.0.9:1234"

		if ip := rl.extractIP(req); ip != "198.51.100.7" {
			t.Errorf("expected 198.51.100.7, got %s", ip)
		}
	})

	t.Run("falls back to RemoteAddr host", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.0.2.4:5678"

		if ip := rl.extractIP(req); ip != "192.0.2.4" {
			t.Errorf("expected 192.0.2.4, got %s", ip)
		}
	})
}
