package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"greenloan-engine/internal/infrastructure/monitoring"
)

func TestMetricsMiddleware(t *testing.T) {
	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r := chi.NewRouter()
	r.Use(MetricsMiddleware())
	r.Get("/metrics-probe", testHandler)

	before := testutil.ToFloat64(monitoring.HTTP.RequestsTotal.WithLabelValues("GET", "/metrics-probe", "200"))

	req := httptest.NewRequest(http.MethodGet, "/metrics-probe", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status code %d, got %d", http.StatusOK, rec.Code)
	}

	after := testutil.ToFloat64(monitoring.HTTP.RequestsTotal.WithLabelValues("GET", "/metrics-probe", "200"))
	if after != before+1 {
		t.Errorf("expected request counter to increment by 1, got %v -> %v", before, after)
	}
}

func TestMetricsMiddlewareRecordsErrorStatus(t *testing.T) {
	r := chi.NewRouter()
	r.Use(MetricsMiddleware())
	r.Get("/metrics-probe-fail", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	before := testutil.ToFloat64(monitoring.HTTP.RequestsTotal.WithLabelValues("GET", "/metrics-probe-fail", "500"))

	req := httptest.NewRequest(http.MethodGet, "/metrics-probe-fail", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	after := testutil.ToFloat64(monitoring.HTTP.RequestsTotal.WithLabelValues("GET", "/metrics-probe-fail", "500"))
	if after != before+1 {
		t.Errorf("expected request counter to increment by 1, got %v -> %v", before, after)
	}
}
