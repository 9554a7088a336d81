package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"greenloan-engine/internal/infrastructure/monitoring"
)

func MetricsMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				duration := time.Since(start)
				statusCode := ww.Status()
				routePattern := chi.RouteContext(r.Context()).RoutePattern()

				monitoring.RecordHTTPRequest(r.Method, routePattern, strconv.Itoa(statusCode), duration)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
