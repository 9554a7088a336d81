package middleware

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"greenloan-engine/internal/config"
)

// RateLimiterMiddleware limits requests per client IP. With a Redis client
// the counters are shared across instances; without one each instance keeps
// its own in-process token buckets.
type RateLimiterMiddleware struct {
	limiters    sync.Map
	cfg         config.RateLimitConfig
	redisClient *redis.Client
	logger      *slog.Logger
}

func NewRateLimiterMiddleware(cfg config.RateLimitConfig, redisClient *redis.Client, logger *slog.Logger) *RateLimiterMiddleware {
	rl := &RateLimiterMiddleware{
		cfg:         cfg,
		redisClient: redisClient,
		logger:      logger,
	}

	if redisClient == nil {
		go rl.cleanupLimiters()
	}

	return rl
}

func (rl *RateLimiterMiddleware) getLimiter(ip string) *rate.Limiter {
	limiter, exists := rl.limiters.Load(ip)
	if !exists {
		newLimiter := rate.NewLimiter(rate.Limit(rl.cfg.RPS), rl.cfg.Burst)
		rl.limiters.Store(ip, newLimiter)
		return newLimiter
	}
	return limiter.(*rate.Limiter)
}

func (rl *RateLimiterMiddleware) cleanupLimiters() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		rl.limiters.Range(func(key, value interface{}) bool {
			limiter := value.(*rate.Limiter)
			if limiter.AllowN(time.Now(), 0) {
				rl.limiters.Delete(key)
			}
			return true
		})
	}
}

func (rl *RateLimiterMiddleware) extractIP(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[0])
	}

	xRealIP := r.Header.Get("X-Real-IP")
	if xRealIP != "" {
		return xRealIP
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// allowRedis implements a fixed one-second window via INCR with expiry. On
// any Redis error the request is allowed; availability wins over strictness.
func (rl *RateLimiterMiddleware) allowRedis(r *http.Request, ip string) bool {
	key := fmt.Sprintf("ratelimit:%s:%d", ip, time.Now().Unix())

	count, err := rl.redisClient.Incr(r.Context(), key).Result()
	if err != nil {
		rl.logger.Error("Rate limiter Redis INCR failed, allowing request", "ip", ip, "error", err)
		return true
	}
	if count == 1 {
		if err := rl.redisClient.Expire(r.Context(), key, 2*time.Second).Err(); err != nil {
			rl.logger.Warn("Rate limiter Redis EXPIRE failed", "ip", ip, "error", err)
		}
	}

	return count <= int64(rl.cfg.RPS)+int64(rl.cfg.Burst)
}

func (rl *RateLimiterMiddleware) allow(r *http.Request, ip string) bool {
	if rl.redisClient != nil {
		return rl.allowRedis(r, ip)
	}
	return rl.getLimiter(ip).Allow()
}

func (rl *RateLimiterMiddleware) Middleware(next http.Handler) http.Handler {
	if !rl.cfg.Enabled {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := rl.extractIP(r)

		if !rl.allow(r, ip) {
			rl.logger.Warn("Rate limit exceeded", "ip", ip)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error": map[string]string{
					"message": "Rate limit exceeded",
				},
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}
