package middleware

import (
	"net/http"
	"strconv"

	"norelock.dev/waveroom/backend/internal/db/redis"
	"norelock.dev/waveroom/backend/internal/utils"
)

// RateLimitMiddleware applies per-IP rate limits to HTTP routes.
type RateLimitMiddleware struct {
	limiter *redis.RateLimiter
	logger  *utils.Logger
}

// NewRateLimitMiddleware creates a new rate limit middleware.
func NewRateLimitMiddleware(limiter *redis.RateLimiter, logger *utils.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter: limiter,
		logger:  logger.Named("rate_limit_middleware"),
	}
}

// Limit enforces the given limit, keyed by client IP. A limiter outage must
// not take the route down with it, so errors fall through to the handler.
func (m *RateLimitMiddleware) Limit(limit redis.RateLimit) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result, err := m.limiter.Allow(r.Context(), limit, utils.GetRequestIP(r))
			if err != nil {
				m.logger.Error("Rate limiter check failed", err, "key", limit.Key)
				next.ServeHTTP(w, r)
				return
			}

			if !result.Allowed {
				w.Header().Set("Retry-After", strconv.FormatInt(int64(result.RetryAfter.Seconds()), 10))
				utils.RespondWithError(w, http.StatusTooManyRequests, "Too many requests")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
