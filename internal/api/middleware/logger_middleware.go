package middleware

import (
	"net/http"
	"time"

	"norelock.dev/waveroom/backend/internal/utils"
)

// HTTPObserver records metrics for completed HTTP requests. The metrics
// service implements it.
type HTTPObserver interface {
	ObserveHTTPRequest(method, path string, status int, duration time.Duration)
}

// LoggerMiddleware handles request logging for the API.
type LoggerMiddleware struct {
	logger   *utils.Logger
	observer HTTPObserver
}

// NewLoggerMiddleware creates a new logger middleware. observer may be nil.
func NewLoggerMiddleware(logger *utils.Logger, observer HTTPObserver) *LoggerMiddleware {
	return &LoggerMiddleware{
		logger:   logger.Named("http"),
		observer: observer,
	}
}

// Logger is a middleware that logs HTTP requests.
func (m *LoggerMiddleware) Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rw, r)

		duration := time.Since(start)

		m.logger.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.statusCode,
			"duration", duration.String(),
			"ip", utils.GetRequestIP(r),
			"userAgent", r.UserAgent(),
		)

		if m.observer != nil {
			m.observer.ObserveHTTPRequest(r.Method, r.URL.Path, rw.statusCode, duration)
		}
	})
}

// responseWriter is a wrapper around http.ResponseWriter that captures the
// status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code.
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
