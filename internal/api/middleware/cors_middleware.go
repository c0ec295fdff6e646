package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"norelock.dev/waveroom/backend/internal/utils"
)

// CORSConfig contains configuration for CORS middleware.
type CORSConfig struct {
	// AllowedOrigins is a list of origins a cross-domain request can be
	// executed from. "*" allows all origins.
	AllowedOrigins []string

	// AllowedMethods is a list of methods the client is allowed to use
	// with cross-domain requests.
	AllowedMethods []string

	// AllowedHeaders is a list of non-simple headers the client is allowed
	// to use with cross-domain requests.
	AllowedHeaders []string

	// ExposedHeaders indicates which headers are safe to expose.
	ExposedHeaders []string

	// AllowCredentials indicates whether the request can include user
	// credentials like cookies or HTTP authentication.
	AllowCredentials bool

	// MaxAge indicates how long (in seconds) the results of a preflight
	// request can be cached. Zero means no max age.
	MaxAge int
}

// DefaultCORSConfig returns a default CORS configuration.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Origin", "Accept", "Content-Type", "Authorization"},
		ExposedHeaders:   []string{},
		AllowCredentials: true,
		MaxAge:           86400,
	}
}

// CORSMiddleware handles CORS for the API.
type CORSMiddleware struct {
	config CORSConfig
	logger *utils.Logger
}

// NewCORSMiddleware creates a new CORS middleware.
func NewCORSMiddleware(config CORSConfig, logger *utils.Logger) *CORSMiddleware {
	return &CORSMiddleware{
		config: config,
		logger: logger.Named("cors_middleware"),
	}
}

// CORS is a middleware that handles CORS.
func (m *CORSMiddleware) CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		allowedOrigin := m.isOriginAllowed(origin)
		if allowedOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
		}

		if r.Method == http.MethodOptions {
			m.handlePreflight(w, r)
			return
		}

		m.setStandardHeaders(w)
		next.ServeHTTP(w, r)
	})
}

// isOriginAllowed checks if the origin is allowed.
func (m *CORSMiddleware) isOriginAllowed(origin string) string {
	if origin == "" {
		return ""
	}

	for _, allowedOrigin := range m.config.AllowedOrigins {
		if allowedOrigin == "*" {
			if m.config.AllowCredentials {
				// "*" is invalid with credentials, so echo the origin.
				return origin
			}
			return "*"
		}

		if allowedOrigin == origin {
			return origin
		}

		if strings.HasSuffix(allowedOrigin, "*") {
			prefix := strings.TrimSuffix(allowedOrigin, "*")
			if strings.HasPrefix(origin, prefix) {
				return origin
			}
		}
	}

	return ""
}

// handlePreflight handles preflight requests.
func (m *CORSMiddleware) handlePreflight(w http.ResponseWriter, r *http.Request) {
	m.setStandardHeaders(w)

	if len(m.config.AllowedMethods) > 0 {
		w.Header().Set("Access-Control-Allow-Methods", strings.Join(m.config.AllowedMethods, ", "))
	}

	if len(m.config.AllowedHeaders) > 0 {
		w.Header().Set("Access-Control-Allow-Headers", strings.Join(m.config.AllowedHeaders, ", "))
	}

	if m.config.MaxAge > 0 {
		w.Header().Set("Access-Control-Max-Age", strconv.Itoa(m.config.MaxAge))
	}

	w.WriteHeader(http.StatusNoContent)
}

// setStandardHeaders sets standard CORS headers.
func (m *CORSMiddleware) setStandardHeaders(w http.ResponseWriter) {
	if m.config.AllowCredentials {
		w.Header().Set("Access-Control-Allow-Credentials", "true")
	}

	if len(m.config.ExposedHeaders) > 0 {
		w.Header().Set("Access-Control-Expose-Headers", strings.Join(m.config.ExposedHeaders, ", "))
	}
}
