// Package utils provides utility functions used throughout the application.
package utils

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// APIResponse represents a standard API response.
type APIResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
	Error   any  `json:"error,omitempty"`
}

// RespondWithJSON sends a JSON response with the given status code and data.
func RespondWithJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		GetLogger().Error("Failed to encode JSON response", err)
		_, _ = w.Write([]byte(`{"success":false,"error":{"kind":"internal","message":"internal error"}}`))
	}
}

// RespondWithError sends an error response with the given status code and message.
func RespondWithError(w http.ResponseWriter, statusCode int, message string) {
	RespondWithJSON(w, statusCode, APIResponse{
		Success: false,
		Error:   map[string]string{"message": message},
	})
}

// RespondWithValidationError sends a 422 carrying per-field messages.
func RespondWithValidationError(w http.ResponseWriter, err error) {
	fields := FormatValidationErrors(err)

	RespondWithJSON(w, http.StatusUnprocessableEntity, APIResponse{
		Success: false,
		Error: map[string]any{
			"kind":    "invalid_input",
			"message": "Validation failed",
			"fields":  fields,
		},
	})
}

// ExtractBearerToken extracts the Bearer token from the Authorization header.
func ExtractBearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", fmt.Errorf("no token provided")
	}

	tokenParts := strings.Split(authHeader, " ")
	if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
		return "", fmt.Errorf("invalid token format")
	}

	return tokenParts[1], nil
}
