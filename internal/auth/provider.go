// Package auth provides authentication and authorization functionality.
package auth

// Provider defines the interface for authentication operations.
type Provider interface {
	// HashPassword hashes a password for secure storage.
	HashPassword(password string) (string, error)

	// VerifyPassword checks if a password matches a hash.
	VerifyPassword(password, hash string) bool

	// GenerateTokenPair creates access and refresh tokens for a user session.
	GenerateTokenPair(userID, username, sessionID string) (TokenPair, error)

	// ValidateToken validates a JWT token and returns the claims.
	ValidateToken(token string) (*Claims, error)

	// RefreshToken exchanges a valid refresh token for a new token pair.
	RefreshToken(token string) (TokenPair, error)
}

// BaseClaims represents the application claims in a JWT token.
type BaseClaims struct {
	// UserID is the ID of the user.
	UserID string `json:"userId"`

	// Username is the username of the user.
	Username string `json:"username"`

	// SessionID ties the token to a server-side session record.
	SessionID string `json:"sessionId"`

	// TokenType is "access" or "refresh".
	TokenType string `json:"tokenType"`
}

// Claims represents the validated JWT claims.
type Claims struct {
	// BaseClaims embeds the application claims.
	BaseClaims

	// StandardClaims contains the standard JWT claims.
	StandardClaims any `json:"standardClaims"`
}

// TokenPair is an issued access + refresh token pair.
type TokenPair struct {
	// AccessToken is the short-lived token presented on every connection.
	AccessToken string `json:"accessToken"`

	// RefreshToken exchanges for a new pair after access expiry.
	RefreshToken string `json:"refreshToken"`

	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int64 `json:"expiresIn"`
}
