// Package auth provides authentication and authorization functionality.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"norelock.dev/waveroom/backend/internal/utils"
)

// JWT errors
var (
	ErrInvalidToken    = errors.New("invalid token")
	ErrExpiredToken    = errors.New("token has expired")
	ErrTokenGeneration = errors.New("failed to generate token")
	ErrWrongTokenType  = errors.New("wrong token type")
)

// Token types embedded in claims.
const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// JWTConfig contains configuration for the JWT provider.
type JWTConfig struct {
	// Secret is the signing key for JWTs.
	Secret string `validate:"required"`

	// Issuer is the issuer of the JWT.
	Issuer string `validate:"required"`

	// Audience is the intended audience of issued tokens.
	Audience string

	// AccessTokenDuration is the duration for which access tokens are valid.
	AccessTokenDuration time.Duration `validate:"required"`

	// RefreshTokenDuration is the duration for which refresh tokens are valid.
	RefreshTokenDuration time.Duration `validate:"required"`
}

// JWTClaims extends the standard JWT claims with application fields.
type JWTClaims struct {
	BaseClaims

	jwt.RegisteredClaims
}

// JWTProvider implements token generation and validation using JWT.
type JWTProvider struct {
	config    JWTConfig
	validator *jwt.Validator
	logger    *utils.Logger
}

// NewJWTProvider creates a new JWT provider.
func NewJWTProvider(config JWTConfig, logger *utils.Logger) *JWTProvider {
	return &JWTProvider{
		config:    config,
		validator: jwt.NewValidator(jwt.WithLeeway(time.Second)),
		logger:    logger.Named("jwt_provider"),
	}
}

// GenerateTokenPair creates access and refresh tokens for a user session.
func (p *JWTProvider) GenerateTokenPair(userID, username, sessionID string) (TokenPair, error) {
	access, err := p.sign(userID, username, sessionID, tokenTypeAccess, p.config.AccessTokenDuration)
	if err != nil {
		return TokenPair{}, err
	}

	refresh, err := p.sign(userID, username, sessionID, tokenTypeRefresh, p.config.RefreshTokenDuration)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(p.config.AccessTokenDuration.Seconds()),
	}, nil
}

// sign creates a single signed token.
func (p *JWTProvider) sign(userID, username, sessionID, tokenType string, lifetime time.Duration) (string, error) {
	now := time.Now()

	claims := JWTClaims{
		BaseClaims: BaseClaims{
			UserID:    userID,
			Username:  username,
			SessionID: sessionID,
			TokenType: tokenType,
		},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.config.Issuer,
			Audience:  jwt.ClaimStrings{p.config.Audience},
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        fmt.Sprintf("%d", now.UnixNano()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(p.config.Secret))
	if err != nil {
		p.logger.Error("Failed to sign JWT token", err, "userId", userID)
		return "", fmt.Errorf("%w: %v", ErrTokenGeneration, err)
	}

	return tokenString, nil
}

// ValidateToken validates a JWT token and returns the claims.
func (p *JWTProvider) ValidateToken(tokenString string) (*Claims, error) {
	parsed := JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &parsed, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(p.config.Secret), nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			// Expired claims are still returned so refresh can identify
			// the session
			return &Claims{
				BaseClaims:     parsed.BaseClaims,
				StandardClaims: parsed.RegisteredClaims,
			}, ErrExpiredToken
		}
		p.logger.Debug("Failed to parse JWT token", "error", err)
		return nil, ErrInvalidToken
	}

	if token == nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	if err := p.validator.Validate(&parsed); err != nil {
		p.logger.Debug("Failed to validate JWT claims", "error", err)
		return nil, ErrInvalidToken
	}

	return &Claims{
		BaseClaims:     parsed.BaseClaims,
		StandardClaims: parsed.RegisteredClaims,
	}, nil
}

// RefreshToken exchanges a valid refresh token for a new token pair.
func (p *JWTProvider) RefreshToken(tokenString string) (TokenPair, error) {
	claims, err := p.ValidateToken(tokenString)
	if err != nil {
		return TokenPair{}, err
	}

	if claims.TokenType != tokenTypeRefresh {
		return TokenPair{}, ErrWrongTokenType
	}

	return p.GenerateTokenPair(claims.UserID, claims.Username, claims.SessionID)
}
