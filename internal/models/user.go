// Package models contains the data structures used throughout the application.
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// User represents a registered account. The room runtime only consumes the
// authenticated principal derived from it.
type User struct {
	// ID is the unique identifier of the user.
	ID bson.ObjectID `json:"id" bson:"_id,omitempty"`

	// Username is the unique display handle.
	Username string `json:"username" bson:"username" validate:"required,min=3,max=30,username"`

	// Email is the unique email address used for login.
	Email string `json:"email" bson:"email" validate:"required,email"`

	// PasswordHash is the bcrypt hash of the user's password.
	// Never serialized to clients.
	PasswordHash string `json:"-" bson:"passwordHash"`

	// LastLoginAt is the time of the most recent successful login.
	LastLoginAt time.Time `json:"lastLoginAt,omitempty" bson:"lastLoginAt,omitempty"`

	// ObjectTimes contains creation and update timestamps.
	ObjectTimes `bson:",inline"`
}

// PublicUser is the client-visible projection of a User.
type PublicUser struct {
	// ID is the unique identifier of the user.
	ID string `json:"id"`

	// Username is the display handle.
	Username string `json:"username"`
}

// Public returns the client-visible projection of the user.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:       u.ID.Hex(),
		Username: u.Username,
	}
}

// RegisterRequest is the payload for account registration.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=30,username"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,password"`
}

// LoginRequest is the payload for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse is returned on successful registration or login.
type AuthResponse struct {
	// User is the authenticated user's public projection.
	User PublicUser `json:"user"`

	// AccessToken is the short-lived JWT presented on every connection.
	AccessToken string `json:"accessToken"`

	// RefreshToken exchanges for a new access token after expiry.
	RefreshToken string `json:"refreshToken"`

	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int64 `json:"expiresIn"`
}

// Session is the server-side record of an issued token pair, stored in the
// transient store keyed by session id.
type Session struct {
	// ID is the session identifier embedded in the tokens.
	ID string `json:"id"`

	// UserID is the owning user.
	UserID string `json:"userId"`

	// Username is denormalized for cheap principal construction.
	Username string `json:"username"`

	// CreatedAt is when the session was issued, unix milliseconds.
	CreatedAt int64 `json:"createdAt"`
}
