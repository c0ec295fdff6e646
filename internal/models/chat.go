// Package models contains the data structures used throughout the application.
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// ChatMessage represents a chat message sent in a room. Messages are
// persisted best-effort; delivery ordering across reconnects is not promised.
type ChatMessage struct {
	// ID is the unique identifier for the message.
	ID bson.ObjectID `json:"id" bson:"_id,omitempty"`

	// RoomID is the room where the message was sent.
	RoomID bson.ObjectID `json:"roomId" bson:"roomId"`

	// UserID is the sender.
	UserID bson.ObjectID `json:"userId" bson:"userId"`

	// Username is denormalized for display without a user lookup.
	Username string `json:"username" bson:"username"`

	// Body is the text content of the message.
	Body string `json:"body" bson:"body" validate:"required,max=500"`

	// SentAt is when the server accepted the message.
	SentAt time.Time `json:"sentAt" bson:"sentAt"`
}

// SendChatRequest is the payload for chat:send.
type SendChatRequest struct {
	Body string `json:"body" validate:"required,max=500"`
}

// ChatBroadcast is the chat:message broadcast payload.
type ChatBroadcast struct {
	// ID is the message id.
	ID string `json:"id"`

	// User is the sender.
	User PublicUser `json:"user"`

	// Body is the text content.
	Body string `json:"body"`

	// SentAtMs is the server accept time, unix milliseconds.
	SentAtMs int64 `json:"sentAtMs"`
}
