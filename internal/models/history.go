// Package models contains the data structures used throughout the application.
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// DJ transition reasons recorded in the audit trail and broadcast to clients.
const (
	// ReasonVoluntary is a DJ stepping down on their own.
	ReasonVoluntary = "voluntary"

	// ReasonVote is an election winner taking the slot.
	ReasonVote = "vote"

	// ReasonMutiny is removal by a passed mutiny.
	ReasonMutiny = "mutiny"

	// ReasonRandomize is random assignment by the owner or DJ.
	ReasonRandomize = "randomize"

	// ReasonTimeout is removal after the disconnect grace period elapsed.
	ReasonTimeout = "timeout"

	// ReasonOwnerSet is direct assignment by the room owner.
	ReasonOwnerSet = "owner_set"
)

// DJHistoryEntry is an append-only audit row written on every DJ transition.
type DJHistoryEntry struct {
	// ID is the unique identifier for the entry.
	ID bson.ObjectID `json:"id" bson:"_id,omitempty"`

	// RoomID is the room the transition happened in.
	RoomID bson.ObjectID `json:"roomId" bson:"roomId"`

	// UserID is the member who held or took the DJ slot.
	UserID bson.ObjectID `json:"userId" bson:"userId"`

	// BecameDJAt is when the member took the slot.
	BecameDJAt time.Time `json:"becameDjAt" bson:"becameDjAt"`

	// RemovedAt is when the member left the slot. Zero while active.
	RemovedAt time.Time `json:"removedAt,omitempty" bson:"removedAt,omitempty"`

	// Reason is the transition reason that ended the tenure: voluntary,
	// vote, mutiny, randomize, timeout, or owner_set.
	Reason string `json:"reason,omitempty" bson:"reason,omitempty"`
}

// DJChanged is the dj:changed broadcast payload.
type DJChanged struct {
	// DJID is the new DJ's user id.
	DJID string `json:"djId"`

	// Username is the new DJ's display handle.
	Username string `json:"username"`

	// Reason is the transition reason.
	Reason string `json:"reason"`
}

// DJRemoved is the dj:removed broadcast payload.
type DJRemoved struct {
	// DJID is the removed DJ's user id.
	DJID string `json:"djId"`

	// Reason is the transition reason.
	Reason string `json:"reason"`
}

// SetDJRequest is the payload for dj:set.
type SetDJRequest struct {
	UserID string `json:"userId" validate:"required"`
}
