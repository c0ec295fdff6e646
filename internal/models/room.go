// Package models contains the data structures used throughout the application.
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Member roles within a room.
const (
	// RoleOwner is the room creator or their successor. At most one per room.
	RoleOwner = "owner"

	// RoleDJ is the single member driving synchronized playback.
	RoleDJ = "dj"

	// RoleListener is every other member.
	RoleListener = "listener"
)

// Room represents a listening room where members hear the same audio at the
// same instant.
type Room struct {
	// ID is the unique identifier for the room.
	ID bson.ObjectID `json:"id" bson:"_id,omitempty"`

	// Code is the 6-character human-readable join code. Unique among
	// active rooms.
	Code string `json:"code" bson:"code"`

	// Name is the display name of the room.
	Name string `json:"name" bson:"name" validate:"required,min=2,max=50"`

	// Description provides information about the room.
	Description string `json:"description" bson:"description" validate:"max=1000"`

	// OwnerID is the current owner. Unset when the room has deactivated
	// with no members remaining.
	OwnerID bson.ObjectID `json:"ownerId,omitempty" bson:"ownerId,omitempty"`

	// PasswordHash is the bcrypt hash of the optional join password.
	PasswordHash string `json:"-" bson:"passwordHash,omitempty"`

	// Settings contains the room's configuration.
	Settings RoomSettings `json:"settings" bson:"settings"`

	// IsActive indicates whether the room accepts joins. An inactive room
	// has no current DJ and no active vote.
	IsActive bool `json:"isActive" bson:"isActive"`

	// ObjectTimes contains timestamps for this room.
	ObjectTimes `bson:",inline"`
}

// RoomSettings represents the configuration settings for a room.
type RoomSettings struct {
	// MaxMembers caps how many members may join, between 2 and 100.
	MaxMembers int `json:"maxMembers" bson:"maxMembers" validate:"min=2,max=100"`

	// MutinyThreshold is the yes-share over eligible voters required for a
	// mutiny to pass, between 0.5 and 1.0.
	MutinyThreshold float64 `json:"mutinyThreshold" bson:"mutinyThreshold" validate:"min=0.5,max=1.0"`

	// DJCooldownMinutes blocks a user removed by mutiny from becoming DJ
	// again for this many minutes, between 0 and 60.
	DJCooldownMinutes int `json:"djCooldownMinutes" bson:"djCooldownMinutes" validate:"min=0,max=60"`

	// AutoRandomizeDJ picks a random DJ when the slot empties and the
	// room still has members.
	AutoRandomizeDJ bool `json:"autoRandomizeDj" bson:"autoRandomizeDj"`

	// AutoRemoveScore removes queue entries whose net score drops to this
	// negative value. Zero disables auto-removal.
	AutoRemoveScore int `json:"autoRemoveScore" bson:"autoRemoveScore" validate:"max=0"`
}

// HasPassword reports whether the room requires a password to join.
func (r *Room) HasPassword() bool {
	return r.PasswordHash != ""
}

// Membership is the (room, user) pair tracking a member's role and activity.
// A user has at most one Membership per room.
type Membership struct {
	// ID is the unique identifier for the membership.
	ID bson.ObjectID `json:"id" bson:"_id,omitempty"`

	// RoomID is the room this membership belongs to.
	RoomID bson.ObjectID `json:"roomId" bson:"roomId"`

	// UserID is the member.
	UserID bson.ObjectID `json:"userId" bson:"userId"`

	// Username is denormalized for snapshot assembly.
	Username string `json:"username" bson:"username"`

	// Role is one of owner, dj, or listener.
	Role string `json:"role" bson:"role"`

	// JoinedAt is when the user joined the room. Owner succession and
	// election tie-breaks use the earliest value.
	JoinedAt time.Time `json:"joinedAt" bson:"joinedAt"`

	// LastActive is updated on disconnect and periodically while connected.
	LastActive time.Time `json:"lastActive" bson:"lastActive"`
}

// MemberInfo is the client-visible projection of a Membership.
type MemberInfo struct {
	// ID is the member's user id.
	ID string `json:"id"`

	// Username is the member's display handle.
	Username string `json:"username"`

	// Role is one of owner, dj, or listener.
	Role string `json:"role"`

	// JoinedAt is when the member joined, unix milliseconds.
	JoinedAt int64 `json:"joinedAt"`
}

// Info returns the client-visible projection of the membership.
func (m *Membership) Info() MemberInfo {
	return MemberInfo{
		ID:       m.UserID.Hex(),
		Username: m.Username,
		Role:     m.Role,
		JoinedAt: m.JoinedAt.UnixMilli(),
	}
}

// RoomInfo is the client-visible projection of a Room.
type RoomInfo struct {
	// ID is the room id.
	ID string `json:"id"`

	// Code is the join code.
	Code string `json:"code"`

	// Name is the display name.
	Name string `json:"name"`

	// Description provides information about the room.
	Description string `json:"description,omitempty"`

	// OwnerID is the current owner's user id.
	OwnerID string `json:"ownerId,omitempty"`

	// HasPassword reports whether a password is required to join.
	HasPassword bool `json:"hasPassword"`

	// Settings contains the room's configuration.
	Settings RoomSettings `json:"settings"`

	// MemberCount is the number of current members.
	MemberCount int `json:"memberCount"`
}

// Info returns the client-visible projection of the room.
func (r *Room) Info(memberCount int) RoomInfo {
	info := RoomInfo{
		ID:          r.ID.Hex(),
		Code:        r.Code,
		Name:        r.Name,
		Description: r.Description,
		HasPassword: r.HasPassword(),
		Settings:    r.Settings,
		MemberCount: memberCount,
	}
	if !r.OwnerID.IsZero() {
		info.OwnerID = r.OwnerID.Hex()
	}
	return info
}

// RoomState is the full reconciliation snapshot sent as a single room:state
// message on connect and on request.
type RoomState struct {
	// Room is the room's public projection.
	Room RoomInfo `json:"room"`

	// Members lists the current members.
	Members []MemberInfo `json:"members"`

	// DJ is the current DJ, if any.
	DJ *MemberInfo `json:"dj,omitempty"`

	// Playback is the playback snapshot.
	Playback PlaybackSnapshot `json:"playback"`

	// Queue lists unplayed submissions in play order.
	Queue []QueueEntry `json:"queue"`

	// Vote is the pending vote session, if any.
	Vote *VoteSnapshot `json:"vote,omitempty"`
}

// CreateRoomRequest is the payload for creating a room.
type CreateRoomRequest struct {
	Name        string        `json:"name" validate:"required,min=2,max=50"`
	Description string        `json:"description" validate:"max=1000"`
	Password    string        `json:"password" validate:"omitempty,min=4,max=72"`
	Settings    *RoomSettings `json:"settings" validate:"omitempty"`
}

// JoinRoomRequest is the payload for joining a room by code.
type JoinRoomRequest struct {
	RoomCode string `json:"roomCode" validate:"required,len=6"`
	Password string `json:"password" validate:"omitempty,max=72"`
}
