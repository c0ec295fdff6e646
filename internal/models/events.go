package models

// Event names broadcast to room channels. Every state mutation publishes
// exactly one event; subscribers receive events for a room in publish order.
const (
	EventRoomState     = "room:state"
	EventMemberJoined  = "room:member_joined"
	EventMemberLeft    = "room:member_left"
	EventOwnerChanged  = "room:owner_changed"
	EventRoomDeactived = "room:deactivated"

	EventDJChanged = "dj:changed"
	EventDJRemoved = "dj:removed"

	EventQueueUpdated = "queue:updated"
	EventEntryRemoved = "queue:entry-removed"

	EventPlaybackStart = "playback:start"
	EventPlaybackPause = "playback:pause"
	EventPlaybackStop  = "playback:stop"

	EventElectionStarted    = "vote:election-started"
	EventMutinyStarted      = "vote:mutiny-started"
	EventVoteResultsUpdated = "vote:results-updated"
	EventVoteComplete       = "vote:complete"
	EventMutinySuccess      = "mutiny:success"
	EventMutinyFailed       = "mutiny:failed"

	EventChatMessage = "chat:message"
)

// MemberJoined is the payload for room:member_joined.
type MemberJoined struct {
	Member MemberInfo `json:"member"`
}

// MemberLeft is the payload for room:member_left.
type MemberLeft struct {
	UserID string `json:"userId"`
	Reason string `json:"reason,omitempty"`
}

// OwnerChanged is the payload for room:owner_changed.
type OwnerChanged struct {
	OwnerID string `json:"ownerId"`
}

// PlaybackStop is the payload for playback:stop.
type PlaybackStop struct {
	Reason string `json:"reason,omitempty"`
}

// PlaybackPause is the payload for playback:pause.
type PlaybackPause struct {
	PausedAtMs int64 `json:"pausedAtMs"`
}

// VoteComplete is the payload for vote:complete.
type VoteComplete struct {
	SessionID string `json:"sessionId"`
	Type      string `json:"type"`
	Outcome   string `json:"outcome"`
	WinnerID  string `json:"winnerId,omitempty"`
}

// MutinyResult is the payload for mutiny:success and mutiny:failed.
type MutinyResult struct {
	SessionID string `json:"sessionId"`
	DJID      string `json:"djId"`
}
