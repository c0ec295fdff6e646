// Package models contains the data structures used throughout the application.
package models

import (
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Ballot polarities on a queue submission.
const (
	// BallotUp is a +1 vote.
	BallotUp = 1

	// BallotDown is a -1 vote.
	BallotDown = -1
)

// Submission is a queue entry: a track submitted by a member, carrying the
// votes of other members. The submitter never appears in its own ballot set.
type Submission struct {
	// ID is the unique identifier for the submission.
	ID bson.ObjectID `json:"id" bson:"_id,omitempty"`

	// RoomID is the owning room.
	RoomID bson.ObjectID `json:"roomId" bson:"roomId"`

	// SubmitterID is the member who submitted the track.
	SubmitterID bson.ObjectID `json:"submitterId" bson:"submitterId"`

	// SubmitterName is denormalized for snapshot assembly.
	SubmitterName string `json:"submitterName" bson:"submitterName"`

	// Media is the resolved track metadata.
	Media MediaInfo `json:"media" bson:"media"`

	// Ballots maps voter user id (hex) to +1 or -1.
	Ballots map[string]int `json:"-" bson:"ballots"`

	// UpCount is the number of +1 ballots.
	UpCount int `json:"upCount" bson:"upCount"`

	// DownCount is the number of -1 ballots.
	DownCount int `json:"downCount" bson:"downCount"`

	// NetScore is UpCount - DownCount, maintained by atomic increment.
	// The queue's ordering key.
	NetScore int `json:"netScore" bson:"netScore"`

	// Played marks the entry as consumed by playback. Score is frozen.
	Played bool `json:"played" bson:"played"`

	// ObjectTimes contains timestamps for this submission. CreatedAt breaks
	// net-score ties, earlier first.
	ObjectTimes `bson:",inline"`
}

// QueueEntry is the client-visible projection of a Submission, with the
// requesting caller's own vote resolved.
type QueueEntry struct {
	// ID is the submission id.
	ID string `json:"id"`

	// Submitter is the submitting member.
	Submitter PublicUser `json:"submitter"`

	// Media is the resolved track metadata.
	Media MediaInfo `json:"media"`

	// UpCount is the number of +1 ballots.
	UpCount int `json:"upCount"`

	// DownCount is the number of -1 ballots.
	DownCount int `json:"downCount"`

	// NetScore is the ordering key.
	NetScore int `json:"netScore"`

	// UserVote is the caller's own ballot: +1, -1, or 0 when absent.
	UserVote int `json:"userVote"`

	// CreatedAt is the submission time, unix milliseconds.
	CreatedAt int64 `json:"createdAt"`
}

// Entry returns the client-visible projection of the submission for the
// given caller.
func (s *Submission) Entry(callerID string) QueueEntry {
	return QueueEntry{
		ID: s.ID.Hex(),
		Submitter: PublicUser{
			ID:       s.SubmitterID.Hex(),
			Username: s.SubmitterName,
		},
		Media:     s.Media,
		UpCount:   s.UpCount,
		DownCount: s.DownCount,
		NetScore:  s.NetScore,
		UserVote:  s.Ballots[callerID],
		CreatedAt: s.CreatedAt.UnixMilli(),
	}
}

// AddToQueueRequest is the payload for submitting a track.
type AddToQueueRequest struct {
	URL string `json:"url" validate:"required,youtube_url"`
}

// QueueEntryRequest targets an existing queue entry by id.
type QueueEntryRequest struct {
	EntryID string `json:"entryId" validate:"required"`
}

// QueueUpdate is the queue:updated broadcast payload: the full ordered list
// plus the id of the entry currently playing, if any.
type QueueUpdate struct {
	// Entries is the unplayed queue in play order.
	Entries []QueueEntry `json:"entries"`

	// CurrentlyPlaying is the submission id of the active track, if any.
	CurrentlyPlaying string `json:"currentlyPlaying,omitempty"`
}

// EntryRemoved is the queue:entry-removed broadcast payload.
type EntryRemoved struct {
	// EntryID is the removed submission id.
	EntryID string `json:"entryId"`

	// Reason is "removed" for explicit removal or "downvoted" for
	// auto-removal.
	Reason string `json:"reason"`
}
