// Package models contains the data structures used throughout the application.
package models

import "github.com/samber/lo"

// Vote session types.
const (
	// VoteElection selects a member to become DJ.
	VoteElection = "dj_election"

	// VoteMutiny removes the current DJ.
	VoteMutiny = "mutiny"
)

// Vote session statuses.
const (
	// VotePending is an open session accepting ballots.
	VotePending = "pending"

	// VotePassed reached its threshold (mutiny) or elected a winner.
	VotePassed = "passed"

	// VoteFailed missed its threshold, drew no ballots, or timed out.
	VoteFailed = "failed"

	// VoteCancelled was aborted by room deactivation or target departure.
	VoteCancelled = "cancelled"
)

// Mutiny ballot choices.
const (
	// ChoiceYes supports removing the DJ.
	ChoiceYes = "yes"

	// ChoiceNo opposes removing the DJ.
	ChoiceNo = "no"
)

// VoteSession is a pending or finalized vote. At most one pending session
// exists per room. The eligible voter set is snapshotted at open time and
// never changes for the life of the session.
type VoteSession struct {
	// ID is the unique session identifier.
	ID string `json:"id"`

	// RoomID is the owning room.
	RoomID string `json:"roomId"`

	// Type is dj_election or mutiny.
	Type string `json:"type"`

	// InitiatorID is the member who opened the session.
	InitiatorID string `json:"initiatorId"`

	// TargetID is the DJ under mutiny. Empty for elections.
	TargetID string `json:"targetId,omitempty"`

	// Threshold is the yes-share over eligible voters required for a
	// mutiny to pass.
	Threshold float64 `json:"threshold"`

	// Eligible is the snapshot of eligible voter user ids at open time.
	Eligible []string `json:"eligible"`

	// Ballots maps voter user id to choice: a candidate user id for
	// elections, yes/no for mutinies.
	Ballots map[string]string `json:"ballots"`

	// Status is pending, passed, failed, or cancelled.
	Status string `json:"status"`

	// Outcome is the elected user id once an election passes.
	Outcome string `json:"outcome,omitempty"`

	// OpenedAtMs is the open instant, unix milliseconds.
	OpenedAtMs int64 `json:"openedAtMs"`

	// ExpiresAtMs is the deadline after which the session fails.
	ExpiresAtMs int64 `json:"expiresAtMs"`

	// ClosedAtMs is the finalization instant, unix milliseconds.
	ClosedAtMs int64 `json:"closedAtMs,omitempty"`
}

// IsEligible reports whether the given user may cast a ballot.
func (v *VoteSession) IsEligible(userID string) bool {
	for _, id := range v.Eligible {
		if id == userID {
			return true
		}
	}
	return false
}

// YesCount tallies yes ballots for a mutiny session.
func (v *VoteSession) YesCount() int {
	return lo.Count(lo.Values(v.Ballots), ChoiceYes)
}

// VoteSnapshot is the client-visible projection of a session: live tallies
// without individual ballots.
type VoteSnapshot struct {
	// ID is the session identifier.
	ID string `json:"id"`

	// Type is dj_election or mutiny.
	Type string `json:"type"`

	// TargetID is the DJ under mutiny, if any.
	TargetID string `json:"targetId,omitempty"`

	// Threshold is the required yes-share for mutinies.
	Threshold float64 `json:"threshold,omitempty"`

	// EligibleCount is the size of the eligible voter snapshot.
	EligibleCount int `json:"eligibleCount"`

	// BallotCount is the number of ballots cast so far.
	BallotCount int `json:"ballotCount"`

	// Tally maps choice to ballot count: candidate ids for elections,
	// yes/no for mutinies.
	Tally map[string]int `json:"tally"`

	// Status is pending, passed, failed, or cancelled.
	Status string `json:"status"`

	// Outcome is the elected user id once an election passes.
	Outcome string `json:"outcome,omitempty"`

	// ExpiresAtMs is the session deadline, unix milliseconds.
	ExpiresAtMs int64 `json:"expiresAtMs"`
}

// Snapshot returns the client-visible projection of the session.
func (v *VoteSession) Snapshot() VoteSnapshot {
	tally := lo.CountValues(lo.Values(v.Ballots))
	return VoteSnapshot{
		ID:            v.ID,
		Type:          v.Type,
		TargetID:      v.TargetID,
		Threshold:     v.Threshold,
		EligibleCount: len(v.Eligible),
		BallotCount:   len(v.Ballots),
		Tally:         tally,
		Status:        v.Status,
		Outcome:       v.Outcome,
		ExpiresAtMs:   v.ExpiresAtMs,
	}
}

// CastDJVoteRequest is the payload for vote:cast-dj.
type CastDJVoteRequest struct {
	SessionID    string `json:"sessionId" validate:"required"`
	TargetUserID string `json:"targetUserId" validate:"required"`
}

// CastMutinyVoteRequest is the payload for vote:cast-mutiny.
type CastMutinyVoteRequest struct {
	SessionID string `json:"sessionId" validate:"required"`
	Yes       bool   `json:"yes"`
}
