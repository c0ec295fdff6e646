package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVoteSessionIsEligible(t *testing.T) {
	session := &VoteSession{Eligible: []string{"a", "b", "c"}}
	assert.True(t, session.IsEligible("a"))
	assert.True(t, session.IsEligible("c"))
	assert.False(t, session.IsEligible("d"))
	assert.False(t, session.IsEligible(""))
}

func TestVoteSessionYesCount(t *testing.T) {
	session := &VoteSession{Ballots: map[string]string{
		"a": ChoiceYes,
		"b": ChoiceNo,
		"c": ChoiceYes,
	}}
	assert.Equal(t, 2, session.YesCount())

	assert.Equal(t, 0, (&VoteSession{}).YesCount())
}

func TestVoteSessionSnapshot(t *testing.T) {
	session := &VoteSession{
		ID:          "v1",
		Type:        VoteElection,
		Eligible:    []string{"a", "b", "c", "d"},
		Ballots:     map[string]string{"a": "x", "b": "x", "c": "y"},
		Status:      VotePending,
		ExpiresAtMs: 1234,
	}

	snap := session.Snapshot()
	assert.Equal(t, "v1", snap.ID)
	assert.Equal(t, 4, snap.EligibleCount)
	assert.Equal(t, 3, snap.BallotCount)
	assert.Equal(t, map[string]int{"x": 2, "y": 1}, snap.Tally)
	assert.Equal(t, VotePending, snap.Status)
	assert.Equal(t, int64(1234), snap.ExpiresAtMs)
}
