package room

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"norelock.dev/waveroom/backend/internal/models"
)

func TestQueueAdd(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	room, ownerID := env.seedRoom(t, defaultSettings())

	submission, err := env.svc.Queue.Add(ctx, room.ID, ownerID, "owner", &models.AddToQueueRequest{
		URL: "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
	})
	require.NoError(t, err)
	assert.Equal(t, "dQw4w9WgXcQ", submission.Media.SourceID)
	assert.Equal(t, "Test Track", submission.Media.Title)

	update, ok := env.bus.last(models.EventQueueUpdated)
	require.True(t, ok)
	require.Len(t, update.Data.(models.QueueUpdate).Entries, 1)

	// Non-members cannot submit.
	_, err = env.svc.Queue.Add(ctx, room.ID, bson.NewObjectID(), "ghost", &models.AddToQueueRequest{
		URL: "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
	})
	assert.ErrorIs(t, err, models.ErrNotRoomMember)

	// Non-YouTube URLs are rejected before any lookup.
	_, err = env.svc.Queue.Add(ctx, room.ID, ownerID, "owner", &models.AddToQueueRequest{
		URL: "https://example.com/track",
	})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestQueueOrdering(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	room, ownerID := env.seedRoom(t, defaultSettings())
	bob := bson.NewObjectID()
	carol := bson.NewObjectID()
	env.seedMember(t, room.ID, bob, "bob", models.RoleListener)
	env.seedMember(t, room.ID, carol, "carol", models.RoleListener)

	first := env.seedSubmission(t, room.ID, ownerID, "First")
	second := env.seedSubmission(t, room.ID, ownerID, "Second")
	third := env.seedSubmission(t, room.ID, ownerID, "Third")

	// Two upvotes beat one; equal scores fall back to submission order.
	require.NoError(t, env.svc.Queue.Upvote(ctx, room.ID, bob, third.ID.Hex()))
	require.NoError(t, env.svc.Queue.Upvote(ctx, room.ID, carol, third.ID.Hex()))
	require.NoError(t, env.svc.Queue.Upvote(ctx, room.ID, bob, second.ID.Hex()))

	entries, err := env.svc.Queue.List(ctx, room.ID, "")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, third.ID.Hex(), entries[0].ID)
	assert.Equal(t, second.ID.Hex(), entries[1].ID)
	assert.Equal(t, first.ID.Hex(), entries[2].ID)
}

func TestQueueVoteTransitions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	room, ownerID := env.seedRoom(t, defaultSettings())
	bob := bson.NewObjectID()
	env.seedMember(t, room.ID, bob, "bob", models.RoleListener)

	entry := env.seedSubmission(t, room.ID, ownerID, "Track")
	entryID := entry.ID.Hex()

	require.NoError(t, env.svc.Queue.Upvote(ctx, room.ID, bob, entryID))
	env.bus.reset()

	// Same polarity again is a silent no-op.
	require.NoError(t, env.svc.Queue.Upvote(ctx, room.ID, bob, entryID))
	assert.Equal(t, 0, env.bus.count(models.EventQueueUpdated))

	// The opposite ballot replaces, not stacks.
	require.NoError(t, env.svc.Queue.Downvote(ctx, room.ID, bob, entryID))
	got, err := env.subRepo.FindByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.UpCount)
	assert.Equal(t, 1, got.DownCount)
	assert.Equal(t, -1, got.NetScore)

	require.NoError(t, env.svc.Queue.ClearVote(ctx, room.ID, bob, entryID))
	got, err = env.subRepo.FindByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.NetScore)
	assert.Empty(t, got.Ballots)

	// Submitters cannot vote on their own entries.
	err = env.svc.Queue.Upvote(ctx, room.ID, ownerID, entryID)
	assert.ErrorIs(t, err, models.ErrOwnEntryVote)
}

func TestQueueAutoRemove(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	settings := defaultSettings()
	settings.AutoRemoveScore = -2
	room, ownerID := env.seedRoom(t, settings)
	bob := bson.NewObjectID()
	carol := bson.NewObjectID()
	env.seedMember(t, room.ID, bob, "bob", models.RoleListener)
	env.seedMember(t, room.ID, carol, "carol", models.RoleListener)

	entry := env.seedSubmission(t, room.ID, ownerID, "Unpopular")
	entryID := entry.ID.Hex()

	require.NoError(t, env.svc.Queue.Downvote(ctx, room.ID, bob, entryID))
	assert.Equal(t, 0, env.bus.count(models.EventEntryRemoved))

	// The second downvote lands on the removal threshold.
	require.NoError(t, env.svc.Queue.Downvote(ctx, room.ID, carol, entryID))

	removed, ok := env.bus.last(models.EventEntryRemoved)
	require.True(t, ok)
	payload := removed.Data.(models.EntryRemoved)
	assert.Equal(t, entryID, payload.EntryID)
	assert.Equal(t, "downvoted", payload.Reason)

	_, err := env.subRepo.FindByID(ctx, entry.ID)
	assert.ErrorIs(t, err, models.ErrEntryNotFound)
}

func TestQueueRemovePermissions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	room, ownerID := env.seedRoom(t, defaultSettings())
	bob := bson.NewObjectID()
	carol := bson.NewObjectID()
	env.seedMember(t, room.ID, bob, "bob", models.RoleListener)
	env.seedMember(t, room.ID, carol, "carol", models.RoleListener)

	entry := env.seedSubmission(t, room.ID, bob, "Bob's Track")
	entryID := entry.ID.Hex()

	err := env.svc.Queue.Remove(ctx, room.ID, carol, entryID)
	assert.ErrorIs(t, err, models.ErrEntryNotRemovable)

	// The submitter may remove their own entry.
	require.NoError(t, env.svc.Queue.Remove(ctx, room.ID, bob, entryID))
	removed, ok := env.bus.last(models.EventEntryRemoved)
	require.True(t, ok)
	assert.Equal(t, "removed", removed.Data.(models.EntryRemoved).Reason)

	// The owner may remove anyone's entry.
	other := env.seedSubmission(t, room.ID, bob, "Another Track")
	require.NoError(t, env.svc.Queue.Remove(ctx, room.ID, ownerID, other.ID.Hex()))

	err = env.svc.Queue.Remove(ctx, room.ID, ownerID, other.ID.Hex())
	assert.ErrorIs(t, err, models.ErrEntryNotFound)
}

func TestQueueListResolvesCallerBallots(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	room, ownerID := env.seedRoom(t, defaultSettings())
	bob := bson.NewObjectID()
	env.seedMember(t, room.ID, bob, "bob", models.RoleListener)

	entry := env.seedSubmission(t, room.ID, ownerID, "Track")
	require.NoError(t, env.svc.Queue.Upvote(ctx, room.ID, bob, entry.ID.Hex()))

	entries, err := env.svc.Queue.List(ctx, room.ID, bob.Hex())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.BallotUp, entries[0].UserVote)

	// Others see the counts without bob's ballot attribution.
	entries, err = env.svc.Queue.List(ctx, room.ID, ownerID.Hex())
	require.NoError(t, err)
	assert.Equal(t, 0, entries[0].UserVote)
	assert.Equal(t, 1, entries[0].UpCount)
}
