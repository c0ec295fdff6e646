package room

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"norelock.dev/waveroom/backend/internal/models"
)

func TestBecomeDJ(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	room, ownerID := env.seedRoom(t, defaultSettings())
	bob := bson.NewObjectID()
	env.seedMember(t, room.ID, bob, "bob", models.RoleListener)

	require.NoError(t, env.svc.DJ.BecomeDJ(ctx, room.ID, bob.Hex()))

	current, err := env.svc.DJ.CurrentDJ(ctx, room.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, bob.Hex(), current)

	membership, err := env.roomRepo.FindMembership(ctx, room.ID, bob)
	require.NoError(t, err)
	assert.Equal(t, models.RoleDJ, membership.Role)

	changed, ok := env.bus.last(models.EventDJChanged)
	require.True(t, ok)
	payload := changed.Data.(models.DJChanged)
	assert.Equal(t, bob.Hex(), payload.DJID)
	assert.Equal(t, "bob", payload.Username)
	assert.Equal(t, models.ReasonVoluntary, payload.Reason)

	// The slot is taken.
	err = env.svc.DJ.BecomeDJ(ctx, room.ID, ownerID.Hex())
	assert.ErrorIs(t, err, errDJSlotOccupied)

	// Non-members cannot claim it either.
	err = env.svc.DJ.BecomeDJ(ctx, room.ID, bson.NewObjectID().Hex())
	assert.ErrorIs(t, err, models.ErrNotRoomMember)
}

func TestStepDown(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	room, ownerID := env.seedRoom(t, defaultSettings())
	bob := bson.NewObjectID()
	env.seedMember(t, room.ID, bob, "bob", models.RoleListener)

	err := env.svc.DJ.StepDown(ctx, room.ID, bob.Hex())
	assert.ErrorIs(t, err, models.ErrNotDJ)

	seedDJ(t, env, room.ID, bob.Hex())
	require.NoError(t, env.svc.DJ.StepDown(ctx, room.ID, bob.Hex()))

	current, err := env.svc.DJ.CurrentDJ(ctx, room.ID.Hex())
	require.NoError(t, err)
	assert.Empty(t, current)

	removed, ok := env.bus.last(models.EventDJRemoved)
	require.True(t, ok)
	assert.Equal(t, models.ReasonVoluntary, removed.Data.(models.DJRemoved).Reason)

	// The former DJ drops back to listener; owners get their role back.
	membership, err := env.roomRepo.FindMembership(ctx, room.ID, bob)
	require.NoError(t, err)
	assert.Equal(t, models.RoleListener, membership.Role)

	seedDJ(t, env, room.ID, ownerID.Hex())
	require.NoError(t, env.svc.DJ.StepDown(ctx, room.ID, ownerID.Hex()))
	membership, err = env.roomRepo.FindMembership(ctx, room.ID, ownerID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleOwner, membership.Role)
}

func TestStepDownStopsPlayback(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	room, ownerID := env.seedRoom(t, defaultSettings())
	dj := ownerID.Hex()
	seedDJ(t, env, room.ID, dj)

	entry := env.seedSubmission(t, room.ID, ownerID, "Track")
	require.NoError(t, env.svc.Playback.Start(ctx, room.ID, dj, entry.ID.Hex()))

	require.NoError(t, env.svc.DJ.StepDown(ctx, room.ID, dj))

	stop, ok := env.bus.last(models.EventPlaybackStop)
	require.True(t, ok)
	assert.Equal(t, "dj_removed", stop.Data.(models.PlaybackStop).Reason)

	record, err := env.state.GetPlayback(ctx, room.ID.Hex())
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestSetDJ(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	room, ownerID := env.seedRoom(t, defaultSettings())
	bob := bson.NewObjectID()
	carol := bson.NewObjectID()
	env.seedMember(t, room.ID, bob, "bob", models.RoleListener)
	env.seedMember(t, room.ID, carol, "carol", models.RoleListener)

	err := env.svc.DJ.SetDJ(ctx, room.ID, bob, carol.Hex())
	assert.ErrorIs(t, err, models.ErrNotRoomOwner)

	require.NoError(t, env.svc.DJ.SetDJ(ctx, room.ID, ownerID, bob.Hex()))
	current, err := env.svc.DJ.CurrentDJ(ctx, room.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, bob.Hex(), current)

	changed, ok := env.bus.last(models.EventDJChanged)
	require.True(t, ok)
	assert.Equal(t, models.ReasonOwnerSet, changed.Data.(models.DJChanged).Reason)
	env.bus.reset()

	// Assigning the current holder again changes nothing.
	require.NoError(t, env.svc.DJ.SetDJ(ctx, room.ID, ownerID, bob.Hex()))
	assert.Empty(t, env.bus.types())

	// Reassignment hands the slot over and restores the old DJ's role.
	require.NoError(t, env.svc.DJ.SetDJ(ctx, room.ID, ownerID, carol.Hex()))
	membership, err := env.roomRepo.FindMembership(ctx, room.ID, bob)
	require.NoError(t, err)
	assert.Equal(t, models.RoleListener, membership.Role)

	// Candidates on cooldown are refused.
	require.NoError(t, env.state.SetDJCooldown(ctx, room.ID.Hex(), bob.Hex(), time.Minute))
	err = env.svc.DJ.SetDJ(ctx, room.ID, ownerID, bob.Hex())
	assert.ErrorIs(t, err, models.ErrDJCooldownActive)
}

func TestRandomizeDJ(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	room, ownerID := env.seedRoom(t, defaultSettings())
	bob := bson.NewObjectID()
	env.seedMember(t, room.ID, bob, "bob", models.RoleListener)

	// Listeners may not roll the dice.
	err := env.svc.DJ.RandomizeDJ(ctx, room.ID, bob.Hex())
	require.Error(t, err)
	assert.Equal(t, models.KindForbidden, models.Kind(err))

	// With the owner as current DJ and bob on cooldown there is no
	// candidate, so the slot stays put.
	seedDJ(t, env, room.ID, ownerID.Hex())
	require.NoError(t, env.state.SetDJCooldown(ctx, room.ID.Hex(), bob.Hex(), time.Minute))
	require.NoError(t, env.svc.DJ.RandomizeDJ(ctx, room.ID, ownerID.Hex()))
	current, err := env.svc.DJ.CurrentDJ(ctx, room.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, ownerID.Hex(), current)

	// Once the cooldown lapses, bob is the only possible pick.
	env.mr.FastForward(2 * time.Minute)
	require.NoError(t, env.svc.DJ.RandomizeDJ(ctx, room.ID, ownerID.Hex()))
	current, err = env.svc.DJ.CurrentDJ(ctx, room.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, bob.Hex(), current)

	changed, ok := env.bus.last(models.EventDJChanged)
	require.True(t, ok)
	assert.Equal(t, models.ReasonRandomize, changed.Data.(models.DJChanged).Reason)
}

func TestDJHistoryAudit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	room, _ := env.seedRoom(t, defaultSettings())
	bob := bson.NewObjectID()
	env.seedMember(t, room.ID, bob, "bob", models.RoleListener)

	seedDJ(t, env, room.ID, bob.Hex())
	require.NoError(t, env.svc.DJ.StepDown(ctx, room.ID, bob.Hex()))

	entries, err := env.histRepo.FindDJHistoryByRoom(ctx, room.ID, 0, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, bob, entries[0].UserID)
	assert.False(t, entries[0].BecameDJAt.IsZero())
	assert.False(t, entries[0].RemovedAt.IsZero())
	assert.Equal(t, models.ReasonVoluntary, entries[0].Reason)
}
