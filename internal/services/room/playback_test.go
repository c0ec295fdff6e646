package room

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"norelock.dev/waveroom/backend/internal/models"
	"norelock.dev/waveroom/backend/internal/utils"
)

func TestPlaybackStartRequiresDJ(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	room, ownerID := env.seedRoom(t, defaultSettings())
	bob := bson.NewObjectID()
	env.seedMember(t, room.ID, bob, "bob", models.RoleListener)
	seedDJ(t, env, room.ID, bob.Hex())

	entry := env.seedSubmission(t, room.ID, ownerID, "Track")

	// While the slot is held, nobody but its holder controls playback, the
	// owner included.
	err := env.svc.Playback.Start(ctx, room.ID, ownerID.Hex(), entry.ID.Hex())
	assert.ErrorIs(t, err, models.ErrNotDJ)
}

func TestPlaybackOwnerControlsWithoutDJ(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	room, ownerID := env.seedRoom(t, defaultSettings())
	bob := bson.NewObjectID()
	env.seedMember(t, room.ID, bob, "bob", models.RoleListener)

	entry := env.seedSubmission(t, room.ID, ownerID, "Track")

	// A listener cannot drive a DJ-less room.
	err := env.svc.Playback.Start(ctx, room.ID, bob.Hex(), entry.ID.Hex())
	assert.ErrorIs(t, err, models.ErrNotDJ)

	// The owner controls playback while the slot is vacant.
	require.NoError(t, env.svc.Playback.Start(ctx, room.ID, ownerID.Hex(), entry.ID.Hex()))
	require.NoError(t, env.svc.Playback.Pause(ctx, room.ID, ownerID.Hex(), 1000))
	require.NoError(t, env.svc.Playback.Resume(ctx, room.ID, ownerID.Hex()))
	require.NoError(t, env.svc.Playback.Stop(ctx, room.ID, ownerID.Hex()))

	stop, ok := env.bus.last(models.EventPlaybackStop)
	require.True(t, ok)
	assert.Equal(t, "stopped", stop.Data.(models.PlaybackStop).Reason)
}

func TestPlaybackStartSchedulesLead(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	room, ownerID := env.seedRoom(t, defaultSettings())
	seedDJ(t, env, room.ID, ownerID.Hex())

	entry := env.seedSubmission(t, room.ID, ownerID, "Track")
	require.NoError(t, env.svc.Playback.Start(ctx, room.ID, ownerID.Hex(), entry.ID.Hex()))

	event, ok := env.bus.last(models.EventPlaybackStart)
	require.True(t, ok)
	start := event.Data.(models.PlaybackStart)
	assert.Equal(t, entry.ID.Hex(), start.EntryID)
	assert.Equal(t, entry.Media.SourceID, start.Media.SourceID)
	// No latency reports yet, so the minimum lead applies.
	lead := start.StartAtServerMs - utils.NowMs()
	assert.Greater(t, lead, int64(300))
	assert.LessOrEqual(t, lead, int64(500))

	record, err := env.state.GetPlayback(ctx, room.ID.Hex())
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.True(t, record.IsPlaying)
	assert.Equal(t, ownerID.Hex(), record.StartedBy)

	// The started entry is consumed.
	err = env.svc.Playback.Start(ctx, room.ID, ownerID.Hex(), entry.ID.Hex())
	assert.ErrorIs(t, err, models.ErrEntryNotFound)
}

func TestPlaybackLeadClampsToMax(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	room, ownerID := env.seedRoom(t, defaultSettings())
	seedDJ(t, env, room.ID, ownerID.Hex())

	// 3x the p95 RTT would be 3 seconds; the configured ceiling is 2.
	env.latency.rtts = []int64{1000, 1000, 1000}

	entry := env.seedSubmission(t, room.ID, ownerID, "Track")
	require.NoError(t, env.svc.Playback.Start(ctx, room.ID, ownerID.Hex(), entry.ID.Hex()))

	event, ok := env.bus.last(models.EventPlaybackStart)
	require.True(t, ok)
	start := event.Data.(models.PlaybackStart)
	lead := start.StartAtServerMs - utils.NowMs()
	assert.Greater(t, lead, int64(1800))
	assert.LessOrEqual(t, lead, int64(2000))
}

func TestPlaybackPauseResume(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	room, ownerID := env.seedRoom(t, defaultSettings())
	dj := ownerID.Hex()
	seedDJ(t, env, room.ID, dj)

	// Nothing to pause yet.
	err := env.svc.Playback.Pause(ctx, room.ID, dj, 1000)
	assert.ErrorIs(t, err, errNothingPlaying)

	entry := env.seedSubmission(t, room.ID, ownerID, "Track")
	require.NoError(t, env.svc.Playback.Start(ctx, room.ID, dj, entry.ID.Hex()))

	require.NoError(t, env.svc.Playback.Pause(ctx, room.ID, dj, 42000))
	paused, ok := env.bus.last(models.EventPlaybackPause)
	require.True(t, ok)
	assert.Equal(t, int64(42000), paused.Data.(models.PlaybackPause).PausedAtMs)

	// Double pause is rejected.
	err = env.svc.Playback.Pause(ctx, room.ID, dj, 43000)
	assert.ErrorIs(t, err, errNothingPlaying)

	require.NoError(t, env.svc.Playback.Resume(ctx, room.ID, dj))
	record, err := env.state.GetPlayback(ctx, room.ID.Hex())
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.True(t, record.IsPlaying)
	assert.Zero(t, record.PausedAtMs)
	// Resuming rewinds the start instant so position 42000 lands after the
	// lead: startAt = now + lead - pausedAt.
	offset := utils.NowMs() - record.StartAtServerMs
	assert.Greater(t, offset, int64(41000))
	assert.Less(t, offset, int64(42000))

	err = env.svc.Playback.Resume(ctx, room.ID, dj)
	assert.ErrorIs(t, err, errNothingPlaying)
}

func TestPlaybackReportEndedAdvancesQueue(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	room, ownerID := env.seedRoom(t, defaultSettings())
	dj := ownerID.Hex()
	seedDJ(t, env, room.ID, dj)

	bob := bson.NewObjectID()
	env.seedMember(t, room.ID, bob, "bob", models.RoleListener)

	first := env.seedSubmission(t, room.ID, ownerID, "First")
	second := env.seedSubmission(t, room.ID, ownerID, "Second")
	require.NoError(t, env.svc.Playback.Start(ctx, room.ID, dj, first.ID.Hex()))
	env.bus.reset()

	// A stale report for an entry that is not current is ignored.
	require.NoError(t, env.svc.Playback.ReportEnded(ctx, room.ID, dj, second.ID.Hex()))
	assert.Empty(t, env.bus.types())

	// Ending the current track starts the queue head.
	require.NoError(t, env.svc.Playback.ReportEnded(ctx, room.ID, dj, first.ID.Hex()))
	event, ok := env.bus.last(models.EventPlaybackStart)
	require.True(t, ok)
	assert.Equal(t, second.ID.Hex(), event.Data.(models.PlaybackStart).EntryID)

	// Ending the last track stops playback.
	require.NoError(t, env.svc.Playback.ReportEnded(ctx, room.ID, dj, second.ID.Hex()))
	stop, ok := env.bus.last(models.EventPlaybackStop)
	require.True(t, ok)
	assert.Equal(t, "queue_empty", stop.Data.(models.PlaybackStop).Reason)

	record, err := env.state.GetPlayback(ctx, room.ID.Hex())
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestPlaybackStop(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	room, ownerID := env.seedRoom(t, defaultSettings())
	dj := ownerID.Hex()
	seedDJ(t, env, room.ID, dj)

	err := env.svc.Playback.Stop(ctx, room.ID, dj)
	assert.ErrorIs(t, err, errNothingPlaying)

	entry := env.seedSubmission(t, room.ID, ownerID, "Track")
	require.NoError(t, env.svc.Playback.Start(ctx, room.ID, dj, entry.ID.Hex()))
	require.NoError(t, env.svc.Playback.Stop(ctx, room.ID, dj))

	stop, ok := env.bus.last(models.EventPlaybackStop)
	require.True(t, ok)
	assert.Equal(t, "stopped", stop.Data.(models.PlaybackStop).Reason)
}
