package room

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"norelock.dev/waveroom/backend/internal/db/mongo/repositories"
	"norelock.dev/waveroom/backend/internal/db/redis/managers"
	"norelock.dev/waveroom/backend/internal/models"
	"norelock.dev/waveroom/backend/internal/utils"
)

// LatencyProvider reports the most recent round-trip times of a room's
// connected members. Members without a sync report are omitted.
type LatencyProvider interface {
	MemberRTTs(ctx context.Context, roomID string) ([]int64, error)
}

// errNothingPlaying reports a playback operation against an idle room.
var errNothingPlaying = models.NewKindError(models.KindNotFound, "nothing is playing")

// PlaybackManager schedules synchronized playback. Starts are scheduled a
// lead ahead of now so every member's client receives the event before the
// start instant; the lead grows with the room's observed round-trip times.
type PlaybackManager struct {
	roomRepo       repositories.RoomRepository
	submissionRepo repositories.SubmissionRepository
	stateManager   *managers.RoomStateManager
	broadcaster    Broadcaster
	latency        LatencyProvider
	queue          *QueueManager
	locker         *RoomLocker
	leadMin        time.Duration
	leadMax        time.Duration
	logger         *utils.Logger
}

// NewPlaybackManager creates a new playback manager.
func NewPlaybackManager(
	roomRepo repositories.RoomRepository,
	submissionRepo repositories.SubmissionRepository,
	stateManager *managers.RoomStateManager,
	broadcaster Broadcaster,
	latency LatencyProvider,
	queue *QueueManager,
	locker *RoomLocker,
	leadMin, leadMax time.Duration,
	logger *utils.Logger,
) *PlaybackManager {
	return &PlaybackManager{
		roomRepo:       roomRepo,
		submissionRepo: submissionRepo,
		stateManager:   stateManager,
		broadcaster:    broadcaster,
		latency:        latency,
		queue:          queue,
		locker:         locker,
		leadMin:        leadMin,
		leadMax:        leadMax,
		logger:         logger.Named("playback_manager"),
	}
}

// Start begins synchronized playback of a queue entry. DJ only, or the owner
// while the DJ slot is vacant. Starting while a track is active replaces it.
func (m *PlaybackManager) Start(ctx context.Context, roomID bson.ObjectID, userID, entryID string) error {
	unlock := m.locker.Lock(roomID.Hex())
	defer unlock()

	if err := m.requireDJ(ctx, roomID, userID); err != nil {
		return err
	}

	id, err := bson.ObjectIDFromHex(entryID)
	if err != nil {
		return models.ErrEntryNotFound
	}

	submission, err := m.submissionRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if submission.RoomID != roomID || submission.Played {
		return models.ErrEntryNotFound
	}

	if err := m.submissionRepo.MarkPlayed(ctx, id); err != nil {
		return err
	}

	if err := m.startLocked(ctx, roomID.Hex(), entryID, submission.Media, userID); err != nil {
		return err
	}

	// The entry left the queue.
	m.queue.broadcastQueueLocked(ctx, roomID)
	return nil
}

// ReportEnded advances the room after the DJ reports the current track done:
// the queue head starts automatically, or playback stops on an empty queue.
// Stale or duplicate reports are ignored.
func (m *PlaybackManager) ReportEnded(ctx context.Context, roomID bson.ObjectID, userID, entryID string) error {
	unlock := m.locker.Lock(roomID.Hex())
	defer unlock()

	if err := m.requireDJ(ctx, roomID, userID); err != nil {
		return err
	}

	record, err := m.stateManager.GetPlayback(ctx, roomID.Hex())
	if err != nil {
		return err
	}
	if record == nil || record.EntryID != entryID {
		m.logger.Debug("Ignoring stale playback end report", "roomId", roomID.Hex(), "entryId", entryID)
		return nil
	}

	next, err := m.submissionRepo.PopNext(ctx, roomID)
	if err != nil {
		return err
	}
	if next == nil {
		return m.stopLocked(ctx, roomID.Hex(), "queue_empty")
	}

	if err := m.startLocked(ctx, roomID.Hex(), next.ID.Hex(), next.Media, userID); err != nil {
		return err
	}

	m.queue.broadcastQueueLocked(ctx, roomID)
	return nil
}

// Pause pauses playback at the given track position. Same authorization as
// Start.
func (m *PlaybackManager) Pause(ctx context.Context, roomID bson.ObjectID, userID string, positionMs int64) error {
	unlock := m.locker.Lock(roomID.Hex())
	defer unlock()

	if err := m.requireDJ(ctx, roomID, userID); err != nil {
		return err
	}

	record, err := m.stateManager.GetPlayback(ctx, roomID.Hex())
	if err != nil {
		return err
	}
	if record == nil || !record.IsPlaying {
		return errNothingPlaying
	}

	record.IsPlaying = false
	record.PausedAtMs = positionMs
	if err := m.stateManager.SetPlayback(ctx, roomID.Hex(), record); err != nil {
		return err
	}

	m.publish(ctx, roomID.Hex(), models.EventPlaybackPause, models.PlaybackPause{PausedAtMs: positionMs})
	return nil
}

// Resume resumes paused playback, rescheduling the start instant so every
// client lands on the paused position at the same moment.
func (m *PlaybackManager) Resume(ctx context.Context, roomID bson.ObjectID, userID string) error {
	unlock := m.locker.Lock(roomID.Hex())
	defer unlock()

	if err := m.requireDJ(ctx, roomID, userID); err != nil {
		return err
	}

	record, err := m.stateManager.GetPlayback(ctx, roomID.Hex())
	if err != nil {
		return err
	}
	if record == nil || record.IsPlaying {
		return errNothingPlaying
	}

	lead := m.computeLead(ctx, roomID.Hex())
	record.StartAtServerMs = utils.NowMs() + lead.Milliseconds() - record.PausedAtMs
	record.IsPlaying = true
	record.PausedAtMs = 0
	if err := m.stateManager.SetPlayback(ctx, roomID.Hex(), record); err != nil {
		return err
	}

	m.publish(ctx, roomID.Hex(), models.EventPlaybackStart, models.PlaybackStart{
		EntryID:         record.EntryID,
		Media:           record.Media,
		StartAtServerMs: record.StartAtServerMs,
		ServerNowMs:     utils.NowMs(),
		DurationSeconds: record.Media.DurationSeconds,
	})
	return nil
}

// Stop halts playback. Same authorization as Start.
func (m *PlaybackManager) Stop(ctx context.Context, roomID bson.ObjectID, userID string) error {
	unlock := m.locker.Lock(roomID.Hex())
	defer unlock()

	if err := m.requireDJ(ctx, roomID, userID); err != nil {
		return err
	}

	record, err := m.stateManager.GetPlayback(ctx, roomID.Hex())
	if err != nil {
		return err
	}
	if record == nil {
		return errNothingPlaying
	}

	return m.stopLocked(ctx, roomID.Hex(), "stopped")
}

// startLocked schedules a synchronized start and broadcasts it.
func (m *PlaybackManager) startLocked(ctx context.Context, roomID, entryID string, media models.MediaInfo, startedBy string) error {
	lead := m.computeLead(ctx, roomID)
	startAt := utils.NowMs() + lead.Milliseconds()

	record := &models.PlaybackRecord{
		EntryID:         entryID,
		Media:           media,
		StartAtServerMs: startAt,
		StartedBy:       startedBy,
		IsPlaying:       true,
	}
	if err := m.stateManager.SetPlayback(ctx, roomID, record); err != nil {
		return err
	}

	m.publish(ctx, roomID, models.EventPlaybackStart, models.PlaybackStart{
		EntryID:         entryID,
		Media:           media,
		StartAtServerMs: startAt,
		ServerNowMs:     utils.NowMs(),
		DurationSeconds: media.DurationSeconds,
	})

	m.logger.Info("Playback scheduled", "roomId", roomID, "entryId", entryID, "startAtMs", startAt, "leadMs", lead.Milliseconds())
	return nil
}

// stopLocked clears the playback record and broadcasts playback:stop.
func (m *PlaybackManager) stopLocked(ctx context.Context, roomID, reason string) error {
	if err := m.stateManager.ClearPlayback(ctx, roomID); err != nil {
		return err
	}
	m.publish(ctx, roomID, models.EventPlaybackStop, models.PlaybackStop{Reason: reason})
	m.logger.Info("Playback stopped", "roomId", roomID, "reason", reason)
	return nil
}

// computeLead derives the scheduling lead from member round-trip times:
// three times the p95 RTT, clamped to the configured bounds. Rooms without
// latency reports get the minimum lead.
func (m *PlaybackManager) computeLead(ctx context.Context, roomID string) time.Duration {
	var rtts []int64
	if m.latency != nil {
		var err error
		rtts, err = m.latency.MemberRTTs(ctx, roomID)
		if err != nil {
			m.logger.Warn("Failed to collect member RTTs", "roomId", roomID, "error", err)
		}
	}

	lead := time.Duration(3*utils.Percentile(rtts, 95)) * time.Millisecond
	if lead < m.leadMin {
		lead = m.leadMin
	}
	if lead > m.leadMax {
		lead = m.leadMax
	}
	return lead
}

// snapshotLocked builds the playback part of room:state.
func (m *PlaybackManager) snapshotLocked(ctx context.Context, roomID string) (models.PlaybackSnapshot, error) {
	record, err := m.stateManager.GetPlayback(ctx, roomID)
	if err != nil {
		return models.PlaybackSnapshot{}, err
	}
	if record == nil || !record.IsPlaying {
		return models.PlaybackSnapshot{}, nil
	}

	media := record.Media
	return models.PlaybackSnapshot{
		Playing:         true,
		EntryID:         record.EntryID,
		Media:           &media,
		StartAtServerMs: record.StartAtServerMs,
		ServerNowMs:     utils.NowMs(),
	}, nil
}

// requireDJ verifies the caller holds the DJ slot. While the slot is vacant,
// the room owner controls playback instead.
func (m *PlaybackManager) requireDJ(ctx context.Context, roomID bson.ObjectID, userID string) error {
	current, err := m.stateManager.GetDJ(ctx, roomID.Hex())
	if err != nil {
		return err
	}
	if current == userID {
		return nil
	}
	if current == "" {
		room, err := m.roomRepo.FindByID(ctx, roomID)
		if err != nil {
			return err
		}
		if room.OwnerID.Hex() == userID {
			return nil
		}
	}
	return models.ErrNotDJ
}

func (m *PlaybackManager) publish(ctx context.Context, roomID, eventType string, data any) {
	if err := m.broadcaster.PublishToRoom(ctx, roomID, eventType, data); err != nil {
		m.logger.Error("Failed to broadcast playback event", err, "roomId", roomID, "type", eventType)
	}
}
