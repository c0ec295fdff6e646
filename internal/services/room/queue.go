package room

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	"norelock.dev/waveroom/backend/internal/db/mongo/repositories"
	"norelock.dev/waveroom/backend/internal/db/redis/managers"
	"norelock.dev/waveroom/backend/internal/models"
	"norelock.dev/waveroom/backend/internal/services/media"
	"norelock.dev/waveroom/backend/internal/utils"
)

// QueueManager runs the voted queue: submissions ordered by net score with
// submission time as the tie-break. Every mutation ends in exactly one
// queue:updated broadcast.
type QueueManager struct {
	roomRepo       repositories.RoomRepository
	submissionRepo repositories.SubmissionRepository
	stateManager   *managers.RoomStateManager
	broadcaster    Broadcaster
	resolver       *media.Resolver
	locker         *RoomLocker
	logger         *utils.Logger
}

// NewQueueManager creates a new queue manager.
func NewQueueManager(
	roomRepo repositories.RoomRepository,
	submissionRepo repositories.SubmissionRepository,
	stateManager *managers.RoomStateManager,
	broadcaster Broadcaster,
	resolver *media.Resolver,
	locker *RoomLocker,
	logger *utils.Logger,
) *QueueManager {
	return &QueueManager{
		roomRepo:       roomRepo,
		submissionRepo: submissionRepo,
		stateManager:   stateManager,
		broadcaster:    broadcaster,
		resolver:       resolver,
		locker:         locker,
		logger:         logger.Named("queue_manager"),
	}
}

// Add resolves a media URL and appends it to the room's queue. Resolution
// happens before the room lock is taken; an upstream lookup must not stall
// the room's mutation pipeline.
func (m *QueueManager) Add(ctx context.Context, roomID, userID bson.ObjectID, username string, req *models.AddToQueueRequest) (*models.Submission, error) {
	if err := utils.Validate(req); err != nil {
		return nil, models.ErrInvalidInput.WithContext("fields", utils.FormatValidationErrors(err)).Wrap(err)
	}

	if _, err := m.roomRepo.FindMembership(ctx, roomID, userID); err != nil {
		return nil, err
	}

	info, err := m.resolver.ResolveURL(ctx, req.URL)
	if err != nil {
		return nil, err
	}

	unlock := m.locker.Lock(roomID.Hex())
	defer unlock()

	room, err := m.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.IsActive {
		return nil, models.ErrRoomInactive
	}

	submission := &models.Submission{
		RoomID:        roomID,
		SubmitterID:   userID,
		SubmitterName: username,
		Media:         *info,
	}
	if err := m.submissionRepo.Create(ctx, submission); err != nil {
		return nil, err
	}

	m.broadcastQueueLocked(ctx, roomID)
	m.logger.Info("Queue entry added", "roomId", roomID.Hex(), "entryId", submission.ID.Hex(), "userId", userID.Hex())
	return submission, nil
}

// Upvote casts a +1 ballot on an entry.
func (m *QueueManager) Upvote(ctx context.Context, roomID, userID bson.ObjectID, entryID string) error {
	return m.vote(ctx, roomID, userID, entryID, models.BallotUp)
}

// Downvote casts a -1 ballot on an entry.
func (m *QueueManager) Downvote(ctx context.Context, roomID, userID bson.ObjectID, entryID string) error {
	return m.vote(ctx, roomID, userID, entryID, models.BallotDown)
}

// ClearVote withdraws the caller's ballot from an entry.
func (m *QueueManager) ClearVote(ctx context.Context, roomID, userID bson.ObjectID, entryID string) error {
	return m.vote(ctx, roomID, userID, entryID, 0)
}

// vote applies a ballot transition. Re-casting the same polarity is
// idempotent and broadcasts nothing; an opposite ballot replaces the old one.
// Submitters cannot vote on their own entries.
func (m *QueueManager) vote(ctx context.Context, roomID, userID bson.ObjectID, entryID string, next int) error {
	if _, err := m.roomRepo.FindMembership(ctx, roomID, userID); err != nil {
		return err
	}

	unlock := m.locker.Lock(roomID.Hex())
	defer unlock()

	submission, err := m.entryLocked(ctx, roomID, entryID)
	if err != nil {
		return err
	}
	if submission.SubmitterID == userID {
		return models.ErrOwnEntryVote
	}

	voterHex := userID.Hex()
	previous := submission.Ballots[voterHex]
	if previous == next {
		return nil
	}

	if err := m.submissionRepo.SetBallot(ctx, submission.ID, voterHex, previous, next); err != nil {
		return err
	}

	room, err := m.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		return err
	}

	newScore := submission.NetScore + next - previous
	if room.Settings.AutoRemoveScore < 0 && newScore <= room.Settings.AutoRemoveScore {
		if err := m.submissionRepo.Delete(ctx, submission.ID); err != nil {
			return err
		}
		m.publish(ctx, roomID.Hex(), models.EventEntryRemoved, models.EntryRemoved{
			EntryID: submission.ID.Hex(),
			Reason:  "downvoted",
		})
		m.logger.Info("Queue entry auto-removed", "roomId", roomID.Hex(), "entryId", submission.ID.Hex(), "netScore", newScore)
	}

	m.broadcastQueueLocked(ctx, roomID)
	return nil
}

// Remove deletes an entry. Only its submitter or the room owner may remove it.
func (m *QueueManager) Remove(ctx context.Context, roomID, userID bson.ObjectID, entryID string) error {
	unlock := m.locker.Lock(roomID.Hex())
	defer unlock()

	submission, err := m.entryLocked(ctx, roomID, entryID)
	if err != nil {
		return err
	}

	room, err := m.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		return err
	}
	if submission.SubmitterID != userID && room.OwnerID != userID {
		return models.ErrEntryNotRemovable
	}

	if err := m.submissionRepo.Delete(ctx, submission.ID); err != nil {
		return err
	}

	m.publish(ctx, roomID.Hex(), models.EventEntryRemoved, models.EntryRemoved{
		EntryID: submission.ID.Hex(),
		Reason:  "removed",
	})
	m.broadcastQueueLocked(ctx, roomID)
	m.logger.Info("Queue entry removed", "roomId", roomID.Hex(), "entryId", submission.ID.Hex(), "userId", userID.Hex())
	return nil
}

// List returns the queue in play order with the caller's own ballots
// resolved.
func (m *QueueManager) List(ctx context.Context, roomID bson.ObjectID, callerID string) ([]models.QueueEntry, error) {
	submissions, err := m.submissionRepo.FindQueue(ctx, roomID)
	if err != nil {
		return nil, err
	}

	entries := make([]models.QueueEntry, 0, len(submissions))
	for _, submission := range submissions {
		entries = append(entries, submission.Entry(callerID))
	}
	return entries, nil
}

// entryLocked loads an unplayed entry belonging to the room.
func (m *QueueManager) entryLocked(ctx context.Context, roomID bson.ObjectID, entryID string) (*models.Submission, error) {
	id, err := bson.ObjectIDFromHex(entryID)
	if err != nil {
		return nil, models.ErrEntryNotFound
	}

	submission, err := m.submissionRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if submission.RoomID != roomID || submission.Played {
		return nil, models.ErrEntryNotFound
	}
	return submission, nil
}

// broadcastQueueLocked publishes the full ordered queue. Ballots are omitted
// from the shared broadcast; clients overlay their own votes.
func (m *QueueManager) broadcastQueueLocked(ctx context.Context, roomID bson.ObjectID) {
	submissions, err := m.submissionRepo.FindQueue(ctx, roomID)
	if err != nil {
		m.logger.Error("Failed to load queue for broadcast", err, "roomId", roomID.Hex())
		return
	}

	update := models.QueueUpdate{
		Entries: make([]models.QueueEntry, 0, len(submissions)),
	}
	for _, submission := range submissions {
		update.Entries = append(update.Entries, submission.Entry(""))
	}

	record, err := m.stateManager.GetPlayback(ctx, roomID.Hex())
	if err != nil {
		m.logger.Error("Failed to load playback for queue broadcast", err, "roomId", roomID.Hex())
	} else if record != nil {
		update.CurrentlyPlaying = record.EntryID
	}

	m.publish(ctx, roomID.Hex(), models.EventQueueUpdated, update)
}

func (m *QueueManager) publish(ctx context.Context, roomID, eventType string, data any) {
	if err := m.broadcaster.PublishToRoom(ctx, roomID, eventType, data); err != nil {
		m.logger.Error("Failed to broadcast queue event", err, "roomId", roomID, "type", eventType)
	}
}
