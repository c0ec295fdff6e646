package room

import (
	"context"
	"math/rand/v2"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"norelock.dev/waveroom/backend/internal/db/mongo/repositories"
	"norelock.dev/waveroom/backend/internal/db/redis/managers"
	"norelock.dev/waveroom/backend/internal/models"
	"norelock.dev/waveroom/backend/internal/utils"
)

// errDJSlotChanged reports a lost compare-and-swap on the DJ slot.
var errDJSlotChanged = models.NewKindError(models.KindConflict, "DJ slot changed concurrently")

// errDJSlotOccupied reports a step-up attempt against a held slot.
var errDJSlotOccupied = models.NewKindError(models.KindConflict, "room already has a DJ")

// DJManager runs the DJ state machine. Every transition flips the slot
// atomically, updates member roles, appends an audit row, and broadcasts
// exactly one dj:changed or dj:removed event.
type DJManager struct {
	roomRepo     repositories.RoomRepository
	historyRepo  repositories.HistoryRepository
	stateManager *managers.RoomStateManager
	broadcaster  Broadcaster
	playback     *PlaybackManager
	locker       *RoomLocker
	logger       *utils.Logger
}

// NewDJManager creates a new DJ manager.
func NewDJManager(
	roomRepo repositories.RoomRepository,
	historyRepo repositories.HistoryRepository,
	stateManager *managers.RoomStateManager,
	broadcaster Broadcaster,
	playback *PlaybackManager,
	locker *RoomLocker,
	logger *utils.Logger,
) *DJManager {
	return &DJManager{
		roomRepo:     roomRepo,
		historyRepo:  historyRepo,
		stateManager: stateManager,
		broadcaster:  broadcaster,
		playback:     playback,
		locker:       locker,
		logger:       logger.Named("dj_manager"),
	}
}

// CurrentDJ returns the user ID holding the DJ slot, or an empty string.
func (m *DJManager) CurrentDJ(ctx context.Context, roomID string) (string, error) {
	return m.stateManager.GetDJ(ctx, roomID)
}

// BecomeDJ lets a member claim a vacant DJ slot.
func (m *DJManager) BecomeDJ(ctx context.Context, roomID bson.ObjectID, userID string) error {
	unlock := m.locker.Lock(roomID.Hex())
	defer unlock()

	room, err := m.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		return err
	}

	if err := m.requireMember(ctx, roomID, userID); err != nil {
		return err
	}

	current, err := m.stateManager.GetDJ(ctx, roomID.Hex())
	if err != nil {
		return err
	}
	if current != "" {
		return errDJSlotOccupied
	}

	onCooldown, err := m.stateManager.IsDJOnCooldown(ctx, roomID.Hex(), userID)
	if err != nil {
		return err
	}
	if onCooldown {
		return models.ErrDJCooldownActive
	}

	return m.transitionLocked(ctx, room, "", userID, models.ReasonVoluntary)
}

// StepDown lets the current DJ vacate the slot.
func (m *DJManager) StepDown(ctx context.Context, roomID bson.ObjectID, userID string) error {
	unlock := m.locker.Lock(roomID.Hex())
	defer unlock()

	room, err := m.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		return err
	}

	current, err := m.stateManager.GetDJ(ctx, roomID.Hex())
	if err != nil {
		return err
	}
	if current != userID {
		return models.ErrNotDJ
	}

	if err := m.vacateLocked(ctx, room, userID, models.ReasonVoluntary); err != nil {
		return err
	}
	m.autoRandomizeLocked(ctx, room, "")
	return nil
}

// SetDJ assigns the DJ slot directly. Owner only.
func (m *DJManager) SetDJ(ctx context.Context, roomID, callerID bson.ObjectID, targetID string) error {
	unlock := m.locker.Lock(roomID.Hex())
	defer unlock()

	room, err := m.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		return err
	}
	if room.OwnerID != callerID {
		return models.ErrNotRoomOwner
	}

	if err := m.requireMember(ctx, roomID, targetID); err != nil {
		return err
	}

	onCooldown, err := m.stateManager.IsDJOnCooldown(ctx, roomID.Hex(), targetID)
	if err != nil {
		return err
	}
	if onCooldown {
		return models.ErrDJCooldownActive
	}

	current, err := m.stateManager.GetDJ(ctx, roomID.Hex())
	if err != nil {
		return err
	}
	if current == targetID {
		return nil
	}

	return m.transitionLocked(ctx, room, current, targetID, models.ReasonOwnerSet)
}

// RandomizeDJ hands the slot to a random member other than the current DJ.
// Owner or current DJ only. A room whose only candidate is the current DJ is
// left unchanged.
func (m *DJManager) RandomizeDJ(ctx context.Context, roomID bson.ObjectID, callerID string) error {
	unlock := m.locker.Lock(roomID.Hex())
	defer unlock()

	room, err := m.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		return err
	}

	current, err := m.stateManager.GetDJ(ctx, roomID.Hex())
	if err != nil {
		return err
	}
	if callerID != room.OwnerID.Hex() && callerID != current {
		return models.NewKindError(models.KindForbidden, "only the owner or the DJ may randomize")
	}

	return m.randomizeLocked(ctx, room, current)
}

// randomizeLocked picks a random eligible member and hands them the slot.
// Members on DJ cooldown are skipped; no candidates means no transition.
func (m *DJManager) randomizeLocked(ctx context.Context, room *models.Room, current string) error {
	members, err := m.roomRepo.FindMembers(ctx, room.ID)
	if err != nil {
		return err
	}

	candidates := make([]string, 0, len(members))
	for _, member := range members {
		id := member.UserID.Hex()
		if id == current {
			continue
		}
		onCooldown, err := m.stateManager.IsDJOnCooldown(ctx, room.ID.Hex(), id)
		if err != nil {
			return err
		}
		if !onCooldown {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	next := candidates[rand.IntN(len(candidates))]
	return m.transitionLocked(ctx, room, current, next, models.ReasonRandomize)
}

// vacateLocked empties the DJ slot with the given reason.
func (m *DJManager) vacateLocked(ctx context.Context, room *models.Room, userID, reason string) error {
	return m.transitionLocked(ctx, room, userID, "", reason)
}

// autoRandomizeLocked refills a vacated slot when the room asks for it.
// exclude keeps the just-removed holder out of the draw. Best effort.
func (m *DJManager) autoRandomizeLocked(ctx context.Context, room *models.Room, exclude string) {
	if !room.Settings.AutoRandomizeDJ {
		return
	}
	if err := m.randomizeLocked(ctx, room, exclude); err != nil {
		m.logger.Error("Auto-randomize after DJ vacation failed", err, "roomId", room.ID.Hex())
	}
}

// electLocked installs an election winner. Called by the vote engine with the
// room lock held.
func (m *DJManager) electLocked(ctx context.Context, room *models.Room, winnerID string) error {
	current, err := m.stateManager.GetDJ(ctx, room.ID.Hex())
	if err != nil {
		return err
	}
	if current == winnerID {
		return nil
	}
	return m.transitionLocked(ctx, room, current, winnerID, models.ReasonVote)
}

// mutinyRemoveLocked removes the DJ after a passed mutiny, starting their DJ
// cooldown before any auto-randomize can re-pick them.
func (m *DJManager) mutinyRemoveLocked(ctx context.Context, room *models.Room, djID string) error {
	cooldown := time.Duration(room.Settings.DJCooldownMinutes) * time.Minute
	if err := m.stateManager.SetDJCooldown(ctx, room.ID.Hex(), djID, cooldown); err != nil {
		m.logger.Error("Failed to set DJ cooldown", err, "roomId", room.ID.Hex(), "userId", djID)
	}

	if err := m.vacateLocked(ctx, room, djID, models.ReasonMutiny); err != nil {
		return err
	}
	m.autoRandomizeLocked(ctx, room, djID)
	return nil
}

// transitionLocked performs one atomic DJ transition: slot flip, role
// updates, audit row, and the single dj:changed or dj:removed broadcast.
// Removal without a successor stops active playback.
func (m *DJManager) transitionLocked(ctx context.Context, room *models.Room, from, to, reason string) error {
	roomID := room.ID.Hex()

	swapped, err := m.stateManager.SwapDJ(ctx, roomID, from, to)
	if err != nil {
		return err
	}
	if !swapped {
		return errDJSlotChanged
	}

	now := time.Now()

	if from != "" {
		if err := m.historyRepo.CloseDJHistory(ctx, room.ID, now, reason); err != nil {
			m.logger.Error("Failed to close DJ history", err, "roomId", roomID, "userId", from)
		}
		if err := m.restoreRoleLocked(ctx, room, from); err != nil {
			m.logger.Error("Failed to restore previous DJ role", err, "roomId", roomID, "userId", from)
		}
	}

	if to != "" {
		toID, err := bson.ObjectIDFromHex(to)
		if err != nil {
			return models.NewInternalError(err)
		}

		membership, err := m.roomRepo.FindMembership(ctx, room.ID, toID)
		if err != nil {
			return err
		}

		if err := m.historyRepo.CreateDJHistory(ctx, &models.DJHistoryEntry{
			RoomID:     room.ID,
			UserID:     toID,
			BecameDJAt: now,
		}); err != nil {
			m.logger.Error("Failed to record DJ history", err, "roomId", roomID, "userId", to)
		}

		if err := m.roomRepo.SetMemberRole(ctx, room.ID, toID, models.RoleDJ); err != nil {
			return err
		}

		m.publish(ctx, roomID, models.EventDJChanged, models.DJChanged{
			DJID:     to,
			Username: membership.Username,
			Reason:   reason,
		})
		m.logger.Info("DJ changed", "roomId", roomID, "djId", to, "reason", reason)
		return nil
	}

	m.publish(ctx, roomID, models.EventDJRemoved, models.DJRemoved{DJID: from, Reason: reason})
	m.logger.Info("DJ removed", "roomId", roomID, "djId", from, "reason", reason)

	record, err := m.stateManager.GetPlayback(ctx, roomID)
	if err != nil {
		return err
	}
	if record != nil {
		return m.playback.stopLocked(ctx, roomID, "dj_removed")
	}
	return nil
}

// restoreRoleLocked returns a departing DJ to owner or listener.
func (m *DJManager) restoreRoleLocked(ctx context.Context, room *models.Room, userID string) error {
	id, err := bson.ObjectIDFromHex(userID)
	if err != nil {
		return models.NewInternalError(err)
	}

	role := models.RoleListener
	if room.OwnerID == id {
		role = models.RoleOwner
	}
	return m.roomRepo.SetMemberRole(ctx, room.ID, id, role)
}

// requireMember verifies the user is a member of the room.
func (m *DJManager) requireMember(ctx context.Context, roomID bson.ObjectID, userID string) error {
	id, err := bson.ObjectIDFromHex(userID)
	if err != nil {
		return models.ErrNotRoomMember
	}
	_, err = m.roomRepo.FindMembership(ctx, roomID, id)
	return err
}

func (m *DJManager) publish(ctx context.Context, roomID, eventType string, data any) {
	if err := m.broadcaster.PublishToRoom(ctx, roomID, eventType, data); err != nil {
		m.logger.Error("Failed to broadcast DJ event", err, "roomId", roomID, "type", eventType)
	}
}
