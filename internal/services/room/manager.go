// Package room provides services for room management and operations.
package room

import (
	"context"
	"errors"

	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/v2/bson"
	"norelock.dev/waveroom/backend/internal/auth"
	"norelock.dev/waveroom/backend/internal/config"
	"norelock.dev/waveroom/backend/internal/db/mongo/repositories"
	"norelock.dev/waveroom/backend/internal/db/redis/managers"
	"norelock.dev/waveroom/backend/internal/models"
	"norelock.dev/waveroom/backend/internal/utils"
)

// Broadcaster publishes room-scoped and user-scoped events. Mutations publish
// while holding the room lock so events leave in mutation order.
type Broadcaster interface {
	PublishToRoom(ctx context.Context, roomID, eventType string, data any) error
	PublishToUser(ctx context.Context, userID, eventType string, data any) error
}

const (
	// roomCodeAttempts bounds code generation retries before giving up.
	roomCodeAttempts = 10

	// defaultDJCooldownMinutes applies when a room does not configure its own
	// post-mutiny DJ cooldown.
	defaultDJCooldownMinutes = 10
)

// Manager handles room lifecycle: creation, membership, ownership succession,
// deactivation, and the room:state snapshot.
type Manager struct {
	roomRepo       repositories.RoomRepository
	submissionRepo repositories.SubmissionRepository
	stateManager   *managers.RoomStateManager
	broadcaster    Broadcaster
	passwords      *auth.PasswordProvider
	locker         *RoomLocker
	dj             *DJManager
	playback       *PlaybackManager
	votes          *VoteManager
	cfg            *config.Config
	logger         *utils.Logger
}

// NewManager creates a new room manager.
func NewManager(
	roomRepo repositories.RoomRepository,
	submissionRepo repositories.SubmissionRepository,
	stateManager *managers.RoomStateManager,
	broadcaster Broadcaster,
	passwords *auth.PasswordProvider,
	locker *RoomLocker,
	dj *DJManager,
	playback *PlaybackManager,
	votes *VoteManager,
	cfg *config.Config,
	logger *utils.Logger,
) *Manager {
	return &Manager{
		roomRepo:       roomRepo,
		submissionRepo: submissionRepo,
		stateManager:   stateManager,
		broadcaster:    broadcaster,
		passwords:      passwords,
		locker:         locker,
		dj:             dj,
		playback:       playback,
		votes:          votes,
		cfg:            cfg,
		logger:         logger.Named("room_manager"),
	}
}

// CreateRoom creates a room and enrolls the creator as its owner. The join
// code is generated server-side and retried on collision with an active room.
func (m *Manager) CreateRoom(ctx context.Context, ownerID bson.ObjectID, ownerName string, req *models.CreateRoomRequest) (*models.Room, error) {
	if err := utils.Validate(req); err != nil {
		return nil, models.ErrInvalidInput.WithContext("fields", utils.FormatValidationErrors(err)).Wrap(err)
	}

	settings := m.defaultSettings()
	if req.Settings != nil {
		settings = *req.Settings
		if err := utils.Validate(&settings); err != nil {
			return nil, models.ErrInvalidInput.WithContext("fields", utils.FormatValidationErrors(err)).Wrap(err)
		}
	}

	room := &models.Room{
		Name:        req.Name,
		Description: req.Description,
		OwnerID:     ownerID,
		Settings:    settings,
		IsActive:    true,
	}

	if req.Password != "" {
		hash, err := m.passwords.HashPassword(req.Password)
		if err != nil {
			return nil, models.NewInternalError(err)
		}
		room.PasswordHash = hash
	}

	var created bool
	for range roomCodeAttempts {
		code, err := utils.GenerateRoomCode()
		if err != nil {
			return nil, models.NewInternalError(err)
		}
		room.Code = code

		err = m.roomRepo.Create(ctx, room)
		if err == nil {
			created = true
			break
		}
		if !errors.Is(err, models.ErrRoomCodeTaken) {
			return nil, err
		}
		room.ID = bson.ObjectID{}
	}
	if !created {
		m.logger.Error("Room code generation exhausted", nil, "attempts", roomCodeAttempts)
		return nil, models.ErrRoomCodeExhausted
	}

	membership := &models.Membership{
		RoomID:   room.ID,
		UserID:   ownerID,
		Username: ownerName,
		Role:     models.RoleOwner,
	}
	if err := m.roomRepo.AddMember(ctx, membership); err != nil {
		return nil, err
	}

	m.logger.Info("Created room", "roomId", room.ID.Hex(), "code", room.Code, "ownerId", ownerID.Hex())
	return room, nil
}

// GetRoom retrieves a room by ID.
func (m *Manager) GetRoom(ctx context.Context, roomID bson.ObjectID) (*models.Room, error) {
	return m.roomRepo.FindByID(ctx, roomID)
}

// GetRoomByCode retrieves an active room by its join code.
func (m *Manager) GetRoomByCode(ctx context.Context, code string) (*models.Room, error) {
	if !utils.IsValidRoomCode(code) {
		return nil, models.ErrRoomNotFound
	}
	return m.roomRepo.FindByCode(ctx, code)
}

// RoomInfoByCode returns the discovery projection for an active room code.
func (m *Manager) RoomInfoByCode(ctx context.Context, code string) (*models.RoomInfo, error) {
	room, err := m.GetRoomByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	count, err := m.roomRepo.CountMembers(ctx, room.ID)
	if err != nil {
		return nil, err
	}

	info := room.Info(int(count))
	return &info, nil
}

// ListActiveRooms lists active rooms with their member counts, most recently
// updated first.
func (m *Manager) ListActiveRooms(ctx context.Context, skip, limit int) ([]models.RoomInfo, error) {
	rooms, err := m.roomRepo.FindActive(ctx, skip, limit)
	if err != nil {
		return nil, err
	}

	infos := make([]models.RoomInfo, 0, len(rooms))
	for _, room := range rooms {
		count, err := m.roomRepo.CountMembers(ctx, room.ID)
		if err != nil {
			return nil, err
		}
		infos = append(infos, room.Info(int(count)))
	}
	return infos, nil
}

// UpdateSettings replaces a room's settings. Owner only.
func (m *Manager) UpdateSettings(ctx context.Context, roomID, callerID bson.ObjectID, settings models.RoomSettings) (*models.Room, error) {
	if err := utils.Validate(&settings); err != nil {
		return nil, models.ErrInvalidInput.WithContext("fields", utils.FormatValidationErrors(err)).Wrap(err)
	}

	unlock := m.locker.Lock(roomID.Hex())
	defer unlock()

	room, err := m.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.OwnerID != callerID {
		return nil, models.ErrNotRoomOwner
	}

	room.Settings = settings
	if err := m.roomRepo.Update(ctx, room); err != nil {
		return nil, err
	}

	m.broadcastState(ctx, room.ID)
	return room, nil
}

// JoinRoom adds a user to the room identified by the request's join code.
// The caller attaches the connection afterwards via Attach, which hands out
// the reconciliation snapshot.
func (m *Manager) JoinRoom(ctx context.Context, userID bson.ObjectID, username string, req *models.JoinRoomRequest) (*models.Room, error) {
	if err := utils.Validate(req); err != nil {
		return nil, models.ErrInvalidInput.WithContext("fields", utils.FormatValidationErrors(err)).Wrap(err)
	}

	room, err := m.GetRoomByCode(ctx, req.RoomCode)
	if err != nil {
		return nil, err
	}

	unlock := m.locker.Lock(room.ID.Hex())
	defer unlock()

	// Re-read under the lock; the room may have deactivated since lookup.
	room, err = m.roomRepo.FindByID(ctx, room.ID)
	if err != nil {
		return nil, err
	}
	if !room.IsActive {
		return nil, models.ErrRoomInactive
	}

	if room.HasPassword() && !m.passwords.VerifyPassword(req.Password, room.PasswordHash) {
		return nil, models.ErrInvalidRoomPassword
	}

	count, err := m.roomRepo.CountMembers(ctx, room.ID)
	if err != nil {
		return nil, err
	}
	if int(count) >= room.Settings.MaxMembers {
		return nil, models.ErrRoomFull
	}

	membership := &models.Membership{
		RoomID:   room.ID,
		UserID:   userID,
		Username: username,
		Role:     models.RoleListener,
	}
	if err := m.roomRepo.AddMember(ctx, membership); err != nil {
		if errors.Is(err, models.ErrAlreadyInRoom) {
			// Rejoin after reconnect.
			return room, nil
		}
		return nil, err
	}

	m.publish(ctx, room.ID.Hex(), models.EventMemberJoined, models.MemberJoined{Member: membership.Info()})
	m.logger.Info("User joined room", "roomId", room.ID.Hex(), "userId", userID.Hex())

	return room, nil
}

// Attach joins a connection to the room's event flow and replays the current
// state to it. Subscribe, snapshot assembly, and delivery run inside the
// room's critical section; every publisher holds the same lock, so the
// subscriber observes the snapshot followed by exactly the deltas that
// postdate it.
func (m *Manager) Attach(ctx context.Context, roomID bson.ObjectID, callerID string, subscribe func(roomID string), deliver func(state *models.RoomState)) (*models.RoomState, error) {
	unlock := m.locker.Lock(roomID.Hex())
	defer unlock()

	room, err := m.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		return nil, err
	}

	subscribe(roomID.Hex())
	state, err := m.snapshotLocked(ctx, room, callerID)
	if err != nil {
		return nil, err
	}
	deliver(state)
	return state, nil
}

// LeaveRoom removes a user from a room, handling DJ vacation, pending vote
// cancellation, ownership succession, and last-leave deactivation.
func (m *Manager) LeaveRoom(ctx context.Context, roomID, userID bson.ObjectID, reason string) error {
	unlock := m.locker.Lock(roomID.Hex())
	defer unlock()

	return m.leaveLocked(ctx, roomID, userID, reason)
}

func (m *Manager) leaveLocked(ctx context.Context, roomID, userID bson.ObjectID, reason string) error {
	room, err := m.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		return err
	}

	if _, err := m.roomRepo.FindMembership(ctx, roomID, userID); err != nil {
		return err
	}

	userHex := userID.Hex()

	// A pending mutiny dies with its target; elections survive departures.
	m.votes.handleMemberLeaveLocked(ctx, room, userHex)

	currentDJ, err := m.stateManager.GetDJ(ctx, roomID.Hex())
	if err != nil {
		return err
	}
	wasDJ := currentDJ == userHex
	if wasDJ {
		if err := m.dj.vacateLocked(ctx, room, userHex, reasonForLeave(reason)); err != nil {
			return err
		}
	}

	if err := m.roomRepo.RemoveMember(ctx, roomID, userID); err != nil {
		return err
	}

	m.publish(ctx, roomID.Hex(), models.EventMemberLeft, models.MemberLeft{UserID: userHex, Reason: reason})

	remaining, err := m.roomRepo.CountMembers(ctx, roomID)
	if err != nil {
		return err
	}
	if remaining == 0 {
		return m.deactivateLocked(ctx, room)
	}

	if room.OwnerID == userID {
		successor, err := m.roomRepo.EarliestMember(ctx, roomID, nil)
		if err != nil {
			return err
		}
		if successor != nil {
			if err := m.roomRepo.SetOwner(ctx, roomID, successor.UserID); err != nil {
				return err
			}
			if successor.Role == models.RoleListener {
				if err := m.roomRepo.SetMemberRole(ctx, roomID, successor.UserID, models.RoleOwner); err != nil {
					return err
				}
			}
			m.publish(ctx, roomID.Hex(), models.EventOwnerChanged, models.OwnerChanged{OwnerID: successor.UserID.Hex()})
			m.logger.Info("Room ownership transferred", "roomId", roomID.Hex(), "ownerId", successor.UserID.Hex())
		}
	}

	if wasDJ {
		m.dj.autoRandomizeLocked(ctx, room, userHex)
	}

	return nil
}

// reasonForLeave maps a member-leave reason onto the DJ transition reason
// recorded when the leaver held the slot.
func reasonForLeave(reason string) string {
	if reason == models.ReasonTimeout {
		return models.ReasonTimeout
	}
	return models.ReasonVoluntary
}

// deactivateLocked retires an empty room: cancels any pending vote, clears
// transient state, and marks the room inactive so its code can be reissued.
func (m *Manager) deactivateLocked(ctx context.Context, room *models.Room) error {
	roomID := room.ID.Hex()

	m.votes.cancelLocked(ctx, room, "room deactivated")

	if err := m.roomRepo.SetActive(ctx, room.ID, false); err != nil {
		return err
	}

	if err := m.stateManager.ClearRoom(ctx, roomID); err != nil {
		m.logger.Error("Failed to clear room state on deactivation", err, "roomId", roomID)
	}

	m.publish(ctx, roomID, models.EventRoomDeactived, models.RoomInfo{ID: roomID, Code: room.Code})
	m.logger.Info("Room deactivated", "roomId", roomID, "code", room.Code)
	return nil
}

// HandleDJTimeout removes the DJ slot from a user whose disconnect grace
// period elapsed. The membership itself is untouched.
func (m *Manager) HandleDJTimeout(ctx context.Context, roomID bson.ObjectID, userID string) error {
	unlock := m.locker.Lock(roomID.Hex())
	defer unlock()

	room, err := m.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		return err
	}

	currentDJ, err := m.stateManager.GetDJ(ctx, roomID.Hex())
	if err != nil {
		return err
	}
	if currentDJ != userID {
		return nil
	}

	if err := m.dj.vacateLocked(ctx, room, userID, models.ReasonTimeout); err != nil {
		return err
	}
	m.dj.autoRandomizeLocked(ctx, room, userID)
	return nil
}

// Snapshot assembles the room:state snapshot for a caller.
func (m *Manager) Snapshot(ctx context.Context, roomID bson.ObjectID, callerID string) (*models.RoomState, error) {
	unlock := m.locker.Lock(roomID.Hex())
	defer unlock()

	room, err := m.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return m.snapshotLocked(ctx, room, callerID)
}

// snapshotLocked builds the snapshot under the room lock so it reflects a
// single consistent point in the room's event order.
func (m *Manager) snapshotLocked(ctx context.Context, room *models.Room, callerID string) (*models.RoomState, error) {
	roomID := room.ID.Hex()

	members, err := m.roomRepo.FindMembers(ctx, room.ID)
	if err != nil {
		return nil, err
	}

	memberInfos := lo.Map(members, func(member *models.Membership, _ int) models.MemberInfo {
		return member.Info()
	})

	state := &models.RoomState{
		Room:    room.Info(len(members)),
		Members: memberInfos,
	}

	currentDJ, err := m.stateManager.GetDJ(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if currentDJ != "" {
		for i := range memberInfos {
			if memberInfos[i].ID == currentDJ {
				state.DJ = &memberInfos[i]
				break
			}
		}
	}

	state.Playback, err = m.playback.snapshotLocked(ctx, roomID)
	if err != nil {
		return nil, err
	}

	submissions, err := m.submissionRepo.FindQueue(ctx, room.ID)
	if err != nil {
		return nil, err
	}
	state.Queue = lo.Map(submissions, func(submission *models.Submission, _ int) models.QueueEntry {
		return submission.Entry(callerID)
	})

	session, err := m.stateManager.GetVote(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if session != nil && session.Status == models.VotePending {
		snapshot := session.Snapshot()
		state.Vote = &snapshot
	}

	return state, nil
}

// TouchMember refreshes a member's activity timestamp.
func (m *Manager) TouchMember(ctx context.Context, roomID, userID bson.ObjectID) error {
	return m.roomRepo.TouchMember(ctx, roomID, userID)
}

// Membership returns a user's membership in a room.
func (m *Manager) Membership(ctx context.Context, roomID, userID bson.ObjectID) (*models.Membership, error) {
	return m.roomRepo.FindMembership(ctx, roomID, userID)
}

// ActiveMembership returns the room a user is currently joined to, if any.
func (m *Manager) ActiveMembership(ctx context.Context, userID bson.ObjectID) (*models.Membership, error) {
	return m.roomRepo.FindUserMembership(ctx, userID)
}

// broadcastState pushes a fresh snapshot to the whole room after a settings
// change.
func (m *Manager) broadcastState(ctx context.Context, roomID bson.ObjectID) {
	room, err := m.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		m.logger.Error("Failed to load room for state broadcast", err, "roomId", roomID.Hex())
		return
	}
	state, err := m.snapshotLocked(ctx, room, "")
	if err != nil {
		m.logger.Error("Failed to build state broadcast", err, "roomId", roomID.Hex())
		return
	}
	m.publish(ctx, roomID.Hex(), models.EventRoomState, state)
}

// publish broadcasts an event, logging failures. Broadcast trouble must not
// roll back an applied mutation.
func (m *Manager) publish(ctx context.Context, roomID, eventType string, data any) {
	if err := m.broadcaster.PublishToRoom(ctx, roomID, eventType, data); err != nil {
		m.logger.Error("Failed to broadcast room event", err, "roomId", roomID, "type", eventType)
	}
}

// defaultSettings builds room settings from configured defaults.
func (m *Manager) defaultSettings() models.RoomSettings {
	return models.RoomSettings{
		MaxMembers:        m.cfg.Room.MaxMembersDefault,
		MutinyThreshold:   m.cfg.Room.MutinyThresholdDefault,
		DJCooldownMinutes: defaultDJCooldownMinutes,
		AutoRandomizeDJ:   false,
		AutoRemoveScore:   0,
	}
}
