package room

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/v2/bson"
	"norelock.dev/waveroom/backend/internal/db/mongo/repositories"
	"norelock.dev/waveroom/backend/internal/db/redis/managers"
	"norelock.dev/waveroom/backend/internal/models"
	"norelock.dev/waveroom/backend/internal/utils"
)

// VoteManager runs room vote sessions: DJ elections and mutinies. At most one
// session is pending per room; the eligible voter set is frozen at open time.
// Ballot insertion and session re-evaluation happen in the same critical
// section, so a session finalizes exactly once.
type VoteManager struct {
	roomRepo       repositories.RoomRepository
	stateManager   *managers.RoomStateManager
	broadcaster    Broadcaster
	dj             *DJManager
	locker         *RoomLocker
	voteTimeout    time.Duration
	mutinyCooldown time.Duration
	logger         *utils.Logger

	timersMu sync.Mutex
	timers   map[string]*voteTimer
}

type voteTimer struct {
	sessionID string
	timer     *time.Timer
}

// NewVoteManager creates a new vote manager.
func NewVoteManager(
	roomRepo repositories.RoomRepository,
	stateManager *managers.RoomStateManager,
	broadcaster Broadcaster,
	dj *DJManager,
	locker *RoomLocker,
	voteTimeout, mutinyCooldown time.Duration,
	logger *utils.Logger,
) *VoteManager {
	return &VoteManager{
		roomRepo:       roomRepo,
		stateManager:   stateManager,
		broadcaster:    broadcaster,
		dj:             dj,
		locker:         locker,
		voteTimeout:    voteTimeout,
		mutinyCooldown: mutinyCooldown,
		logger:         logger.Named("vote_manager"),
		timers:         make(map[string]*voteTimer),
	}
}

// StartElection opens a DJ election. The room needs at least two members and
// no pending session. The full membership is eligible: the current DJ may
// vote and may stand for re-election.
func (m *VoteManager) StartElection(ctx context.Context, roomID bson.ObjectID, initiatorID string) (*models.VoteSession, error) {
	unlock := m.locker.Lock(roomID.Hex())
	defer unlock()

	room, err := m.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.IsActive {
		return nil, models.ErrRoomInactive
	}

	if err := m.requireMember(ctx, roomID, initiatorID); err != nil {
		return nil, err
	}

	if err := m.ensureNoPendingLocked(ctx, room); err != nil {
		return nil, err
	}

	members, err := m.roomRepo.FindMembers(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if len(members) < 2 {
		return nil, models.ErrTooFewMembers
	}

	session := m.newSession(room, models.VoteElection, initiatorID, "", 0, memberIDs(members))
	return m.openLocked(ctx, room, session)
}

// StartMutiny opens a vote to remove the current DJ. The DJ cannot target
// themselves, and a failed mutiny blocks re-targeting the same DJ until the
// cooldown elapses.
func (m *VoteManager) StartMutiny(ctx context.Context, roomID bson.ObjectID, initiatorID string) (*models.VoteSession, error) {
	unlock := m.locker.Lock(roomID.Hex())
	defer unlock()

	room, err := m.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.IsActive {
		return nil, models.ErrRoomInactive
	}

	if err := m.requireMember(ctx, roomID, initiatorID); err != nil {
		return nil, err
	}

	currentDJ, err := m.stateManager.GetDJ(ctx, roomID.Hex())
	if err != nil {
		return nil, err
	}
	if currentDJ == "" {
		return nil, models.ErrNoCurrentDJ
	}
	if currentDJ == initiatorID {
		return nil, models.ErrMutinySelfTarget
	}

	if err := m.ensureNoPendingLocked(ctx, room); err != nil {
		return nil, err
	}

	onCooldown, err := m.stateManager.IsMutinyOnCooldown(ctx, roomID.Hex(), currentDJ)
	if err != nil {
		return nil, err
	}
	if onCooldown {
		return nil, models.ErrMutinyCooldown
	}

	members, err := m.roomRepo.FindMembers(ctx, roomID)
	if err != nil {
		return nil, err
	}

	session := m.newSession(room, models.VoteMutiny, initiatorID, currentDJ, room.Settings.MutinyThreshold, mutinyEligible(members, currentDJ))
	return m.openLocked(ctx, room, session)
}

// CastElectionBallot records a voter's candidate choice. Candidates are drawn
// from the eligible set; a voter ballots at most once per session.
func (m *VoteManager) CastElectionBallot(ctx context.Context, roomID bson.ObjectID, voterID string, req *models.CastDJVoteRequest) (*models.VoteSnapshot, error) {
	unlock := m.locker.Lock(roomID.Hex())
	defer unlock()

	room, err := m.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		return nil, err
	}

	session, err := m.pendingLocked(ctx, room, req.SessionID)
	if err != nil {
		return nil, err
	}
	if session.Type != models.VoteElection {
		return nil, models.ErrInvalidBallot
	}
	if !session.IsEligible(req.TargetUserID) {
		return nil, models.ErrInvalidBallot
	}

	return m.castLocked(ctx, room, session, voterID, req.TargetUserID)
}

// CastMutinyBallot records a voter's yes or no on removing the DJ.
func (m *VoteManager) CastMutinyBallot(ctx context.Context, roomID bson.ObjectID, voterID string, req *models.CastMutinyVoteRequest) (*models.VoteSnapshot, error) {
	unlock := m.locker.Lock(roomID.Hex())
	defer unlock()

	room, err := m.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		return nil, err
	}

	session, err := m.pendingLocked(ctx, room, req.SessionID)
	if err != nil {
		return nil, err
	}
	if session.Type != models.VoteMutiny {
		return nil, models.ErrInvalidBallot
	}

	choice := models.ChoiceNo
	if req.Yes {
		choice = models.ChoiceYes
	}
	return m.castLocked(ctx, room, session, voterID, choice)
}

// Current returns the pending session snapshot, if any.
func (m *VoteManager) Current(ctx context.Context, roomID bson.ObjectID) (*models.VoteSnapshot, error) {
	unlock := m.locker.Lock(roomID.Hex())
	defer unlock()

	session, err := m.stateManager.GetVote(ctx, roomID.Hex())
	if err != nil {
		return nil, err
	}
	if session == nil || session.Status != models.VotePending {
		return nil, models.ErrNoVoteInProgress
	}

	snapshot := session.Snapshot()
	return &snapshot, nil
}

// castLocked inserts a ballot and re-evaluates the session in the same
// critical section.
func (m *VoteManager) castLocked(ctx context.Context, room *models.Room, session *models.VoteSession, voterID, choice string) (*models.VoteSnapshot, error) {
	if !session.IsEligible(voterID) {
		return nil, models.ErrNotEligibleVoter
	}

	inserted, err := m.stateManager.CastBallot(ctx, room.ID.Hex(), voterID, choice)
	if err != nil {
		return nil, err
	}
	if !inserted {
		return nil, models.ErrAlreadyVoted
	}

	if session.Ballots == nil {
		session.Ballots = make(map[string]string)
	}
	session.Ballots[voterID] = choice
	if err := m.stateManager.UpdateVote(ctx, session); err != nil {
		return nil, err
	}

	finalized, err := m.evaluateLocked(ctx, room, session)
	if err != nil {
		return nil, err
	}
	if !finalized {
		snapshot := session.Snapshot()
		m.publish(ctx, room.ID.Hex(), models.EventVoteResultsUpdated, snapshot)
		return &snapshot, nil
	}

	snapshot := session.Snapshot()
	return &snapshot, nil
}

// evaluateLocked decides whether the session can finalize now. Mutinies pass
// as soon as yes ballots reach the threshold and fail early once the
// outstanding ballots cannot reach it. Elections finalize when every eligible
// voter has balloted.
func (m *VoteManager) evaluateLocked(ctx context.Context, room *models.Room, session *models.VoteSession) (bool, error) {
	switch session.Type {
	case models.VoteMutiny:
		needed := mutinyNeeded(session)
		yes := session.YesCount()
		if yes >= needed {
			return true, m.finalizeLocked(ctx, room, session, models.VotePassed, "")
		}
		remaining := len(session.Eligible) - len(session.Ballots)
		if yes+remaining < needed {
			return true, m.finalizeLocked(ctx, room, session, models.VoteFailed, "")
		}
		return false, nil

	case models.VoteElection:
		if len(session.Ballots) < len(session.Eligible) {
			return false, nil
		}
		winner, err := m.electionWinnerLocked(ctx, room, session)
		if err != nil {
			return false, err
		}
		if winner == "" {
			return true, m.finalizeLocked(ctx, room, session, models.VoteFailed, "")
		}
		return true, m.finalizeLocked(ctx, room, session, models.VotePassed, winner)
	}

	return false, nil
}

// electionWinnerLocked picks the candidate with the most ballots, breaking
// ties by earliest room join time. Empty when no ballots were cast.
func (m *VoteManager) electionWinnerLocked(ctx context.Context, room *models.Room, session *models.VoteSession) (string, error) {
	tally := lo.CountValues(lo.Values(session.Ballots))
	if len(tally) == 0 {
		return "", nil
	}

	best := lo.Max(lo.Values(tally))

	var winner string
	var winnerJoined time.Time
	for candidate, count := range tally {
		if count != best {
			continue
		}
		id, err := bson.ObjectIDFromHex(candidate)
		if err != nil {
			continue
		}
		membership, err := m.roomRepo.FindMembership(ctx, room.ID, id)
		if err != nil {
			// A candidate who left mid-vote cannot win.
			continue
		}
		if winner == "" || membership.JoinedAt.Before(winnerJoined) {
			winner = candidate
			winnerJoined = membership.JoinedAt
		}
	}
	return winner, nil
}

// finalizeLocked closes a session and applies its outcome: a passed mutiny
// removes the DJ, a failed one starts the mutiny cooldown, and a passed
// election installs the winner.
func (m *VoteManager) finalizeLocked(ctx context.Context, room *models.Room, session *models.VoteSession, status, winner string) error {
	roomID := room.ID.Hex()

	session.Status = status
	session.Outcome = winner
	session.ClosedAtMs = utils.NowMs()

	if err := m.stateManager.CloseVote(ctx, roomID); err != nil {
		return err
	}
	m.stopTimer(roomID, session.ID)

	m.publish(ctx, roomID, models.EventVoteComplete, models.VoteComplete{
		SessionID: session.ID,
		Type:      session.Type,
		Outcome:   status,
		WinnerID:  winner,
	})
	m.logger.Info("Vote session closed", "roomId", roomID, "sessionId", session.ID, "type", session.Type, "outcome", status)

	if status == models.VoteCancelled {
		return nil
	}

	switch session.Type {
	case models.VoteMutiny:
		result := models.MutinyResult{SessionID: session.ID, DJID: session.TargetID}
		if status == models.VotePassed {
			m.publish(ctx, roomID, models.EventMutinySuccess, result)
			return m.dj.mutinyRemoveLocked(ctx, room, session.TargetID)
		}
		m.publish(ctx, roomID, models.EventMutinyFailed, result)
		if err := m.stateManager.SetMutinyCooldown(ctx, roomID, session.TargetID, m.mutinyCooldown); err != nil {
			m.logger.Error("Failed to set mutiny cooldown", err, "roomId", roomID, "djId", session.TargetID)
		}

	case models.VoteElection:
		if status == models.VotePassed && winner != "" {
			return m.dj.electLocked(ctx, room, winner)
		}
	}

	return nil
}

// cancelLocked aborts the pending session, if any. Used on room deactivation
// and mutiny target departure.
func (m *VoteManager) cancelLocked(ctx context.Context, room *models.Room, cause string) {
	session, err := m.stateManager.GetVote(ctx, room.ID.Hex())
	if err != nil {
		m.logger.Error("Failed to load vote session for cancel", err, "roomId", room.ID.Hex())
		return
	}
	if session == nil || session.Status != models.VotePending {
		return
	}

	m.logger.Info("Cancelling vote session", "roomId", room.ID.Hex(), "sessionId", session.ID, "cause", cause)
	if err := m.finalizeLocked(ctx, room, session, models.VoteCancelled, ""); err != nil {
		m.logger.Error("Failed to cancel vote session", err, "roomId", room.ID.Hex(), "sessionId", session.ID)
	}
}

// handleMemberLeaveLocked cancels a pending mutiny whose target is leaving.
// Other sessions keep their frozen eligible set and run to completion.
func (m *VoteManager) handleMemberLeaveLocked(ctx context.Context, room *models.Room, userID string) {
	session, err := m.stateManager.GetVote(ctx, room.ID.Hex())
	if err != nil {
		m.logger.Error("Failed to load vote session on member leave", err, "roomId", room.ID.Hex())
		return
	}
	if session == nil || session.Status != models.VotePending {
		return
	}
	if session.Type == models.VoteMutiny && session.TargetID == userID {
		m.cancelLocked(ctx, room, "mutiny target left")
	}
}

// openLocked stores the session, broadcasts the opening event, and arms the
// timeout timer.
func (m *VoteManager) openLocked(ctx context.Context, room *models.Room, session *models.VoteSession) (*models.VoteSession, error) {
	created, err := m.stateManager.OpenVote(ctx, session)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, models.ErrVoteInProgress
	}

	opened := models.EventElectionStarted
	if session.Type == models.VoteMutiny {
		opened = models.EventMutinyStarted
	}
	m.publish(ctx, room.ID.Hex(), opened, session.Snapshot())
	m.armTimer(room.ID, session.ID)
	m.logger.Info("Vote session opened", "roomId", room.ID.Hex(), "sessionId", session.ID, "type", session.Type, "eligible", len(session.Eligible))
	return session, nil
}

// ensureNoPendingLocked rejects a new session while one is pending, reaping
// an expired session the timer missed.
func (m *VoteManager) ensureNoPendingLocked(ctx context.Context, room *models.Room) error {
	session, err := m.stateManager.GetVote(ctx, room.ID.Hex())
	if err != nil {
		return err
	}
	if session == nil || session.Status != models.VotePending {
		return nil
	}
	if utils.NowMs() < session.ExpiresAtMs {
		return models.ErrVoteInProgress
	}
	return m.expireLocked(ctx, room, session)
}

// expireLocked finalizes a session that ran out its clock. Timeout is a
// failure for both vote types: a session that could pass on the ballots cast
// has already passed during re-evaluation, so whatever is still pending at
// the deadline fails. A mutiny failed this way starts the usual cooldown.
func (m *VoteManager) expireLocked(ctx context.Context, room *models.Room, session *models.VoteSession) error {
	return m.finalizeLocked(ctx, room, session, models.VoteFailed, "")
}

// pendingLocked loads the pending session and checks the caller references it.
func (m *VoteManager) pendingLocked(ctx context.Context, room *models.Room, sessionID string) (*models.VoteSession, error) {
	session, err := m.stateManager.GetVote(ctx, room.ID.Hex())
	if err != nil {
		return nil, err
	}
	if session == nil || session.Status != models.VotePending || session.ID != sessionID {
		return nil, models.ErrNoVoteInProgress
	}
	if utils.NowMs() >= session.ExpiresAtMs {
		if err := m.expireLocked(ctx, room, session); err != nil {
			return nil, err
		}
		return nil, models.ErrNoVoteInProgress
	}
	return session, nil
}

// Close stops all outstanding vote timers.
func (m *VoteManager) Close() {
	m.timersMu.Lock()
	defer m.timersMu.Unlock()

	for roomID, entry := range m.timers {
		entry.timer.Stop()
		delete(m.timers, roomID)
	}
}

// armTimer schedules the timeout sweep for a session.
func (m *VoteManager) armTimer(roomID bson.ObjectID, sessionID string) {
	m.timersMu.Lock()
	defer m.timersMu.Unlock()

	key := roomID.Hex()
	if existing, ok := m.timers[key]; ok {
		existing.timer.Stop()
	}
	m.timers[key] = &voteTimer{
		sessionID: sessionID,
		timer: time.AfterFunc(m.voteTimeout, func() {
			m.handleTimeout(roomID, sessionID)
		}),
	}
}

// stopTimer disarms the timer for a finalized session.
func (m *VoteManager) stopTimer(roomID, sessionID string) {
	m.timersMu.Lock()
	defer m.timersMu.Unlock()

	if entry, ok := m.timers[roomID]; ok && entry.sessionID == sessionID {
		entry.timer.Stop()
		delete(m.timers, roomID)
	}
}

// handleTimeout finalizes a session whose deadline passed without resolution.
func (m *VoteManager) handleTimeout(roomID bson.ObjectID, sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	unlock := m.locker.Lock(roomID.Hex())
	defer unlock()

	session, err := m.stateManager.GetVote(ctx, roomID.Hex())
	if err != nil {
		m.logger.Error("Failed to load vote session on timeout", err, "roomId", roomID.Hex())
		return
	}
	if session == nil || session.ID != sessionID || session.Status != models.VotePending {
		return
	}

	room, err := m.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		m.logger.Error("Failed to load room on vote timeout", err, "roomId", roomID.Hex())
		return
	}

	if err := m.expireLocked(ctx, room, session); err != nil {
		m.logger.Error("Failed to finalize timed-out vote", err, "roomId", roomID.Hex(), "sessionId", sessionID)
	}
}

// newSession builds a pending session with a frozen eligible set.
func (m *VoteManager) newSession(room *models.Room, voteType, initiatorID, targetID string, threshold float64, eligible []string) *models.VoteSession {
	now := utils.NowMs()
	return &models.VoteSession{
		ID:          uuid.NewString(),
		RoomID:      room.ID.Hex(),
		Type:        voteType,
		InitiatorID: initiatorID,
		TargetID:    targetID,
		Threshold:   threshold,
		Eligible:    eligible,
		Ballots:     make(map[string]string),
		Status:      models.VotePending,
		OpenedAtMs:  now,
		ExpiresAtMs: now + m.voteTimeout.Milliseconds(),
	}
}

// requireMember verifies the user is a member of the room.
func (m *VoteManager) requireMember(ctx context.Context, roomID bson.ObjectID, userID string) error {
	id, err := bson.ObjectIDFromHex(userID)
	if err != nil {
		return models.ErrNotRoomMember
	}
	_, err = m.roomRepo.FindMembership(ctx, roomID, id)
	return err
}

func (m *VoteManager) publish(ctx context.Context, roomID, eventType string, data any) {
	if err := m.broadcaster.PublishToRoom(ctx, roomID, eventType, data); err != nil {
		m.logger.Error("Failed to broadcast vote event", err, "roomId", roomID, "type", eventType)
	}
}

// mutinyNeeded is the yes-ballot count a mutiny must reach.
func mutinyNeeded(session *models.VoteSession) int {
	return int(math.Ceil(session.Threshold * float64(len(session.Eligible))))
}

// memberIDs freezes the full membership as an eligible voter set.
func memberIDs(members []*models.Membership) []string {
	return lo.Map(members, func(member *models.Membership, _ int) string {
		return member.UserID.Hex()
	})
}

// mutinyEligible freezes the mutiny voter set: every member except the DJ
// under vote.
func mutinyEligible(members []*models.Membership, currentDJ string) []string {
	return lo.FilterMap(members, func(member *models.Membership, _ int) (string, bool) {
		id := member.UserID.Hex()
		return id, id != currentDJ
	})
}
