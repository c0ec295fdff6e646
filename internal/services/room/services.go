package room

import (
	"norelock.dev/waveroom/backend/internal/auth"
	"norelock.dev/waveroom/backend/internal/config"
	"norelock.dev/waveroom/backend/internal/db/mongo/repositories"
	"norelock.dev/waveroom/backend/internal/db/redis/managers"
	"norelock.dev/waveroom/backend/internal/services/media"
	"norelock.dev/waveroom/backend/internal/utils"
)

// Services bundles the room service graph behind a single constructor so the
// wiring order stays in one place.
type Services struct {
	Rooms    *Manager
	DJ       *DJManager
	Queue    *QueueManager
	Playback *PlaybackManager
	Votes    *VoteManager
	Chat     *ChatManager
	Locker   *RoomLocker
}

// NewServices wires the room services together.
func NewServices(
	roomRepo repositories.RoomRepository,
	submissionRepo repositories.SubmissionRepository,
	historyRepo repositories.HistoryRepository,
	chatRepo repositories.ChatRepository,
	stateManager *managers.RoomStateManager,
	broadcaster Broadcaster,
	latency LatencyProvider,
	resolver *media.Resolver,
	passwords *auth.PasswordProvider,
	cfg *config.Config,
	logger *utils.Logger,
) *Services {
	locker := NewRoomLocker()

	queue := NewQueueManager(roomRepo, submissionRepo, stateManager, broadcaster, resolver, locker, logger)
	playback := NewPlaybackManager(roomRepo, submissionRepo, stateManager, broadcaster, latency, queue, locker, cfg.Playback.LeadMin, cfg.Playback.LeadMax, logger)
	dj := NewDJManager(roomRepo, historyRepo, stateManager, broadcaster, playback, locker, logger)
	votes := NewVoteManager(roomRepo, stateManager, broadcaster, dj, locker, cfg.Vote.Timeout, cfg.Vote.MutinyCooldown, logger)
	chat := NewChatManager(roomRepo, chatRepo, broadcaster, locker, logger)
	rooms := NewManager(roomRepo, submissionRepo, stateManager, broadcaster, passwords, locker, dj, playback, votes, cfg, logger)

	return &Services{
		Rooms:    rooms,
		DJ:       dj,
		Queue:    queue,
		Playback: playback,
		Votes:    votes,
		Chat:     chat,
		Locker:   locker,
	}
}

// Close releases background resources held by the services.
func (s *Services) Close() {
	s.Votes.Close()
}
