package room

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	r "github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/v2/bson"
	"norelock.dev/waveroom/backend/internal/auth"
	"norelock.dev/waveroom/backend/internal/config"
	"norelock.dev/waveroom/backend/internal/db/redis"
	"norelock.dev/waveroom/backend/internal/db/redis/managers"
	"norelock.dev/waveroom/backend/internal/models"
	"norelock.dev/waveroom/backend/internal/services/media"
	"norelock.dev/waveroom/backend/internal/utils"
)

// broadcastEvent is one captured publish.
type broadcastEvent struct {
	RoomID string
	UserID string
	Type   string
	Data   any
}

// fakeBroadcaster records published events in order.
type fakeBroadcaster struct {
	mu     sync.Mutex
	events []broadcastEvent
}

func (b *fakeBroadcaster) PublishToRoom(_ context.Context, roomID, eventType string, data any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, broadcastEvent{RoomID: roomID, Type: eventType, Data: data})
	return nil
}

func (b *fakeBroadcaster) PublishToUser(_ context.Context, userID, eventType string, data any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, broadcastEvent{UserID: userID, Type: eventType, Data: data})
	return nil
}

func (b *fakeBroadcaster) types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	types := make([]string, 0, len(b.events))
	for _, e := range b.events {
		types = append(types, e.Type)
	}
	return types
}

func (b *fakeBroadcaster) count(eventType string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

func (b *fakeBroadcaster) last(eventType string) (broadcastEvent, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.events) - 1; i >= 0; i-- {
		if b.events[i].Type == eventType {
			return b.events[i], true
		}
	}
	return broadcastEvent{}, false
}

func (b *fakeBroadcaster) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = nil
}

// fakeLatency serves a fixed RTT sample.
type fakeLatency struct {
	rtts []int64
}

func (f *fakeLatency) MemberRTTs(context.Context, string) ([]int64, error) {
	return f.rtts, nil
}

// fakeRoomRepo is an in-memory RoomRepository.
type fakeRoomRepo struct {
	mu      sync.Mutex
	rooms   map[bson.ObjectID]*models.Room
	members map[bson.ObjectID]map[bson.ObjectID]*models.Membership
}

func newFakeRoomRepo() *fakeRoomRepo {
	return &fakeRoomRepo{
		rooms:   make(map[bson.ObjectID]*models.Room),
		members: make(map[bson.ObjectID]map[bson.ObjectID]*models.Membership),
	}
}

func (f *fakeRoomRepo) Create(_ context.Context, room *models.Room) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if room.ID.IsZero() {
		room.ID = bson.NewObjectID()
	}
	for _, existing := range f.rooms {
		if existing.IsActive && existing.Code == room.Code {
			return models.ErrRoomCodeTaken
		}
	}
	room.CreateNow()
	clone := *room
	f.rooms[room.ID] = &clone
	return nil
}

func (f *fakeRoomRepo) FindByID(_ context.Context, id bson.ObjectID) (*models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[id]
	if !ok {
		return nil, models.ErrRoomNotFound
	}
	clone := *room
	return &clone, nil
}

func (f *fakeRoomRepo) FindByCode(_ context.Context, code string) (*models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, room := range f.rooms {
		if room.IsActive && room.Code == code {
			clone := *room
			return &clone, nil
		}
	}
	return nil, models.ErrRoomNotFound
}

func (f *fakeRoomRepo) FindActive(_ context.Context, skip, limit int) ([]*models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var active []*models.Room
	for _, room := range f.rooms {
		if room.IsActive {
			clone := *room
			active = append(active, &clone)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].UpdatedAt.After(active[j].UpdatedAt) })
	if skip >= len(active) {
		return nil, nil
	}
	active = active[skip:]
	if limit < len(active) {
		active = active[:limit]
	}
	return active, nil
}

func (f *fakeRoomRepo) FindInactiveBefore(_ context.Context, before time.Time, limit int) ([]*models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var stale []*models.Room
	for _, room := range f.rooms {
		if !room.IsActive && room.UpdatedAt.Before(before) {
			clone := *room
			stale = append(stale, &clone)
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].UpdatedAt.Before(stale[j].UpdatedAt) })
	if limit < len(stale) {
		stale = stale[:limit]
	}
	return stale, nil
}

func (f *fakeRoomRepo) Update(_ context.Context, room *models.Room) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rooms[room.ID]; !ok {
		return models.ErrRoomNotFound
	}
	room.UpdateNow()
	clone := *room
	f.rooms[room.ID] = &clone
	return nil
}

func (f *fakeRoomRepo) SetActive(_ context.Context, id bson.ObjectID, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[id]
	if !ok {
		return models.ErrRoomNotFound
	}
	room.IsActive = active
	room.UpdateNow()
	return nil
}

func (f *fakeRoomRepo) SetOwner(_ context.Context, roomID, ownerID bson.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[roomID]
	if !ok {
		return models.ErrRoomNotFound
	}
	room.OwnerID = ownerID
	room.UpdateNow()
	return nil
}

func (f *fakeRoomRepo) CountRooms(_ context.Context, _ bson.M) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.rooms)), nil
}

func (f *fakeRoomRepo) Delete(_ context.Context, id bson.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rooms, id)
	delete(f.members, id)
	return nil
}

func (f *fakeRoomRepo) AddMember(_ context.Context, membership *models.Membership) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if membership.ID.IsZero() {
		membership.ID = bson.NewObjectID()
	}
	roomMembers, ok := f.members[membership.RoomID]
	if !ok {
		roomMembers = make(map[bson.ObjectID]*models.Membership)
		f.members[membership.RoomID] = roomMembers
	}
	if _, exists := roomMembers[membership.UserID]; exists {
		return models.ErrAlreadyInRoom
	}
	clone := *membership
	roomMembers[membership.UserID] = &clone
	return nil
}

func (f *fakeRoomRepo) RemoveMember(_ context.Context, roomID, userID bson.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	roomMembers := f.members[roomID]
	if _, ok := roomMembers[userID]; !ok {
		return models.ErrNotRoomMember
	}
	delete(roomMembers, userID)
	return nil
}

func (f *fakeRoomRepo) FindMembers(_ context.Context, roomID bson.ObjectID) ([]*models.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var members []*models.Membership
	for _, m := range f.members[roomID] {
		clone := *m
		members = append(members, &clone)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].JoinedAt.Before(members[j].JoinedAt) })
	return members, nil
}

func (f *fakeRoomRepo) FindMembership(_ context.Context, roomID, userID bson.ObjectID) (*models.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[roomID][userID]
	if !ok {
		return nil, models.ErrNotRoomMember
	}
	clone := *m
	return &clone, nil
}

func (f *fakeRoomRepo) FindUserMembership(_ context.Context, userID bson.ObjectID) (*models.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, roomMembers := range f.members {
		if m, ok := roomMembers[userID]; ok {
			clone := *m
			return &clone, nil
		}
	}
	return nil, models.ErrNotRoomMember
}

func (f *fakeRoomRepo) CountMembers(_ context.Context, roomID bson.ObjectID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.members[roomID])), nil
}

func (f *fakeRoomRepo) SetMemberRole(_ context.Context, roomID, userID bson.ObjectID, role string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[roomID][userID]
	if !ok {
		return models.ErrNotRoomMember
	}
	m.Role = role
	return nil
}

func (f *fakeRoomRepo) EarliestMember(_ context.Context, roomID bson.ObjectID, exclude []bson.ObjectID) (*models.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	excluded := make(map[bson.ObjectID]bool, len(exclude))
	for _, id := range exclude {
		excluded[id] = true
	}
	var earliest *models.Membership
	for _, m := range f.members[roomID] {
		if excluded[m.UserID] {
			continue
		}
		if earliest == nil || m.JoinedAt.Before(earliest.JoinedAt) {
			earliest = m
		}
	}
	if earliest == nil {
		return nil, models.ErrNotRoomMember
	}
	clone := *earliest
	return &clone, nil
}

func (f *fakeRoomRepo) TouchMember(_ context.Context, roomID, userID bson.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[roomID][userID]
	if !ok {
		return models.ErrNotRoomMember
	}
	m.LastActive = time.Now()
	return nil
}

// fakeSubmissionRepo is an in-memory SubmissionRepository.
type fakeSubmissionRepo struct {
	mu   sync.Mutex
	subs map[bson.ObjectID]*models.Submission
	seq  int
}

func newFakeSubmissionRepo() *fakeSubmissionRepo {
	return &fakeSubmissionRepo{subs: make(map[bson.ObjectID]*models.Submission)}
}

func (f *fakeSubmissionRepo) Create(_ context.Context, submission *models.Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if submission.ID.IsZero() {
		submission.ID = bson.NewObjectID()
	}
	// Distinct creation times keep the tie-break deterministic.
	f.seq++
	submission.TimeCreate(time.Now().Add(time.Duration(f.seq) * time.Millisecond))
	if submission.Ballots == nil {
		submission.Ballots = make(map[string]int)
	}
	clone := cloneSubmission(submission)
	f.subs[submission.ID] = clone
	return nil
}

func (f *fakeSubmissionRepo) FindByID(_ context.Context, id bson.ObjectID) (*models.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subs[id]
	if !ok {
		return nil, models.ErrEntryNotFound
	}
	return cloneSubmission(s), nil
}

func (f *fakeSubmissionRepo) FindQueue(_ context.Context, roomID bson.ObjectID) ([]*models.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queueLocked(roomID), nil
}

func (f *fakeSubmissionRepo) queueLocked(roomID bson.ObjectID) []*models.Submission {
	var queue []*models.Submission
	for _, s := range f.subs {
		if s.RoomID == roomID && !s.Played {
			queue = append(queue, cloneSubmission(s))
		}
	}
	sort.Slice(queue, func(i, j int) bool {
		if queue[i].NetScore != queue[j].NetScore {
			return queue[i].NetScore > queue[j].NetScore
		}
		return queue[i].CreatedAt.Before(queue[j].CreatedAt)
	})
	return queue
}

func (f *fakeSubmissionRepo) SetBallot(_ context.Context, id bson.ObjectID, voterID string, previous, next int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subs[id]
	if !ok {
		return models.ErrEntryNotFound
	}
	switch previous {
	case models.BallotUp:
		s.UpCount--
	case models.BallotDown:
		s.DownCount--
	}
	switch next {
	case models.BallotUp:
		s.UpCount++
	case models.BallotDown:
		s.DownCount++
	}
	if next == 0 {
		delete(s.Ballots, voterID)
	} else {
		s.Ballots[voterID] = next
	}
	s.NetScore = s.UpCount - s.DownCount
	return nil
}

func (f *fakeSubmissionRepo) PopNext(_ context.Context, roomID bson.ObjectID) (*models.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	queue := f.queueLocked(roomID)
	if len(queue) == 0 {
		return nil, nil
	}
	head := queue[0]
	f.subs[head.ID].Played = true
	head.Played = true
	return head, nil
}

func (f *fakeSubmissionRepo) MarkPlayed(_ context.Context, id bson.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subs[id]
	if !ok {
		return models.ErrEntryNotFound
	}
	s.Played = true
	return nil
}

func (f *fakeSubmissionRepo) Delete(_ context.Context, id bson.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subs[id]; !ok {
		return models.ErrEntryNotFound
	}
	delete(f.subs, id)
	return nil
}

func (f *fakeSubmissionRepo) DeleteByRoom(_ context.Context, roomID bson.ObjectID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var removed int64
	for id, s := range f.subs {
		if s.RoomID == roomID {
			delete(f.subs, id)
			removed++
		}
	}
	return removed, nil
}

func cloneSubmission(s *models.Submission) *models.Submission {
	clone := *s
	clone.Ballots = make(map[string]int, len(s.Ballots))
	for k, v := range s.Ballots {
		clone.Ballots[k] = v
	}
	return &clone
}

// fakeHistoryRepo is an in-memory HistoryRepository.
type fakeHistoryRepo struct {
	mu      sync.Mutex
	entries []*models.DJHistoryEntry
}

func newFakeHistoryRepo() *fakeHistoryRepo {
	return &fakeHistoryRepo{}
}

func (f *fakeHistoryRepo) CreateDJHistory(_ context.Context, entry *models.DJHistoryEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if entry.ID.IsZero() {
		entry.ID = bson.NewObjectID()
	}
	clone := *entry
	f.entries = append(f.entries, &clone)
	return nil
}

func (f *fakeHistoryRepo) CloseDJHistory(_ context.Context, roomID bson.ObjectID, removedAt time.Time, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.entries) - 1; i >= 0; i-- {
		e := f.entries[i]
		if e.RoomID == roomID && e.RemovedAt.IsZero() {
			e.RemovedAt = removedAt
			e.Reason = reason
			return nil
		}
	}
	return nil
}

func (f *fakeHistoryRepo) FindDJHistoryByRoom(_ context.Context, roomID bson.ObjectID, skip, limit int) ([]*models.DJHistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var entries []*models.DJHistoryEntry
	for i := len(f.entries) - 1; i >= 0; i-- {
		if f.entries[i].RoomID == roomID {
			clone := *f.entries[i]
			entries = append(entries, &clone)
		}
	}
	if skip >= len(entries) {
		return nil, nil
	}
	entries = entries[skip:]
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return entries, nil
}

func (f *fakeHistoryRepo) FindDJHistoryByUser(_ context.Context, userID bson.ObjectID, skip, limit int) ([]*models.DJHistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var entries []*models.DJHistoryEntry
	for i := len(f.entries) - 1; i >= 0; i-- {
		if f.entries[i].UserID == userID {
			clone := *f.entries[i]
			entries = append(entries, &clone)
		}
	}
	if skip >= len(entries) {
		return nil, nil
	}
	entries = entries[skip:]
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return entries, nil
}

// fakeChatRepo is an in-memory ChatRepository.
type fakeChatRepo struct {
	mu       sync.Mutex
	messages []*models.ChatMessage
}

func newFakeChatRepo() *fakeChatRepo {
	return &fakeChatRepo{}
}

func (f *fakeChatRepo) SaveMessage(_ context.Context, message *models.ChatMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if message.ID.IsZero() {
		message.ID = bson.NewObjectID()
	}
	clone := *message
	f.messages = append(f.messages, &clone)
	return nil
}

func (f *fakeChatRepo) FindMessagesByRoom(_ context.Context, roomID bson.ObjectID, limit int, before time.Time) ([]*models.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var messages []*models.ChatMessage
	for i := len(f.messages) - 1; i >= 0; i-- {
		m := f.messages[i]
		if m.RoomID != roomID {
			continue
		}
		if !before.IsZero() && !m.SentAt.Before(before) {
			continue
		}
		clone := *m
		messages = append(messages, &clone)
		if limit > 0 && len(messages) == limit {
			break
		}
	}
	return messages, nil
}

func (f *fakeChatRepo) DeleteMessagesByRoom(_ context.Context, roomID bson.ObjectID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []*models.ChatMessage
	var removed int64
	for _, m := range f.messages {
		if m.RoomID == roomID {
			removed++
			continue
		}
		kept = append(kept, m)
	}
	f.messages = kept
	return removed, nil
}

// stubProvider resolves every source ID to a fixed track.
type stubProvider struct{}

func (stubProvider) Resolve(_ context.Context, sourceID string) (*models.MediaInfo, error) {
	return &models.MediaInfo{
		Provider:        "youtube",
		SourceID:        sourceID,
		URL:             "https://youtu.be/" + sourceID,
		Title:           "Test Track",
		Channel:         "Test Channel",
		DurationSeconds: 180,
	}, nil
}

func (stubProvider) Type() string { return "youtube" }

// testEnv bundles the room service graph over in-memory fakes and miniredis.
type testEnv struct {
	mr       *miniredis.Miniredis
	roomRepo *fakeRoomRepo
	subRepo  *fakeSubmissionRepo
	histRepo *fakeHistoryRepo
	chatRepo *fakeChatRepo
	bus      *fakeBroadcaster
	latency  *fakeLatency
	state    *managers.RoomStateManager
	cfg      *config.Config
	svc      *Services
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClientFromRedis(r.NewClient(&r.Options{Addr: mr.Addr()}), nil)
	t.Cleanup(func() { client.Close() })

	logger := utils.GetLogger()

	cfg := &config.Config{}
	cfg.Room.MaxMembersDefault = 50
	cfg.Room.MutinyThresholdDefault = 0.51
	cfg.Room.DJGrace = 30 * time.Second
	cfg.Playback.LeadMin = 500 * time.Millisecond
	cfg.Playback.LeadMax = 2 * time.Second
	cfg.Vote.Timeout = time.Minute
	cfg.Vote.MutinyCooldown = time.Minute

	env := &testEnv{
		mr:       mr,
		roomRepo: newFakeRoomRepo(),
		subRepo:  newFakeSubmissionRepo(),
		histRepo: newFakeHistoryRepo(),
		chatRepo: newFakeChatRepo(),
		bus:      &fakeBroadcaster{},
		latency:  &fakeLatency{},
		state:    managers.NewRoomStateManager(client),
		cfg:      cfg,
	}

	resolver := media.NewResolver(client, time.Hour, time.Second, 10*time.Minute, logger)
	resolver.RegisterProvider(stubProvider{})

	env.svc = NewServices(
		env.roomRepo,
		env.subRepo,
		env.histRepo,
		env.chatRepo,
		env.state,
		env.bus,
		env.latency,
		resolver,
		auth.NewPasswordProvider(logger),
		cfg,
		logger,
	)
	t.Cleanup(env.svc.Close)

	return env
}

// seedRoom creates an active room with an owner membership, bypassing the
// manager so tests control the settings exactly.
func (e *testEnv) seedRoom(t *testing.T, settings models.RoomSettings) (*models.Room, bson.ObjectID) {
	t.Helper()

	ownerID := bson.NewObjectID()
	room := &models.Room{
		Code:     "ABCDEF",
		Name:     "Test Room",
		OwnerID:  ownerID,
		Settings: settings,
		IsActive: true,
	}
	if err := e.roomRepo.Create(context.Background(), room); err != nil {
		t.Fatalf("seed room: %v", err)
	}
	e.seedMember(t, room.ID, ownerID, "owner", models.RoleOwner)
	return room, ownerID
}

var memberJoinSeq int

// seedMember adds a membership with a strictly increasing join time.
func (e *testEnv) seedMember(t *testing.T, roomID, userID bson.ObjectID, username, role string) {
	t.Helper()

	memberJoinSeq++
	err := e.roomRepo.AddMember(context.Background(), &models.Membership{
		RoomID:     roomID,
		UserID:     userID,
		Username:   username,
		Role:       role,
		JoinedAt:   time.Now().Add(time.Duration(memberJoinSeq) * time.Millisecond),
		LastActive: time.Now(),
	})
	if err != nil {
		t.Fatalf("seed member %s: %v", username, err)
	}
}

// seedSubmission adds an unplayed queue entry.
func (e *testEnv) seedSubmission(t *testing.T, roomID, submitterID bson.ObjectID, title string) *models.Submission {
	t.Helper()

	submission := &models.Submission{
		RoomID:        roomID,
		SubmitterID:   submitterID,
		SubmitterName: "submitter",
		Media: models.MediaInfo{
			Provider:        "youtube",
			SourceID:        "src-" + title,
			URL:             "https://youtu.be/src",
			Title:           title,
			DurationSeconds: 180,
		},
	}
	if err := e.subRepo.Create(context.Background(), submission); err != nil {
		t.Fatalf("seed submission: %v", err)
	}
	return submission
}
