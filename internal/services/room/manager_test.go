package room

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"norelock.dev/waveroom/backend/internal/models"
	"norelock.dev/waveroom/backend/internal/utils"
)

func TestCreateRoom(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ownerID := bson.NewObjectID()

	room, err := env.svc.Rooms.CreateRoom(ctx, ownerID, "alice", &models.CreateRoomRequest{
		Name: "Friday Night",
	})
	require.NoError(t, err)
	assert.True(t, utils.IsValidRoomCode(room.Code))
	assert.True(t, room.IsActive)
	assert.Equal(t, ownerID, room.OwnerID)
	// Defaults applied when the request carries no settings.
	assert.Equal(t, 50, room.Settings.MaxMembers)
	assert.Equal(t, 0.51, room.Settings.MutinyThreshold)

	membership, err := env.roomRepo.FindMembership(ctx, room.ID, ownerID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleOwner, membership.Role)
}

func TestCreateRoomValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Rooms.CreateRoom(ctx, bson.NewObjectID(), "alice", &models.CreateRoomRequest{
		Name: "x",
	})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = env.svc.Rooms.CreateRoom(ctx, bson.NewObjectID(), "alice", &models.CreateRoomRequest{
		Name:     "Valid Name",
		Settings: &models.RoomSettings{MaxMembers: 1, MutinyThreshold: 0.51},
	})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestJoinRoomByCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ownerID := bson.NewObjectID()

	room, err := env.svc.Rooms.CreateRoom(ctx, ownerID, "alice", &models.CreateRoomRequest{Name: "Friday Night"})
	require.NoError(t, err)

	bob := bson.NewObjectID()
	joined, err := env.svc.Rooms.JoinRoom(ctx, bob, "bob", &models.JoinRoomRequest{RoomCode: room.Code})
	require.NoError(t, err)
	assert.Equal(t, room.ID, joined.ID)
	assert.Equal(t, 1, env.bus.count(models.EventMemberJoined))

	state, err := env.svc.Rooms.Snapshot(ctx, room.ID, bob.Hex())
	require.NoError(t, err)
	assert.Len(t, state.Members, 2)
	assert.Equal(t, room.Code, state.Room.Code)

	// Rejoining is a reconnect; no second member_joined fires.
	joined, err = env.svc.Rooms.JoinRoom(ctx, bob, "bob", &models.JoinRoomRequest{RoomCode: room.Code})
	require.NoError(t, err)
	assert.Equal(t, room.ID, joined.ID)
	assert.Equal(t, 1, env.bus.count(models.EventMemberJoined))

	// Unknown code.
	_, err = env.svc.Rooms.JoinRoom(ctx, bson.NewObjectID(), "carol", &models.JoinRoomRequest{RoomCode: "ZZZZZ2"})
	assert.ErrorIs(t, err, models.ErrRoomNotFound)
}

func TestJoinRoomPassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	room, err := env.svc.Rooms.CreateRoom(ctx, bson.NewObjectID(), "alice", &models.CreateRoomRequest{
		Name:     "Private Room",
		Password: "sekret",
	})
	require.NoError(t, err)

	bob := bson.NewObjectID()
	_, err = env.svc.Rooms.JoinRoom(ctx, bob, "bob", &models.JoinRoomRequest{RoomCode: room.Code, Password: "wrong"})
	assert.ErrorIs(t, err, models.ErrInvalidRoomPassword)

	_, err = env.svc.Rooms.JoinRoom(ctx, bob, "bob", &models.JoinRoomRequest{RoomCode: room.Code, Password: "sekret"})
	assert.NoError(t, err)
}

func TestJoinRoomFull(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	room, err := env.svc.Rooms.CreateRoom(ctx, bson.NewObjectID(), "alice", &models.CreateRoomRequest{
		Name:     "Tiny Room",
		Settings: &models.RoomSettings{MaxMembers: 2, MutinyThreshold: 0.51},
	})
	require.NoError(t, err)

	_, err = env.svc.Rooms.JoinRoom(ctx, bson.NewObjectID(), "bob", &models.JoinRoomRequest{RoomCode: room.Code})
	require.NoError(t, err)

	_, err = env.svc.Rooms.JoinRoom(ctx, bson.NewObjectID(), "carol", &models.JoinRoomRequest{RoomCode: room.Code})
	assert.ErrorIs(t, err, models.ErrRoomFull)
}

func TestLeaveRoomOwnershipSuccession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	room, ownerID := env.seedRoom(t, defaultSettings())
	bob := bson.NewObjectID()
	carol := bson.NewObjectID()
	env.seedMember(t, room.ID, bob, "bob", models.RoleListener)
	env.seedMember(t, room.ID, carol, "carol", models.RoleListener)

	require.NoError(t, env.svc.Rooms.LeaveRoom(ctx, room.ID, ownerID, "voluntary"))

	// The earliest-joined remaining member inherits the room.
	updated, err := env.roomRepo.FindByID(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, bob, updated.OwnerID)

	membership, err := env.roomRepo.FindMembership(ctx, room.ID, bob)
	require.NoError(t, err)
	assert.Equal(t, models.RoleOwner, membership.Role)

	changed, ok := env.bus.last(models.EventOwnerChanged)
	require.True(t, ok)
	assert.Equal(t, bob.Hex(), changed.Data.(models.OwnerChanged).OwnerID)
}

func TestLastLeaveDeactivatesRoom(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	room, ownerID := env.seedRoom(t, defaultSettings())

	require.NoError(t, env.svc.Rooms.LeaveRoom(ctx, room.ID, ownerID, "voluntary"))

	updated, err := env.roomRepo.FindByID(ctx, room.ID)
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.Equal(t, 1, env.bus.count(models.EventRoomDeactived))

	// The code no longer resolves.
	_, err = env.svc.Rooms.GetRoomByCode(ctx, room.Code)
	assert.ErrorIs(t, err, models.ErrRoomNotFound)
}

func TestLeaveRoomDJAutoRandomize(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	settings := defaultSettings()
	settings.AutoRandomizeDJ = true
	room, ownerID := env.seedRoom(t, settings)
	dj := bson.NewObjectID()
	env.seedMember(t, room.ID, dj, "dj", models.RoleListener)
	seedDJ(t, env, room.ID, dj.Hex())

	require.NoError(t, env.svc.Rooms.LeaveRoom(ctx, room.ID, dj, "voluntary"))

	// The slot refills from the remaining members.
	current, err := env.state.GetDJ(ctx, room.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, ownerID.Hex(), current)
}

func TestHandleDJTimeout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	room, _ := env.seedRoom(t, defaultSettings())
	dj := bson.NewObjectID()
	env.seedMember(t, room.ID, dj, "dj", models.RoleListener)
	seedDJ(t, env, room.ID, dj.Hex())

	require.NoError(t, env.svc.Rooms.HandleDJTimeout(ctx, room.ID, dj.Hex()))

	current, err := env.state.GetDJ(ctx, room.ID.Hex())
	require.NoError(t, err)
	assert.Empty(t, current)

	removed, ok := env.bus.last(models.EventDJRemoved)
	require.True(t, ok)
	assert.Equal(t, models.ReasonTimeout, removed.Data.(models.DJRemoved).Reason)

	// Membership survives the slot loss.
	_, err = env.roomRepo.FindMembership(ctx, room.ID, dj)
	assert.NoError(t, err)

	// A stale timeout against a different holder is a no-op.
	other := bson.NewObjectID()
	env.seedMember(t, room.ID, other, "other", models.RoleListener)
	seedDJ(t, env, room.ID, other.Hex())
	require.NoError(t, env.svc.Rooms.HandleDJTimeout(ctx, room.ID, dj.Hex()))

	current, err = env.state.GetDJ(ctx, room.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, other.Hex(), current)
}

func TestSnapshot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	room, ownerID := env.seedRoom(t, defaultSettings())
	bob := bson.NewObjectID()
	env.seedMember(t, room.ID, bob, "bob", models.RoleListener)
	seedDJ(t, env, room.ID, bob.Hex())

	submission := env.seedSubmission(t, room.ID, ownerID, "Track A")
	require.NoError(t, env.svc.Playback.Start(ctx, room.ID, bob.Hex(), submission.ID.Hex()))
	env.seedSubmission(t, room.ID, ownerID, "Track B")

	state, err := env.svc.Rooms.Snapshot(ctx, room.ID, ownerID.Hex())
	require.NoError(t, err)

	assert.Len(t, state.Members, 2)
	require.NotNil(t, state.DJ)
	assert.Equal(t, bob.Hex(), state.DJ.ID)
	assert.True(t, state.Playback.Playing)
	assert.Equal(t, submission.ID.Hex(), state.Playback.EntryID)
	// The started entry left the queue.
	require.Len(t, state.Queue, 1)
	assert.Equal(t, "Track B", state.Queue[0].Media.Title)
	assert.Nil(t, state.Vote)
}

func TestAttachSnapshotsInsideRoomSection(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	room, _ := env.seedRoom(t, defaultSettings())
	bob := bson.NewObjectID()
	_, err := env.svc.Rooms.JoinRoom(ctx, bob, "bob", &models.JoinRoomRequest{RoomCode: room.Code})
	require.NoError(t, err)

	var mu sync.Mutex
	var order []string
	record := func(step string) {
		mu.Lock()
		order = append(order, step)
		mu.Unlock()
	}

	contender := make(chan struct{})
	state, err := env.svc.Rooms.Attach(ctx, room.ID, bob.Hex(), func(roomID string) {
		record("subscribe")
		assert.Equal(t, room.ID.Hex(), roomID)
		// A publisher arriving now must wait for the section to end.
		go func() {
			unlock := env.svc.Locker.Lock(room.ID.Hex())
			record("publisher")
			unlock()
			close(contender)
		}()
	}, func(state *models.RoomState) {
		record("deliver")
		assert.Len(t, state.Members, 2)
	})
	require.NoError(t, err)
	assert.Len(t, state.Members, 2)

	<-contender
	assert.Equal(t, []string{"subscribe", "deliver", "publisher"}, order)
}

func TestListActiveRooms(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Rooms.CreateRoom(ctx, bson.NewObjectID(), "alice", &models.CreateRoomRequest{Name: "Room One"})
	require.NoError(t, err)
	room2, err := env.svc.Rooms.CreateRoom(ctx, bson.NewObjectID(), "bob", &models.CreateRoomRequest{Name: "Room Two"})
	require.NoError(t, err)

	_, err = env.svc.Rooms.JoinRoom(ctx, bson.NewObjectID(), "carol", &models.JoinRoomRequest{RoomCode: room2.Code})
	require.NoError(t, err)

	infos, err := env.svc.Rooms.ListActiveRooms(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	counts := map[string]int{}
	for _, info := range infos {
		counts[info.Name] = info.MemberCount
	}
	assert.Equal(t, 1, counts["Room One"])
	assert.Equal(t, 2, counts["Room Two"])
}
