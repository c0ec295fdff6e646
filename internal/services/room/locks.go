package room

import "sync"

// RoomLocker serializes mutations per room. Every room mutation acquires the
// room's lock and holds it across the state change and its broadcast, so
// subscribers observe events for a room in a single total order.
type RoomLocker struct {
	mu    sync.Mutex
	locks map[string]*roomLock
}

type roomLock struct {
	mu   sync.Mutex
	refs int
}

// NewRoomLocker creates a new room locker.
func NewRoomLocker() *RoomLocker {
	return &RoomLocker{
		locks: make(map[string]*roomLock),
	}
}

// Lock acquires the lock for a room and returns its release function.
func (l *RoomLocker) Lock(roomID string) func() {
	l.mu.Lock()
	entry, ok := l.locks[roomID]
	if !ok {
		entry = &roomLock{}
		l.locks[roomID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, roomID)
		}
		l.mu.Unlock()
	}
}
