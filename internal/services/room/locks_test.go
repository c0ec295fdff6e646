package room

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRoomLockerSerializes(t *testing.T) {
	locker := NewRoomLocker()

	unlock := locker.Lock("room1")

	acquired := make(chan struct{})
	go func() {
		u := locker.Lock("room1")
		close(acquired)
		u()
	}()

	select {
	case <-acquired:
		t.Fatal("second acquisition succeeded while the lock was held")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second acquisition never completed")
	}
}

func TestRoomLockerIndependentRooms(t *testing.T) {
	locker := NewRoomLocker()

	unlock1 := locker.Lock("room1")
	defer unlock1()

	done := make(chan struct{})
	go func() {
		u := locker.Lock("room2")
		u()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on an unrelated room blocked")
	}
}

func TestRoomLockerReleasesEntries(t *testing.T) {
	locker := NewRoomLocker()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 20 {
				unlock := locker.Lock("room1")
				unlock()
			}
		}()
	}
	wg.Wait()

	locker.mu.Lock()
	defer locker.mu.Unlock()
	assert.Empty(t, locker.locks)
}
