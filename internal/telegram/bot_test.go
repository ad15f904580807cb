package telegram

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestLockUserSerialisesSameUser(t *testing.T) {
	b := &Bot{userLock: make(map[int64]*sync.Mutex)}

	const workers = 50
	var (
		inCritical atomic.Int32
		overlap    atomic.Bool
		counter    int
		wg         sync.WaitGroup
	)

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			unlock := b.lockUser(7)
			defer unlock()

			if inCritical.Add(1) > 1 {
				overlap.Store(true)
			}
			counter++
			inCritical.Add(-1)
		}()
	}
	wg.Wait()

	if overlap.Load() {
		t.Error("two goroutines held the same user's lock at once")
	}
	if counter != workers {
		t.Errorf("counter = %d, want %d (lost update under the lock)", counter, workers)
	}
}

func TestLockUserAllowsDifferentUsers(t *testing.T) {
	b := &Bot{userLock: make(map[int64]*sync.Mutex)}

	unlockA := b.lockUser(1)
	// Must not block: user 2 has its own lock.
	done := make(chan struct{})
	go func() {
		unlockB := b.lockUser(2)
		unlockB()
		close(done)
	}()
	<-done
	unlockA()
}
