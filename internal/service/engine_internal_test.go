package service

import (
	"fmt"
	"sync"
	"testing"
)

func TestRequestLockEntryRemovedOnRelease(t *testing.T) {
	e := &Engine{locks: make(map[string]*requestLock)}

	unlock := e.lock("req-1")
	if len(e.locks) != 1 {
		t.Fatalf("lock map holds %d entries while held, want 1", len(e.locks))
	}
	unlock()
	if len(e.locks) != 0 {
		t.Fatalf("lock map holds %d entries after release, want 0", len(e.locks))
	}
}

func TestRequestLockMapDoesNotAccumulate(t *testing.T) {
	e := &Engine{locks: make(map[string]*requestLock)}

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		id := fmt.Sprintf("req-%d", i%5)
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := e.lock(id)
			unlock()
		}()
	}
	wg.Wait()

	e.mu.Lock()
	n := len(e.locks)
	e.mu.Unlock()
	if n != 0 {
		t.Fatalf("lock map holds %d entries after all releases, want 0", n)
	}
}
