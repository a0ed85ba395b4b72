package inbox

import (
	"slices"
	"sync"
)

// keyLock serializes work per key. Locks for different keys are independent.
type keyLock struct {
	mu    sync.Mutex
	locks map[string]*keyEntry
}

type keyEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyLock() *keyLock {
	return &keyLock{locks: map[string]*keyEntry{}}
}

// Lock acquires every key in sorted order and returns the release function.
// Sorting keeps multi-key callers from deadlocking each other.
func (k *keyLock) Lock(keys ...string) (unlock func()) {
	keys = slices.Clone(keys)
	slices.Sort(keys)
	keys = slices.Compact(keys)

	entries := make([]*keyEntry, len(keys))
	k.mu.Lock()
	for i, key := range keys {
		e, ok := k.locks[key]
		if !ok {
			e = &keyEntry{}
			k.locks[key] = e
		}
		e.refs++
		entries[i] = e
	}
	k.mu.Unlock()

	for _, e := range entries {
		e.mu.Lock()
	}

	return func() {
		for i := len(entries) - 1; i >= 0; i-- {
			entries[i].mu.Unlock()
		}
		k.mu.Lock()
		for i, key := range keys {
			entries[i].refs--
			if entries[i].refs == 0 {
				delete(k.locks, key)
			}
		}
		k.mu.Unlock()
	}
}

func (k *keyLock) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
