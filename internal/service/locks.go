package service

import (
	"sort"
	"sync"
)

// entityLocks serializes operations per entity ID. Two conflicting
// placements or deletions on the same entity never interleave; operations
// on different entities proceed independently. Lock entries are
// reference-counted so the map does not grow with the entity count.
type entityLocks struct {
	mu    sync.Mutex
	locks map[string]*entityLock
}

type entityLock struct {
	mu   sync.Mutex
	refs int
}

// NewEntityLocks creates the shared per-entity lock set. One instance is
// shared by every service that mutates entities.
func NewEntityLocks() *EntityLocks {
	return &EntityLocks{inner: &entityLocks{locks: make(map[string]*entityLock)}}
}

// EntityLocks is the exported handle around the lock set.
type EntityLocks struct {
	inner *entityLocks
}

// Lock acquires the locks for the given entity IDs. IDs are deduplicated
// and locked in sorted order so callers locking overlapping sets cannot
// deadlock.
func (l *EntityLocks) Lock(ids ...string) {
	for _, id := range dedupeSorted(ids) {
		l.inner.lock(id)
	}
}

// Unlock releases the locks for the given entity IDs.
func (l *EntityLocks) Unlock(ids ...string) {
	sorted := dedupeSorted(ids)
	for i := len(sorted) - 1; i >= 0; i-- {
		l.inner.unlock(sorted[i])
	}
}

func (l *entityLocks) lock(id string) {
	l.mu.Lock()
	e := l.locks[id]
	if e == nil {
		e = &entityLock{}
		l.locks[id] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
}

func (l *entityLocks) unlock(id string) {
	l.mu.Lock()
	e := l.locks[id]
	e.refs--
	if e.refs == 0 {
		delete(l.locks, id)
	}
	l.mu.Unlock()

	e.mu.Unlock()
}

func dedupeSorted(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
