// Package lock provides per-key mutual exclusion for plan mutations. Every
// write path for a (user, year, month) runs under its key so regeneration,
// spending updates, and redistribution never interleave.
package lock

import (
	"sync"

	"golang.org/x/sync/semaphore"
)

// Keyed hands out one binary semaphore per key. Semaphores are created on
// first use and kept for the life of the process; the key space (active
// user-months) stays small.
type Keyed struct {
	mu   sync.Mutex
	sems map[string]*semaphore.Weighted
}

// NewKeyed creates an empty keyed lock set.
func NewKeyed() *Keyed {
	return &Keyed{sems: make(map[string]*semaphore.Weighted)}
}

func (k *Keyed) sem(key string) *semaphore.Weighted {
	k.mu.Lock()
	defer k.mu.Unlock()
	s, ok := k.sems[key]
	if !ok {
		s = semaphore.NewWeighted(1)
		k.sems[key] = s
	}
	return s
}

// TryAcquire takes the key's lock without blocking. The release function is
// nil when the key is already held.
func (k *Keyed) TryAcquire(key string) (release func(), ok bool) {
	s := k.sem(key)
	if !s.TryAcquire(1) {
		return nil, false
	}
	return func() { s.Release(1) }, true
}
