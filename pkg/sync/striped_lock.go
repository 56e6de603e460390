package sync

import (
	base "sync"
)

const (
	hashEntriesPerLock = 200
)

// StripedLock consistently maps an unbounded key space, such as transaction
// ids, onto a fixed set of mutexes.
type StripedLock struct {
	locks    []base.Mutex
	hashRing *ring
}

// NewStripedLock returns a new StripedLock with a static number of stripes.
func NewStripedLock(stripes uint) *StripedLock {
	if stripes == 0 {
		stripes = 1
	}

	return &StripedLock{
		locks:    make([]base.Mutex, stripes),
		hashRing: newRing("lock", int(stripes), hashEntriesPerLock),
	}
}

// Get gets the lock for a key
func (l *StripedLock) Get(key string) *base.Mutex {
	return &l.locks[l.hashRing.shard(key)]
}

// Lock acquires the lock for a key and returns the function releasing it.
func (l *StripedLock) Lock(key string) (unlock func()) {
	mu := l.Get(key)
	mu.Lock()
	return mu.Unlock
}
