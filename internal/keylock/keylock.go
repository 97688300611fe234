// Package keylock provides per-key mutual exclusion. The lending service
// acquires the lock for a book id before its check-then-act sequence so that
// two in-flight borrows of the same book cannot interleave between the
// active-record check and the insert.
package keylock

import "sync"

type KeyLock struct {
	mu    sync.Mutex
	locks map[int64]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func New() *KeyLock {
	return &KeyLock{locks: map[int64]*entry{}}
}

// Lock blocks until the lock for key is held by the caller.
func (k *KeyLock) Lock(key int64) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &entry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
}

// Unlock releases the lock for key. The entry is dropped once no other
// goroutine is waiting on it, so the map stays bounded by live contention.
func (k *KeyLock) Unlock(key int64) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		k.mu.Unlock()
		panic("keylock: unlock of unheld key")
	}
	e.refs--
	if e.refs == 0 {
		delete(k.locks, key)
	}
	k.mu.Unlock()

	e.mu.Unlock()
}
