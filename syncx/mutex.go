package syncx

import (
	"sync"

	"github.com/Swind/taskcore/engine"
)

// Mutex is a cooperative mutual-exclusion lock for coroutine task contexts.
// Unlike sync.Mutex, Lock does not block the calling goroutine directly —
// it parks the calling task context on a WaitList and returns control to
// the worker, which goes on to drive other tasks, until the lock is handed
// to it.
//
// Ownership transfers directly from Unlock to the next waiter rather than
// clearing the locked flag and letting every waiter race to reacquire it;
// this avoids the thundering-herd wakeup the wait-list's own tombstone
// design is built to tolerate but need not invite.
type Mutex struct {
	mu       sync.Mutex
	locked   bool
	waitList *engine.WaitList
}

// NewMutex returns an unlocked Mutex.
func NewMutex() *Mutex {
	m := &Mutex{}
	m.waitList = engine.NewWaitList(&m.mu)
	return m
}

// Lock acquires the mutex for ctx, parking ctx if it is already held.
func (m *Mutex) Lock(ctx Parker) {
	m.mu.Lock()
	if !m.locked {
		m.locked = true
		m.mu.Unlock()
		return
	}
	m.waitList.Append(&m.mu, ctx)
	m.mu.Unlock()

	ctx.Park()
	// Ownership was handed to us by Unlock before it woke us; no need to
	// re-check m.locked.
}

// TryLock acquires the mutex only if it is currently free.
func (m *Mutex) TryLock() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locked {
		return false
	}
	m.locked = true
	return true
}

// Unlock releases the mutex, handing it directly to the next waiter if one
// exists, or marking it free otherwise.
func (m *Mutex) Unlock() {
	m.mu.Lock()
	if m.waitList.Len() > 0 {
		// Ownership transfers to whichever waiter WakeupOne selects;
		// locked stays true throughout.
		m.waitList.WakeupOne(&m.mu)
		m.mu.Unlock()
		return
	}
	m.locked = false
	m.mu.Unlock()
}
