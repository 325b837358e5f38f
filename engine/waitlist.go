package engine

import "sync"

// WaitList is the bookkeeping structure held by a blocking synchronization
// primitive (mutex, condition variable, future — see the syncx package).
// It records which task contexts are suspended on the primitive and wakes
// one or all of them.
//
// Append, WakeupOne, and WakeupAll must be called with the primitive's own
// lock already held; the lock parameter is a proof-of-hold token, not
// something WaitList acquires on their behalf — it never takes a lock of
// its own inside those three methods. This lets the caller serialize
// Append/Wakeup with its own state transitions and avoid the classic
// lost-wakeup hazard: lock, update predicate, wake under lock, release.
// Remove is the one exception: it is called from the context that is
// removing itself (e.g. on timeout or cancellation), not from code that
// already holds the primitive's lock while checking a predicate, so it
// acquires that same lock itself — which is why WaitList is constructed
// with a reference to it.
//
// Removed slots are tombstoned in place rather than shifted, so a
// concurrent WakeupOne that already captured a slice index never observes
// a shifted, wrong context — see Remove.
type WaitList struct {
	lock    sync.Locker
	waiters []TaskContext // nil entries are tombstones
}

// NewWaitList returns an empty wait list guarded by the primitive's own
// lock. Append, WakeupOne, WakeupAll, and Len assume the caller already
// holds lock; Remove acquires it directly, since it is not called from
// within an existing critical section.
func NewWaitList(lock sync.Locker) *WaitList {
	return &WaitList{lock: lock}
}

// assertLockHeld panics if lock is not currently held at all. sync.Mutex
// records no owner, so a lock held by a different goroutine passes the
// check. This is the debug-mode check §7 calls for ("Wait-list
// misuse... debug builds assert lock ownership via the proof token"); Go
// has no separate debug/release build mode, so it runs unconditionally —
// TryLock is cheap enough that leaving it on is the idiomatic choice here.
// Locks that don't support TryLock (not *sync.Mutex/*sync.RWMutex) are not
// checked, since sync.Locker itself exposes no ownership query.
func assertLockHeld(lock sync.Locker) {
	tl, ok := lock.(interface{ TryLock() bool })
	if !ok {
		return
	}
	if tl.TryLock() {
		lock.Unlock()
		panic("engine: WaitList operation called without the primitive's lock held")
	}
}

// Append pushes ctx to the tail. O(1). Must be called with the primitive's
// lock held.
func (w *WaitList) Append(lock sync.Locker, ctx TaskContext) {
	assertLockHeld(lock)
	w.waiters = append(w.waiters, ctx)
}

// WakeupOne pops from the head until a non-empty slot is found, wakes that
// context with WakeupWaitList, and stops. Empty (tombstoned) slots are
// silently discarded. If no non-empty slot exists, no wakeup happens. Must
// be called with the primitive's lock held.
func (w *WaitList) WakeupOne(lock sync.Locker) {
	assertLockHeld(lock)

	var woken TaskContext
	i := 0
	for ; i < len(w.waiters); i++ {
		if w.waiters[i] != nil {
			woken = w.waiters[i]
			i++
			break
		}
	}
	w.waiters = w.dropPrefix(i)

	if woken != nil {
		woken.Wakeup(WakeupWaitList)
	}
}

// WakeupAll wakes every non-empty slot with WakeupWaitList, in Append
// order, then clears the list. Must be called with the primitive's lock
// held.
func (w *WaitList) WakeupAll(lock sync.Locker) {
	assertLockHeld(lock)

	towake := make([]TaskContext, 0, len(w.waiters))
	for _, ctx := range w.waiters {
		if ctx != nil {
			towake = append(towake, ctx)
		}
	}
	w.waiters = nil

	for _, ctx := range towake {
		ctx.Wakeup(WakeupWaitList)
	}
}

// Remove locates the first slot equal to ctx and tombstones it in place
// (does not shift the slice). Unlike the other operations, Remove acquires
// the primitive's lock itself — it is called from the context that is
// removing itself (e.g. on timeout or cancellation), not from code that
// already holds the primitive's lock while checking a predicate. It
// returns whether it found and tombstoned a slot, so a caller racing a
// deadline timer against a wait-list wakeup (see syncx) can tell whether it
// won the race and must still deliver its own wakeup.
//
// A context that calls Remove concurrently with a WakeupOne that already
// selected its slot is simply not found here (already popped); it will
// still be woken exactly once. If Remove wins the race, WakeupOne's scan
// skips the now-nil slot. Either way the context is woken exactly once or
// not at all, never both.
func (w *WaitList) Remove(ctx TaskContext) bool {
	w.lock.Lock()
	defer w.lock.Unlock()

	for i, c := range w.waiters {
		if c == ctx {
			w.waiters[i] = nil
			return true
		}
	}
	return false
}

// dropPrefix returns the tail of w.waiters starting at index n, reusing
// the backing array. Callers hold the primitive's lock.
func (w *WaitList) dropPrefix(n int) []TaskContext {
	if n == 0 {
		return w.waiters
	}
	if n >= len(w.waiters) {
		return nil
	}
	return w.waiters[n:]
}

// Len returns the current slot count, tombstones included. Exposed for
// tests. Like Append/WakeupOne/WakeupAll, it must be called with the
// primitive's lock already held — it does not acquire it itself.
func (w *WaitList) Len() int {
	assertLockHeld(w.lock)
	return len(w.waiters)
}
