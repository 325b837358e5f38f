package syncx

import (
	"sync"
	"time"

	"github.com/Swind/taskcore/engine"
)

// CondVar is a cooperative condition variable associated with a Mutex, in
// the style of sync.Cond: callers hold L, check a predicate, and call Wait
// to atomically release L and park until Signal or Broadcast.
//
// The wait-list contract's lost-wakeup avoidance ("lock, update predicate,
// wake under lock, release") is preserved here because Wait appends ctx to
// its own wait-list — under CondVar's private lock — before releasing L. A
// concurrent Signal/Broadcast, which is only ever called by code that also
// holds L, cannot run until L is released, by which point the append has
// already happened; it can never be missed.
type CondVar struct {
	L *Mutex

	mu       sync.Mutex
	waitList *engine.WaitList
}

// NewCondVar returns a CondVar associated with l.
func NewCondVar(l *Mutex) *CondVar {
	c := &CondVar{L: l}
	c.waitList = engine.NewWaitList(&c.mu)
	return c
}

// Wait releases L, parks ctx until woken by Signal or Broadcast, and
// reacquires L before returning. The caller must hold L.
func (c *CondVar) Wait(ctx Parker) {
	c.mu.Lock()
	c.waitList.Append(&c.mu, ctx)
	c.mu.Unlock()

	c.L.Unlock()
	ctx.Park()

	c.L.Lock(ctx)
}

// WaitWithDeadline behaves like Wait but also races the park against a
// deadline timer; the timer's callback tombstones ctx's wait-list slot
// (per the wait-list's Remove-race-safety contract) and delivers
// WakeupDeadlineTimer itself only if it wins that race. It returns true if
// woken by Signal/Broadcast, false if the deadline elapsed first. L is
// reacquired before returning either way.
func (c *CondVar) WaitWithDeadline(ctx Parker, deadline time.Time) bool {
	c.mu.Lock()
	c.waitList.Append(&c.mu, ctx)
	c.mu.Unlock()

	c.L.Unlock()

	timer := time.AfterFunc(time.Until(deadline), func() {
		if c.waitList.Remove(ctx) {
			ctx.Wakeup(engine.WakeupDeadlineTimer)
		}
	})

	ctx.Park()
	timer.Stop()

	// Read the source before relocking: a contended L.Lock parks again and
	// overwrites it with the mutex's own WakeupWaitList.
	signalled := ctx.WakeupSource() != engine.WakeupDeadlineTimer
	c.L.Lock(ctx)
	return signalled
}

// Signal wakes at most one waiter, FIFO. The caller should hold L.
func (c *CondVar) Signal() {
	c.mu.Lock()
	c.waitList.WakeupOne(&c.mu)
	c.mu.Unlock()
}

// Broadcast wakes every current waiter. The caller should hold L.
func (c *CondVar) Broadcast() {
	c.mu.Lock()
	c.waitList.WakeupAll(&c.mu)
	c.mu.Unlock()
}
