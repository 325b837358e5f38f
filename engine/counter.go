package engine

import (
	"sync/atomic"
	"time"
)

// TaskCounter is the process-wide accountant for one task processor: it
// tracks created/destroyed task contexts and a handful of diagnostic
// counters, and lets the processor's destructor wait for the in-flight
// count to drain before joining its workers.
type TaskCounter struct {
	created        atomic.Int64
	destroyed      atomic.Int64
	switchSlow     atomic.Int64
	overloaded     atomic.Int64
	cancelOverload atomic.Int64
}

// NewTaskCounter returns a ready-to-use counter.
func NewTaskCounter() *TaskCounter {
	return &TaskCounter{}
}

// CounterSnapshot is a point-in-time read of a TaskCounter, exposed as the
// Observability surface named in the external-interfaces section.
type CounterSnapshot struct {
	Created              int64
	Destroyed            int64
	Alive                int64
	SwitchSlow           int64
	Overloaded           int64
	CancelledDueOverload int64
}

// AccountCreated registers one new task context.
func (c *TaskCounter) AccountCreated() {
	c.created.Add(1)
}

// AccountDestroyed registers one task context leaving the system.
func (c *TaskCounter) AccountDestroyed() {
	c.destroyed.Add(1)
}

// AccountSwitchSlow registers one worker poll that timed out without
// dequeuing a task.
func (c *TaskCounter) AccountSwitchSlow() {
	c.switchSlow.Add(1)
}

// AccountOverload registers one overload detection, independent of whether
// the task was actually cancelled for it.
func (c *TaskCounter) AccountOverload() {
	c.overloaded.Add(1)
}

// AccountCancelOverload registers one task cancelled because of overload.
func (c *TaskCounter) AccountCancelOverload() {
	c.cancelOverload.Add(1)
}

// Alive returns created - destroyed.
func (c *TaskCounter) Alive() int64 {
	return c.created.Load() - c.destroyed.Load()
}

// Snapshot returns a consistent-enough read of all counters for
// diagnostics; it is not a transaction, matching the source's own
// best-effort observability guarantees.
func (c *TaskCounter) Snapshot() CounterSnapshot {
	return CounterSnapshot{
		Created:              c.created.Load(),
		Destroyed:            c.destroyed.Load(),
		Alive:                c.Alive(),
		SwitchSlow:           c.switchSlow.Load(),
		Overloaded:           c.overloaded.Load(),
		CancelledDueOverload: c.cancelOverload.Load(),
	}
}

// WaitForExhaustion blocks until Alive() reaches zero or timeout elapses,
// returning true iff it drained. Used by the processor's destruction
// protocol as a best-effort, bounded wait — never an indefinite one. Polls
// on a short tick rather than parking on the broadcast condition, since the
// bound here is already only ten milliseconds in practice.
func (c *TaskCounter) WaitForExhaustion(timeout time.Duration) bool {
	if c.Alive() == 0 {
		return true
	}

	deadline := time.Now().Add(timeout)
	const tick = 200 * time.Microsecond
	for {
		if c.Alive() == 0 {
			return true
		}
		if time.Now().After(deadline) {
			return c.Alive() == 0
		}
		time.Sleep(tick)
	}
}
