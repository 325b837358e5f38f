package engine

import (
	"sync"
	"sync/atomic"
	"time"
)

// CancellationReason identifies why a task context was asked to cancel.
// The zero value means no cancellation has been requested.
type CancellationReason int32

const (
	// CancellationNone means no cancellation has been requested.
	CancellationNone CancellationReason = iota
	// CancellationShutdown is requested when the owning processor is
	// being destroyed. It always wins over a later or earlier Overload
	// request.
	CancellationShutdown
	// CancellationOverload is requested by the processor's overload
	// handler.
	CancellationOverload
	// CancellationUser is requested by user code outside the processor
	// (e.g. a caller-side context.Context cancellation propagated in).
	CancellationUser
)

// String renders the reason for logging.
func (r CancellationReason) String() string {
	switch r {
	case CancellationNone:
		return "none"
	case CancellationShutdown:
		return "shutdown"
	case CancellationOverload:
		return "overload"
	case CancellationUser:
		return "user"
	default:
		return "unknown"
	}
}

// WakeupSource identifies what caused a parked task context to become
// runnable again.
type WakeupSource int32

const (
	// WakeupWaitList means a WaitList operation (WakeupOne/WakeupAll)
	// woke the context.
	WakeupWaitList WakeupSource = iota
	// WakeupDeadlineTimer means a deadline attached to the park expired
	// before any WaitList wakeup arrived.
	WakeupDeadlineTimer
	// WakeupCancellation means the context was woken solely to observe a
	// cancellation request.
	WakeupCancellation
)

// String renders the source for logging.
func (s WakeupSource) String() string {
	switch s {
	case WakeupWaitList:
		return "wait_list"
	case WakeupDeadlineTimer:
		return "deadline_timer"
	case WakeupCancellation:
		return "cancellation"
	default:
		return "unknown"
	}
}

// TaskContext is the external contract a coroutine-like unit of work must
// satisfy to be driven by a TaskProcessor. The processor treats it as
// opaque: it never inspects what DoStep actually does, only the flags and
// hooks below.
type TaskContext interface {
	// TaskID returns a stable identifier used for logging.
	TaskID() uint64

	// IsCritical reports whether this context is exempt from
	// overload-based cancellation.
	IsCritical() bool

	// IsFinished reports whether the terminal step has already run.
	IsFinished() bool

	// IsDetached reports whether Adopt has been called on this context.
	IsDetached() bool

	// SetDetached marks the context detached. Sticky: never cleared.
	SetDetached()

	// DoStep advances the task by one scheduling step. It may set
	// IsFinished, may re-schedule itself onto any processor, and may
	// return an error equivalent to the source's "exception" case — the
	// worker logs it and treats the step as failed without retrying it.
	DoStep() error

	// Wakeup transitions the context from parked to runnable and
	// re-schedules it onto its assigned processor.
	Wakeup(source WakeupSource)

	// RequestCancel asks the context to cancel cooperatively. Idempotent
	// and safe from any goroutine. Shutdown wins over Overload if both
	// are ever requested for the same context.
	RequestCancel(reason CancellationReason)

	// Cancellation returns the reason currently in effect, or
	// CancellationNone if none was requested.
	Cancellation() CancellationReason

	// SetQueueWaitTimepoint stores a steady-clock timestamp, or the zero
	// time.Time to mean "unknown" (the sentinel described in the data
	// model).
	SetQueueWaitTimepoint(t time.Time)

	// QueueWaitTimepoint loads the stored timestamp.
	QueueWaitTimepoint() time.Time

	// RetainRef adds one reference and returns the new count. Called by
	// Schedule on the queue's behalf.
	RetainRef() int32

	// ReleaseRef removes one reference and returns the new count. Called
	// by the worker loop on dequeue.
	ReleaseRef() int32
}

// BaseTaskContext implements the bookkeeping portion of the TaskContext
// contract — ref-count, finished/detached flags, cancellation state, and
// the queue-wait timepoint, plus TaskID and IsCritical — so that concrete
// task-context types only need to supply DoStep and Wakeup. This mirrors the
// source's intrusive base: the scheduler-facing state lives in one place,
// shared by every coroutine implementation.
type BaseTaskContext struct {
	id       uint64
	critical bool

	refCount atomic.Int32
	finished atomic.Bool
	detached atomic.Bool

	cancelReason atomic.Int32 // CancellationReason

	timepointMu sync.Mutex
	timepoint   time.Time
}

// NewBaseTaskContext returns a bookkeeping base for a task context with the
// given id and criticality.
func NewBaseTaskContext(id uint64, critical bool) *BaseTaskContext {
	return &BaseTaskContext{id: id, critical: critical}
}

// TaskID implements TaskContext.
func (b *BaseTaskContext) TaskID() uint64 { return b.id }

// IsCritical implements TaskContext.
func (b *BaseTaskContext) IsCritical() bool { return b.critical }

// IsFinished implements TaskContext.
func (b *BaseTaskContext) IsFinished() bool { return b.finished.Load() }

// SetFinished marks the task's terminal step as having run. Concrete
// DoStep implementations call this once they have nothing left to do.
func (b *BaseTaskContext) SetFinished() { b.finished.Store(true) }

// IsDetached implements TaskContext.
func (b *BaseTaskContext) IsDetached() bool { return b.detached.Load() }

// SetDetached implements TaskContext.
func (b *BaseTaskContext) SetDetached() { b.detached.Store(true) }

// RequestCancel implements TaskContext, with Shutdown always winning over
// Overload regardless of arrival order, and the first reason otherwise
// sticking.
func (b *BaseTaskContext) RequestCancel(reason CancellationReason) {
	for {
		cur := CancellationReason(b.cancelReason.Load())
		if cur == CancellationShutdown {
			return
		}
		if cur != CancellationNone && reason != CancellationShutdown {
			return
		}
		if b.cancelReason.CompareAndSwap(int32(cur), int32(reason)) {
			return
		}
	}
}

// Cancellation implements TaskContext.
func (b *BaseTaskContext) Cancellation() CancellationReason {
	return CancellationReason(b.cancelReason.Load())
}

// SetQueueWaitTimepoint implements TaskContext.
func (b *BaseTaskContext) SetQueueWaitTimepoint(t time.Time) {
	b.timepointMu.Lock()
	b.timepoint = t
	b.timepointMu.Unlock()
}

// QueueWaitTimepoint implements TaskContext.
func (b *BaseTaskContext) QueueWaitTimepoint() time.Time {
	b.timepointMu.Lock()
	defer b.timepointMu.Unlock()
	return b.timepoint
}

// RetainRef implements TaskContext.
func (b *BaseTaskContext) RetainRef() int32 { return b.refCount.Add(1) }

// ReleaseRef implements TaskContext.
func (b *BaseTaskContext) ReleaseRef() int32 { return b.refCount.Add(-1) }

// RefCount returns the current reference count, for tests and assertions.
func (b *BaseTaskContext) RefCount() int32 { return b.refCount.Load() }
