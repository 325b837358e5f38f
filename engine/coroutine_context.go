package engine

import (
	"fmt"
	"sync/atomic"
)

// CoroutineBody is the user-supplied body of a CoroutineTaskContext. It
// runs on its own goroutine and may call Park any number of times before
// returning; returning ends the task.
type CoroutineBody func(t *CoroutineTaskContext)

// CoroutineTaskContext drives a caller-supplied body goroutine one step at
// a time through a pair of unbuffered handoff channels, the closest Go
// analogue to the source's stackful coroutine: the body can contain
// ordinary sequential, blocking-looking code (loops, calls to Park) while
// only ever running during a DoStep call from a worker.
//
// DoStep starts the body goroutine on first use and, on every call,
// signals it to run until it either parks (calls Park) or returns
// (finishes). The body and DoStep never run concurrently — they hand off
// control strictly through resume/paused.
type CoroutineTaskContext struct {
	*BaseTaskContext
	processor *TaskProcessor
	body      CoroutineBody

	started atomic.Bool
	resume  chan struct{}
	paused  chan struct{}

	wakeupSource WakeupSource
	err          error
}

// NewCoroutineTaskContext constructs a CoroutineTaskContext bound to
// processor, accounting its creation in counter.
func NewCoroutineTaskContext(id uint64, critical bool, counter *TaskCounter, processor *TaskProcessor, body CoroutineBody) *CoroutineTaskContext {
	counter.AccountCreated()
	return &CoroutineTaskContext{
		BaseTaskContext: NewBaseTaskContext(id, critical),
		processor:       processor,
		body:            body,
		resume:          make(chan struct{}),
		paused:          make(chan struct{}),
	}
}

// DoStep implements TaskContext.
func (t *CoroutineTaskContext) DoStep() error {
	if t.started.CompareAndSwap(false, true) {
		go t.run()
	} else {
		t.resume <- struct{}{}
	}
	<-t.paused
	return t.err
}

func (t *CoroutineTaskContext) run() {
	defer func() {
		if r := recover(); r != nil {
			t.err = fmt.Errorf("%v", r)
		}
		t.SetFinished()
		t.paused <- struct{}{}
	}()
	t.body(t)
}

// Park suspends the body until the context is woken, via Wakeup, by
// whichever collaborator it registered itself with (a WaitList, a
// deadline timer, or a plain reschedule). Must be called from within the
// body goroutine.
func (t *CoroutineTaskContext) Park() {
	t.paused <- struct{}{}
	<-t.resume
}

// WakeupSource returns the source of the most recent Wakeup, for the body
// to inspect after returning from Park.
func (t *CoroutineTaskContext) WakeupSource() WakeupSource {
	return t.wakeupSource
}

// Wakeup implements TaskContext by re-scheduling this context onto its
// bound processor; the body will observe source via WakeupSource after
// its next Park call returns.
func (t *CoroutineTaskContext) Wakeup(source WakeupSource) {
	t.wakeupSource = source
	t.processor.Schedule(t)
}
