package syncx

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Swind/taskcore/engine"
)

// Given a CondVar guarding a boolean "ready" predicate
// When a waiter parks via Wait before the predicate is set, and a signaler
// sets the predicate and calls Signal under the same lock
// Then the waiter wakes and observes the predicate true.
func TestCondVar_WaitSignal(t *testing.T) {
	p, err := engine.NewTaskProcessor(engine.ProcessorConfig{Name: "condvar", WorkerThreads: 2}, engine.WithLogger(engine.NoOpLogger{}))
	require.NoError(t, err)
	defer p.Shutdown()

	m := NewMutex()
	cv := NewCondVar(m)
	ready := false

	var wg sync.WaitGroup
	wg.Add(1)

	waiter := engine.NewCoroutineTaskContext(1, false, p.Counter(), p, func(t *engine.CoroutineTaskContext) {
		m.Lock(t)
		for !ready {
			cv.Wait(t)
		}
		m.Unlock()
		wg.Done()
	})
	p.Schedule(waiter)

	time.Sleep(50 * time.Millisecond)

	signaler := engine.NewCoroutineTaskContext(2, false, p.Counter(), p, func(t *engine.CoroutineTaskContext) {
		m.Lock(t)
		ready = true
		cv.Signal()
		m.Unlock()
	})
	p.Schedule(signaler)

	waitOrFail(t, &wg, 5*time.Second)
	assert.True(t, ready)
}

// Given a CondVar with no signaler
// When a waiter calls WaitWithDeadline
// Then it returns false (timed out) once the deadline elapses and the
// lock is still held afterward.
func TestCondVar_WaitWithDeadline_TimesOut(t *testing.T) {
	p, err := engine.NewTaskProcessor(engine.ProcessorConfig{Name: "condvar-deadline", WorkerThreads: 2}, engine.WithLogger(engine.NoOpLogger{}))
	require.NoError(t, err)
	defer p.Shutdown()

	m := NewMutex()
	cv := NewCondVar(m)

	var wg sync.WaitGroup
	wg.Add(1)
	var woken bool
	var heldAfter bool

	ctx := engine.NewCoroutineTaskContext(1, false, p.Counter(), p, func(t *engine.CoroutineTaskContext) {
		m.Lock(t)
		woken = cv.WaitWithDeadline(t, time.Now().Add(30*time.Millisecond))
		heldAfter = !m.TryLock()
		m.Unlock()
		wg.Done()
	})
	p.Schedule(ctx)

	waitOrFail(t, &wg, 5*time.Second)
	assert.False(t, woken)
	assert.True(t, heldAfter, "L should be reacquired after the deadline")
}
