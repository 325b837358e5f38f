package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Given a processor and a wait-list primitive
// When a coroutine task parks on the wait-list and another task wakes it
// with WakeupOne
// Then the parked task observes WakeupWaitList and runs to completion.
func TestCoroutineTaskContext_ParkAndWakeupOne(t *testing.T) {
	p, err := NewTaskProcessor(ProcessorConfig{Name: "park", WorkerThreads: 2}, WithLogger(NoOpLogger{}))
	require.NoError(t, err)
	defer p.Shutdown()

	var primitiveLock sync.Mutex
	wl := NewWaitList(&primitiveLock)

	var observed WakeupSource
	var done sync.WaitGroup
	done.Add(1)

	var parked *CoroutineTaskContext
	parked = NewCoroutineTaskContext(1, false, p.Counter(), p, func(t *CoroutineTaskContext) {
		primitiveLock.Lock()
		wl.Append(&primitiveLock, parked)
		primitiveLock.Unlock()

		t.Park()

		observed = t.WakeupSource()
		done.Done()
	})
	p.Schedule(parked)

	// Give the park a moment to register on the wait list before waking.
	assert.Eventually(t, func() bool {
		primitiveLock.Lock()
		defer primitiveLock.Unlock()
		return wl.Len() == 1
	}, time.Second, time.Millisecond)

	primitiveLock.Lock()
	wl.WakeupOne(&primitiveLock)
	primitiveLock.Unlock()

	waitOrFail(t, &done, 2*time.Second)
	assert.Equal(t, WakeupWaitList, observed)
}

// Given 5 contexts appended to a wait-list, 2 of them removed
// When WakeupAll is invoked and each woken context is scheduled on a real
// processor
// Then exactly the 3 remaining contexts run to completion once each.
func TestCoroutineTaskContext_WakeupAll(t *testing.T) {
	p, err := NewTaskProcessor(ProcessorConfig{Name: "wakeup-all", WorkerThreads: 2}, WithLogger(NoOpLogger{}))
	require.NoError(t, err)
	defer p.Shutdown()

	var primitiveLock sync.Mutex
	wl := NewWaitList(&primitiveLock)

	var wg sync.WaitGroup
	wg.Add(3)

	ctxs := make([]*CoroutineTaskContext, 5)
	for i := range ctxs {
		idx := i
		ctxs[i] = NewCoroutineTaskContext(uint64(i), false, p.Counter(), p, func(t *CoroutineTaskContext) {
			t.Park()
			if idx != 1 && idx != 3 {
				wg.Done()
			}
		})
	}

	primitiveLock.Lock()
	for _, ctx := range ctxs {
		wl.Append(&primitiveLock, ctx)
	}
	primitiveLock.Unlock()

	for _, ctx := range ctxs {
		p.Schedule(ctx)
	}

	assert.Eventually(t, func() bool {
		primitiveLock.Lock()
		defer primitiveLock.Unlock()
		return wl.Len() == 5
	}, time.Second, time.Millisecond)

	wl.Remove(ctxs[1])
	wl.Remove(ctxs[3])

	primitiveLock.Lock()
	wl.WakeupAll(&primitiveLock)
	primitiveLock.Unlock()

	waitOrFail(t, &wg, 2*time.Second)

	primitiveLock.Lock()
	assert.Equal(t, 0, wl.Len())
	primitiveLock.Unlock()

	// The two removed contexts are still parked; wake them so they finish
	// before the deferred Shutdown checks that no context is left alive.
	ctxs[1].Wakeup(WakeupCancellation)
	ctxs[3].Wakeup(WakeupCancellation)
}
