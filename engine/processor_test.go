package engine

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Given a processor with 2 workers and no overload limits
// When 1000 trivial one-step tasks are scheduled from one thread
// Then all 1000 finish, alive returns to 0, and no overload is counted.
func TestTaskProcessor_BaselineDispatch(t *testing.T) {
	p, err := NewTaskProcessor(ProcessorConfig{Name: "baseline", WorkerThreads: 2}, WithLogger(NoOpLogger{}))
	require.NoError(t, err)
	defer p.Shutdown()

	const n = 1000
	var wg sync.WaitGroup
	wg.Add(n)

	for i := 0; i < n; i++ {
		id := uint64(i)
		ctx := NewStepTaskContext(id, false, p.Counter(), p, func(self *StepTaskContext) (bool, error) {
			wg.Done()
			return true, nil
		})
		p.Schedule(ctx)
	}

	waitOrFail(t, &wg, 5*time.Second)

	assert.Eventually(t, func() bool {
		return p.Counter().Alive() == 0
	}, time.Second, time.Millisecond)

	snap := p.Counter().Snapshot()
	assert.Equal(t, int64(n), snap.Created)
	assert.Equal(t, int64(0), snap.Overloaded)
	assert.Equal(t, int64(0), snap.CancelledDueOverload)
}

// Given max_task_queue_wait_length=4, overload_action=Cancel, and 2 workers
// blocked on a barrier inside DoStep
// When 10 non-critical tasks are scheduled then 1 critical, and the
// barrier is released
// Then the first 4 run normally, the next 6 non-critical are cancelled
// with Overload, and the critical task always runs to completion.
func TestTaskProcessor_LengthOverload(t *testing.T) {
	p, err := NewTaskProcessor(ProcessorConfig{Name: "overload", WorkerThreads: 2}, WithLogger(NoOpLogger{}))
	require.NoError(t, err)
	defer p.Shutdown()

	p.SetMaxTaskQueueWaitLength(4)
	p.SetOverloadAction(OverloadCancel)

	barrier := make(chan struct{})

	// Saturate both workers on filler tasks first, so the 11 real
	// schedules below queue up without any concurrent dequeue racing
	// the length check.
	entered := make(chan struct{}, 2)
	var fillerWG sync.WaitGroup
	fillerWG.Add(2)
	for i := 0; i < 2; i++ {
		ctx := NewStepTaskContext(uint64(900+i), false, p.Counter(), p, func(self *StepTaskContext) (bool, error) {
			entered <- struct{}{}
			<-barrier
			fillerWG.Done()
			return true, nil
		})
		p.Schedule(ctx)
	}
	<-entered
	<-entered

	var ran, cancelled atomic.Int64
	var wg sync.WaitGroup
	wg.Add(11)

	makeStep := func(critical bool) StepFunc {
		return func(self *StepTaskContext) (bool, error) {
			<-barrier
			if !critical && self.Cancellation() == CancellationOverload {
				cancelled.Add(1)
			} else {
				ran.Add(1)
			}
			wg.Done()
			return true, nil
		}
	}

	for i := 0; i < 10; i++ {
		ctx := NewStepTaskContext(uint64(i), false, p.Counter(), p, makeStep(false))
		p.Schedule(ctx)
	}
	criticalCtx := NewStepTaskContext(999, true, p.Counter(), p, makeStep(true))
	p.Schedule(criticalCtx)

	close(barrier)
	waitOrFail(t, &wg, 5*time.Second)
	waitOrFail(t, &fillerWG, 5*time.Second)

	assert.Equal(t, int64(5), ran.Load(), "4 non-critical + 1 critical should run normally")
	assert.Equal(t, int64(6), cancelled.Load())

	snap := p.Counter().Snapshot()
	assert.Equal(t, int64(6), snap.Overloaded)
	assert.Equal(t, int64(6), snap.CancelledDueOverload)
}

// Given a task that is Adopted and immediately finishes on its next step
// When the race plays out either order
// Then the detached set ends empty and no handle leaks.
func TestTaskProcessor_AdoptThenFinishRace(t *testing.T) {
	p, err := NewTaskProcessor(ProcessorConfig{Name: "adopt", WorkerThreads: 2}, WithLogger(NoOpLogger{}))
	require.NoError(t, err)
	defer p.Shutdown()

	var done sync.WaitGroup
	done.Add(1)

	ctx := NewStepTaskContext(1, false, p.Counter(), p, func(self *StepTaskContext) (bool, error) {
		done.Done()
		return true, nil
	})

	p.Adopt(ctx)
	p.Schedule(ctx)

	waitOrFail(t, &done, 2*time.Second)

	assert.Eventually(t, func() bool {
		p.detachedMu.Lock()
		_, present := p.detached[ctx]
		p.detachedMu.Unlock()
		return !present
	}, time.Second, time.Millisecond)
}

// Given a processor shutting down on one thread while another thread
// performs 100 Schedule calls concurrently
// Then every enqueued task still runs its step, the destructor completes,
// and the final alive count is 0.
func TestTaskProcessor_ShutdownDuringSchedule(t *testing.T) {
	p, err := NewTaskProcessor(ProcessorConfig{Name: "shutdown", WorkerThreads: 2}, WithLogger(NoOpLogger{}))
	require.NoError(t, err)

	const n = 100
	var wg sync.WaitGroup
	wg.Add(n)

	go func() {
		for i := 0; i < n; i++ {
			ctx := NewStepTaskContext(uint64(i), false, p.Counter(), p, func(self *StepTaskContext) (bool, error) {
				wg.Done()
				return true, nil
			})
			p.Schedule(ctx)
		}
	}()

	time.Sleep(time.Millisecond)
	p.Shutdown()

	waitOrFail(t, &wg, 5*time.Second)
	assert.Equal(t, int64(0), p.Counter().Alive())
}

// Given max_task_queue_wait_time=10ms and K=16 sparse sampling
// When 32 tasks that each sleep 20ms in DoStep are scheduled from one
// thread
// Then at least one overload is accounted, and critical tasks are never
// cancelled for overload even when a measured or inherited verdict flags
// them.
func TestTaskProcessor_LatencyOverloadSparseSampling(t *testing.T) {
	p, err := NewTaskProcessor(ProcessorConfig{Name: "latency", WorkerThreads: 1}, WithLogger(NoOpLogger{}))
	require.NoError(t, err)
	defer p.Shutdown()

	p.SetMaxTaskQueueWaitTime(10 * time.Millisecond)
	p.SetOverloadAction(OverloadCancel)

	var wg sync.WaitGroup
	wg.Add(32)

	var criticalCancelled atomic.Int64

	for i := 0; i < 32; i++ {
		critical := i%8 == 0
		ctx := NewStepTaskContext(uint64(i), critical, p.Counter(), p, func(self *StepTaskContext) (bool, error) {
			time.Sleep(20 * time.Millisecond)
			if self.IsCritical() && self.Cancellation() == CancellationOverload {
				criticalCancelled.Add(1)
			}
			wg.Done()
			return true, nil
		})
		p.Schedule(ctx)
	}

	waitOrFail(t, &wg, 10*time.Second)

	assert.Equal(t, int64(0), criticalCancelled.Load())
	assert.GreaterOrEqual(t, p.Counter().Snapshot().Overloaded, int64(1))
}

func waitOrFail(t *testing.T, wg *sync.WaitGroup, timeout time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatal(fmt.Sprintf("timed out after %s waiting for tasks", timeout))
	}
}
