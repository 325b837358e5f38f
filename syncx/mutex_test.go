package syncx

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Swind/taskcore/engine"
)

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
		t.Fatal("timed out waiting for goroutines")
	}
}

// Given a Mutex and N coroutine tasks each incrementing a shared counter
// under the lock
// When all N are scheduled concurrently on a multi-worker processor
// Then the final counter equals N with no lost updates.
func TestMutex_MutualExclusion(t *testing.T) {
	p, err := engine.NewTaskProcessor(engine.ProcessorConfig{Name: "mutex", WorkerThreads: 4}, engine.WithLogger(engine.NoOpLogger{}))
	require.NoError(t, err)
	defer p.Shutdown()

	m := NewMutex()
	counter := 0

	const n = 100
	var wg sync.WaitGroup
	wg.Add(n)

	for i := 0; i < n; i++ {
		id := uint64(i)
		ctx := engine.NewCoroutineTaskContext(id, false, p.Counter(), p, func(t *engine.CoroutineTaskContext) {
			m.Lock(t)
			counter++
			m.Unlock()
			wg.Done()
		})
		p.Schedule(ctx)
	}

	waitOrFail(t, &wg, 5*time.Second)
	assert.Equal(t, n, counter)
}

// Given a locked Mutex
// When TryLock is called
// Then it fails without blocking, and succeeds once the lock is released.
func TestMutex_TryLock(t *testing.T) {
	m := NewMutex()
	require.True(t, m.TryLock())
	assert.False(t, m.TryLock())
	m.Unlock()
	assert.True(t, m.TryLock())
}
