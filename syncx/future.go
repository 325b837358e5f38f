package syncx

import (
	"errors"
	"sync"
	"time"

	"github.com/Swind/taskcore/engine"
)

// ErrFutureTimeout is returned by Future.GetWithDeadline when the deadline
// elapses before the value is set.
var ErrFutureTimeout = errors.New("syncx: future wait deadline exceeded")

// Future is a single-assignment value cell that cooperative task contexts
// can park on until it is resolved, the coroutine analogue of a one-shot
// promise. Set may be called from any goroutine, including a plain OS
// thread outside the task-processor pool; Get/GetWithDeadline must be
// called from within a coroutine task context's body.
type Future[T any] struct {
	mu       sync.Mutex
	waitList *engine.WaitList
	done     bool
	value    T
}

// NewFuture returns an unresolved Future.
func NewFuture[T any]() *Future[T] {
	f := &Future[T]{}
	f.waitList = engine.NewWaitList(&f.mu)
	return f
}

// Set resolves the future to value and wakes every waiter. Subsequent
// calls are no-ops — a Future is single-assignment. The wakeup happens
// while f.mu is still held, matching the wait-list's mandatory caller
// pattern (lock, update predicate, wake under lock, release), so a Get that
// has already appended itself is always woken. Such a waiter may not have
// parked yet when it is woken; CoroutineTaskContext tolerates this, since
// the extra DoStep blocks until the body has parked.
func (f *Future[T]) Set(value T) {
	f.mu.Lock()
	if f.done {
		f.mu.Unlock()
		return
	}
	f.done = true
	f.value = value
	f.waitList.WakeupAll(&f.mu)
	f.mu.Unlock()
}

// Get blocks ctx (by parking it, not the calling goroutine) until the
// future is resolved, then returns the value.
func (f *Future[T]) Get(ctx Parker) T {
	f.mu.Lock()
	if f.done {
		v := f.value
		f.mu.Unlock()
		return v
	}
	f.waitList.Append(&f.mu, ctx)
	f.mu.Unlock()

	ctx.Park()

	f.mu.Lock()
	v := f.value
	f.mu.Unlock()
	return v
}

// GetWithDeadline behaves like Get but gives up with ErrFutureTimeout if
// deadline elapses first, tombstoning ctx's wait-list slot via the same
// deadline-timer race pattern used by CondVar.WaitWithDeadline.
func (f *Future[T]) GetWithDeadline(ctx Parker, deadline time.Time) (T, error) {
	f.mu.Lock()
	if f.done {
		v := f.value
		f.mu.Unlock()
		return v, nil
	}
	f.waitList.Append(&f.mu, ctx)
	f.mu.Unlock()

	timer := time.AfterFunc(time.Until(deadline), func() {
		if f.waitList.Remove(ctx) {
			ctx.Wakeup(engine.WakeupDeadlineTimer)
		}
	})

	ctx.Park()
	timer.Stop()

	if ctx.WakeupSource() == engine.WakeupDeadlineTimer {
		var zero T
		return zero, ErrFutureTimeout
	}

	f.mu.Lock()
	v := f.value
	f.mu.Unlock()
	return v, nil
}

// Done reports whether the future has been resolved.
func (f *Future[T]) Done() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.done
}
