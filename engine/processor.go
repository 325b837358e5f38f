package engine

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// OverloadAction selects what happens to a non-critical task once overload
// is detected, either at schedule time (length) or at dequeue time
// (latency).
type OverloadAction int32

const (
	// OverloadIgnore only accounts the overload; it never cancels.
	OverloadIgnore OverloadAction = iota
	// OverloadCancel cancels non-critical tasks with CancellationOverload.
	OverloadCancel
)

const (
	workerPollTimeout       = 50 * time.Millisecond
	shutdownDrainTimeout    = 10 * time.Millisecond
	waitTimepointSampleRate = 16
)

// ProcessorConfig is supplied at construction and fixed for the life of
// the processor; the three runtime-tunable settings (max wait time, max
// wait length, overload action) are set separately via atomic setters.
type ProcessorConfig struct {
	// Name identifies the processor for diagnostics.
	Name string
	// WorkerThreads is the fixed worker-goroutine pool size. Must be > 0.
	WorkerThreads int
	// ThreadName labels the worker goroutines for diagnostics; it is not
	// interpreted by the core (Go has no OS thread-naming primitive for
	// goroutines, so this is carried purely as a label).
	ThreadName string
	// ProfilerThreshold is passed through to tasks for self-measurement;
	// the core never interprets it.
	ProfilerThreshold time.Duration
}

// Option configures a TaskProcessor at construction time.
type Option func(*TaskProcessor)

// WithLogger overrides the default zerolog-backed logger.
func WithLogger(l Logger) Option {
	return func(p *TaskProcessor) { p.logger = l }
}

// WithTaskCounter lets callers share one TaskCounter across processors.
func WithTaskCounter(c *TaskCounter) Option {
	return func(p *TaskProcessor) { p.counter = c }
}

// TaskProcessor owns a worker pool, its task queue, the set of detached
// (adopted) contexts, overload policy, and the shutdown protocol. See the
// component design for the full public contract.
type TaskProcessor struct {
	config ProcessorConfig

	queue     *TaskQueue
	queueSize atomic.Int64

	detachedMu sync.Mutex
	detached   map[TaskContext]struct{}

	isRunning      atomic.Bool
	isShuttingDown atomic.Bool

	maxWaitTime        atomic.Int64 // time.Duration
	maxWaitLength      atomic.Int64
	overloadAction     atomic.Int32
	waitTimeOverloaded atomic.Bool

	sampleCounter atomic.Int64

	counter *TaskCounter
	logger  Logger

	group *errgroup.Group
}

// NewTaskProcessor constructs a running processor with cfg.WorkerThreads
// worker goroutines already started.
func NewTaskProcessor(cfg ProcessorConfig, opts ...Option) (*TaskProcessor, error) {
	if cfg.WorkerThreads <= 0 {
		return nil, ErrInvalidWorkerCount
	}

	p := &TaskProcessor{
		config:   cfg,
		queue:    NewTaskQueue(),
		detached: make(map[TaskContext]struct{}),
		counter:  NewTaskCounter(),
		logger:   NewZerologLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.isRunning.Store(true)

	var g errgroup.Group
	p.group = &g
	for i := 0; i < cfg.WorkerThreads; i++ {
		workerID := i
		g.Go(func() error {
			return p.workerLoop(workerID)
		})
	}

	return p, nil
}

// ProfilerThreshold returns the configured profiler threshold, exposed for
// the executing task to self-measure.
func (p *TaskProcessor) ProfilerThreshold() time.Duration {
	return p.config.ProfilerThreshold
}

// Name returns the processor's diagnostic name.
func (p *TaskProcessor) Name() string { return p.config.Name }

// Counter exposes the underlying TaskCounter for read-only observability.
func (p *TaskProcessor) Counter() *TaskCounter { return p.counter }

// SetMaxTaskQueueWaitTime is a runtime-tunable atomic setter; zero disables
// latency-based overload.
func (p *TaskProcessor) SetMaxTaskQueueWaitTime(d time.Duration) {
	p.maxWaitTime.Store(int64(d))
}

// SetMaxTaskQueueWaitLength is a runtime-tunable atomic setter; zero
// disables length-based overload.
func (p *TaskProcessor) SetMaxTaskQueueWaitLength(n int64) {
	p.maxWaitLength.Store(n)
}

// SetOverloadAction is a runtime-tunable atomic setter.
func (p *TaskProcessor) SetOverloadAction(a OverloadAction) {
	p.overloadAction.Store(int32(a))
}

// IsTaskQueueWaitTimeOverloaded reports the current latency-overload flag.
func (p *TaskProcessor) IsTaskQueueWaitTimeOverloaded() bool {
	return p.waitTimeOverloaded.Load()
}

// TaskQueueSize returns the approximate queue depth.
func (p *TaskProcessor) TaskQueueSize() int64 {
	return p.queueSize.Load()
}

// ProcessorStats is the read-only observability snapshot named in the
// external-interfaces section.
type ProcessorStats struct {
	Counter            CounterSnapshot
	QueueSize          int64
	WaitTimeOverloaded bool
}

// Stats returns a point-in-time snapshot for metrics export.
func (p *TaskProcessor) Stats() ProcessorStats {
	return ProcessorStats{
		Counter:            p.counter.Snapshot(),
		QueueSize:          p.TaskQueueSize(),
		WaitTimeOverloaded: p.IsTaskQueueWaitTimeOverloaded(),
	}
}

// Schedule enqueues ctx for execution. ctx must not currently be enqueued.
// Thread-safe; callable from any goroutine.
func (p *TaskProcessor) Schedule(ctx TaskContext) {
	maxLen := p.maxWaitLength.Load()
	if maxLen > 0 && p.queueSize.Load() >= maxLen && !ctx.IsCritical() {
		p.handleOverload(ctx)
	}

	ctx.RetainRef()
	p.queueSize.Add(1)

	if p.sampleCounter.Add(1)%waitTimepointSampleRate == 0 {
		ctx.SetQueueWaitTimepoint(time.Now())
	} else {
		ctx.SetQueueWaitTimepoint(time.Time{})
	}

	if p.isShuttingDown.Load() {
		ctx.RequestCancel(CancellationShutdown)
	}

	p.queue.Enqueue(ctx)
}

// Adopt transfers ownership of a still-running context to the processor so
// it keeps running after the caller drops its own handle. If ctx has
// already finished, the handle is simply dropped.
func (p *TaskProcessor) Adopt(ctx TaskContext) {
	p.detachedMu.Lock()
	defer p.detachedMu.Unlock()

	ctx.SetDetached()
	if ctx.IsFinished() {
		return
	}
	p.detached[ctx] = struct{}{}
}

// handleOverload always accounts one overload; with OverloadCancel and a
// non-critical context it also requests cancellation and accounts one
// cancel-due-to-overload.
func (p *TaskProcessor) handleOverload(ctx TaskContext) {
	p.counter.AccountOverload()

	if OverloadAction(p.overloadAction.Load()) == OverloadCancel && !ctx.IsCritical() {
		ctx.RequestCancel(CancellationOverload)
		p.counter.AccountCancelOverload()
	}
}

// checkWaitTime implements the latency-overload check run by a worker
// right after dequeue, including the sparse-sampling "inherit previous
// verdict" fallback for sentinel timepoints.
func (p *TaskProcessor) checkWaitTime(ctx TaskContext) {
	maxWait := time.Duration(p.maxWaitTime.Load())
	if maxWait == 0 {
		p.waitTimeOverloaded.Store(false)
		return
	}

	tp := ctx.QueueWaitTimepoint()
	if tp.IsZero() {
		if p.waitTimeOverloaded.Load() {
			p.handleOverload(ctx)
		}
		return
	}

	waited := time.Since(tp)
	overloaded := waited >= maxWait
	p.waitTimeOverloaded.Store(overloaded)
	p.logger.Tracew("task queue wait measured", ctx.TaskID(), waited.String())

	if overloaded {
		p.handleOverload(ctx)
	}
}

// workerLoop is the per-worker dequeue/step loop. It returns nil once
// is_running is observed false on a timed-out poll; this is the only
// normal exit path, matching the shutdown protocol.
func (p *TaskProcessor) workerLoop(workerID int) error {
	token := NewConsumerToken()

	for {
		item, ok := p.queue.WaitDequeueTimed(token, workerPollTimeout)
		if !ok {
			p.counter.AccountSwitchSlow()
			if !p.isRunning.Load() {
				return nil
			}
			continue
		}

		p.queueSize.Add(-1)
		p.checkWaitTime(item)

		hasFailed := p.runStep(item)

		if hasFailed || (item.IsDetached() && item.IsFinished()) {
			p.detachedMu.Lock()
			delete(p.detached, item)
			p.detachedMu.Unlock()
		}

		// A context whose refcount drops to zero while merely parked is not
		// gone: it is destroyed only once its terminal (or failed) step ran.
		finished := hasFailed || item.IsFinished()
		if item.ReleaseRef() == 0 && finished {
			p.counter.AccountDestroyed()
		}
	}
}

// runStep invokes DoStep, converting both a returned error and a panic
// into the step-failure policy: log at error level, mark has_failed, never
// propagate past the worker goroutine.
func (p *TaskProcessor) runStep(ctx TaskContext) (hasFailed bool) {
	defer func() {
		if r := recover(); r != nil {
			hasFailed = true
			p.logger.Errorw("task step panicked", ctx.TaskID(), fmt.Errorf("%v", r))
		}
	}()

	if err := ctx.DoStep(); err != nil {
		p.logger.Errorw("task step failed", ctx.TaskID(), err)
		return true
	}
	return false
}

// Shutdown runs the destruction protocol: mark shutting down, cancel every
// detached context, wait briefly for the counter to drain, clear the
// running flag so workers exit on their next idle poll, and join every
// worker. Schedule keeps enqueuing during shutdown, pre-cancelling each
// context with CancellationShutdown. Idempotent — a second call is a no-op.
func (p *TaskProcessor) Shutdown() {
	if !p.isShuttingDown.CompareAndSwap(false, true) {
		return
	}

	p.detachedMu.Lock()
	for ctx := range p.detached {
		ctx.RequestCancel(CancellationShutdown)
	}
	p.detachedMu.Unlock()

	p.counter.WaitForExhaustion(shutdownDrainTimeout)

	p.isRunning.Store(false)

	_ = p.group.Wait()

	if alive := p.counter.Alive(); alive != 0 {
		panic(fmt.Sprintf("engine: task processor %q shut down with %d task context(s) still alive: something was scheduled after shutdown, or a ref-leak exists", p.config.Name, alive))
	}
}
