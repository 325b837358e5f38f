package engine

// StepFunc is one step of a task's execution, given the context it is
// running on (so it can inspect its own cancellation state). It returns
// whether the task is now finished, or an error equivalent to the
// source's "exception" case.
type StepFunc func(self *StepTaskContext) (finished bool, err error)

// StepTaskContext is the simplest concrete TaskContext: each DoStep call
// invokes a caller-supplied StepFunc exactly once. It has no notion of
// parking on a wait-list by itself — use CoroutineTaskContext for that —
// but is enough to drive the processor's scheduling, overload, and
// shutdown behavior in tests and simple fire-and-forget workloads.
type StepTaskContext struct {
	*BaseTaskContext
	step      StepFunc
	processor *TaskProcessor
}

// NewStepTaskContext constructs a StepTaskContext bound to processor,
// accounting its creation in counter. id should be unique per context for
// meaningful logs; critical exempts it from overload cancellation.
func NewStepTaskContext(id uint64, critical bool, counter *TaskCounter, processor *TaskProcessor, step StepFunc) *StepTaskContext {
	counter.AccountCreated()
	return &StepTaskContext{
		BaseTaskContext: NewBaseTaskContext(id, critical),
		step:            step,
		processor:       processor,
	}
}

// DoStep implements TaskContext.
func (s *StepTaskContext) DoStep() error {
	finished, err := s.step(s)
	if err != nil {
		return err
	}
	if finished {
		s.SetFinished()
	}
	return nil
}

// Wakeup implements TaskContext by re-scheduling this context onto its
// bound processor.
func (s *StepTaskContext) Wakeup(source WakeupSource) {
	s.processor.Schedule(s)
}
