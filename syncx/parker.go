package syncx

import "github.com/Swind/taskcore/engine"

// Parker is the subset of CoroutineTaskContext that syncx primitives need:
// the ability to park until woken, and to inspect what woke it. Only
// engine.CoroutineTaskContext implements it today, since StepTaskContext
// has no notion of suspending mid-step.
type Parker interface {
	engine.TaskContext
	Park()
	WakeupSource() engine.WakeupSource
}
