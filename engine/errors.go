package engine

import "errors"

// ErrInvalidWorkerCount is returned by NewTaskProcessor when the configured
// worker count is not positive.
var ErrInvalidWorkerCount = errors.New("engine: worker_threads must be positive")

// ErrProcessorShutdown is returned by Schedule/Adopt callers that choose to
// surface shutdown as an error; the processor itself never returns it —
// Schedule always accepts the context and pre-cancels it instead (see
// shutdown cancellation in the component design).
var ErrProcessorShutdown = errors.New("engine: task processor is shutting down")
