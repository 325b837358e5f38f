// Package engine implements the cooperative task-processor core: a
// worker-thread pool that dequeues runnable task contexts from an MPMC
// queue, drives each one a single step at a time, tracks in-flight and
// detached tasks, measures queue wait latency, and enforces overload
// protection. It also implements the wait-list primitive that blocking
// synchronization objects (see the sibling syncx package) use to park and
// wake task contexts.
//
// The task context itself is treated as an opaque, externally supplied
// object; engine only depends on the TaskContext interface. Logging,
// metrics export, and configuration loading are external collaborators.
package engine
