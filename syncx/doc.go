// Package syncx provides cooperative synchronization primitives — Mutex,
// CondVar, and Future — built on top of engine.WaitList. They exist to
// exercise the wait-list under realistic concurrency: the core treats
// higher-level primitives as external collaborators (see the engine
// package's own documentation), so these are demonstration and
// integration-test collaborators, not core scheduling logic. Each follows
// the caller pattern the wait-list mandates: lock, update predicate, wake
// under lock, release.
package syncx
