// Package engine provides a cooperative multitasking runtime and the
// synchronization primitives built on top of it. Many lightweight
// tasks are multiplexed onto a small pool of worker threads;
// suspension happens only at explicit wait points, driven by a
// two-phase wait-strategy protocol that rules out lost wakeups.
//
// Key components:
//
//   - TaskContext: A coroutine-backed unit of cooperative execution.
//     Tasks suspend through Sleep, are woken by other tasks, by
//     deadlines, or by cancellation requests, and carry a packed
//     sleep state that makes every wakeup a single atomic
//     transition.
//
//   - Scheduler: A fixed pool of workers resuming ready tasks from a
//     shared run queue.
//
//   - WaitList / WaitListLight: Containers of suspended tasks. The
//     heavy list is an externally locked FIFO with a lock-free
//     waiter-count hint; the light list is a single-slot atomic for
//     primitives that guarantee at most one concurrent waiter.
//
//   - WaitStrategy: The suspend contract between a primitive and the
//     scheduler. SetupWakeups registers the task for wakeup (or
//     completes early), DisableWakeups deregisters it on every exit
//     path.
//
//   - Mutex / LightMutex: Mutual exclusion with a lock-free fast
//     path and deadline-bounded acquisition. Mutex's unlock skips its
//     wait list when the waiter-count hint reads zero; LightMutex's
//     unlock always publishes a wakeup to its single slot.
//
//   - Semaphore, WaitGroup, SingleFlight, ErrGroup: Higher-level
//     primitives exercising the same wait machinery.
package engine
