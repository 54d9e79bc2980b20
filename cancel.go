package engine

// RequestCancel asks the task to cancel. If the task is sleeping and
// cancellation is not blocked, it is woken with SourceCancelRequest;
// otherwise the request stays pending and is observed by the next
// cancellable Sleep. Safe to call from any goroutine.
func (c *TaskContext) RequestCancel() {
	c.cancelPending.Store(true)
	if c.cancelBlocked.Load() != 0 {
		return
	}
	state := c.sleepState.Load()
	if state&phaseMask == phaseSleeping {
		c.wakeup(SourceCancelRequest, state>>phaseBits)
	}
}

// IsCancelRequested reports whether cancellation has been requested
// for the task, delivered or not.
func (c *TaskContext) IsCancelRequested() bool {
	return c.cancelPending.Load()
}

// TaskCancellationBlocker suppresses cancellation delivery to a task
// for a scope. A request arriving while the blocker is held stays
// pending and takes effect only after release. Release must run on
// every path, typically via defer.
type TaskCancellationBlocker struct {
	task     *TaskContext
	released bool
}

// BlockCancellation suppresses cancellation for the task until the
// returned blocker is released.
func BlockCancellation(task *TaskContext) *TaskCancellationBlocker {
	task.cancelBlocked.Add(1)
	return &TaskCancellationBlocker{task: task}
}

// Release lifts the suppression. Idempotent.
func (b *TaskCancellationBlocker) Release() {
	if !b.released {
		b.released = true
		b.task.cancelBlocked.Add(-1)
	}
}
