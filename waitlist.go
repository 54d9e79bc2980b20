package engine

import (
	"sync"
	"sync/atomic"

	"github.com/gammazero/deque"
)

// waiter is a wait-list entry: the sleeping task plus the epoch of
// the sleep it belongs to. Capturing the epoch at append time pins a
// wakeup to that exact sleep; a waker holding a stale entry cannot
// touch a later sleep of the same task.
type waiter struct {
	task  *TaskContext
	epoch uint64
}

func makeWaiter(task *TaskContext) waiter {
	return waiter{task: task, epoch: task.sleepEpoch()}
}

// WaitList is an ordered queue of tasks contending for a resource,
// protected by its own lock. Append, Remove, WakeupOne and WakeupAll
// must be called with the lock held; SleepyCount may be read without
// it. The waiter at the front is always the one woken, so between
// queued waiters wakeup order is FIFO.
type WaitList struct {
	noCopy   noCopy
	mu       sync.Mutex
	sleepies atomic.Int64
	waiters  deque.Deque[waiter]
}

// Lock acquires the wait-list lock.
func (wl *WaitList) Lock() { wl.mu.Lock() }

// Unlock releases the wait-list lock.
func (wl *WaitList) Unlock() { wl.mu.Unlock() }

// Append adds the task to the tail of the queue. The task must be
// mid-Sleep, with its sleeping state already published.
func (wl *WaitList) Append(task *TaskContext) {
	wl.waiters.PushBack(makeWaiter(task))
}

// Remove takes the task out of the queue wherever it sits. Removing
// an absent task is a no-op.
func (wl *WaitList) Remove(task *TaskContext) {
	i := wl.waiters.Index(func(w waiter) bool { return w.task == task })
	if i >= 0 {
		wl.waiters.Remove(i)
	}
}

// WakeupOne wakes the waiter at the front of the queue. A popped
// entry whose wakeup no longer lands (the task timed out or was
// cancelled first) does not consume the notification; the next
// waiter is tried instead.
func (wl *WaitList) WakeupOne() {
	for wl.waiters.Len() > 0 {
		w := wl.waiters.PopFront()
		if w.task.wakeup(SourceWaitList, w.epoch) {
			return
		}
	}
}

// WakeupAll wakes every queued waiter.
func (wl *WaitList) WakeupAll() {
	for wl.waiters.Len() > 0 {
		w := wl.waiters.PopFront()
		w.task.wakeup(SourceWaitList, w.epoch)
	}
}

// SleepyCount returns an upper bound on the number of current
// waiters, readable without the lock. A prospective waiter raises it
// via WaitersScopeCounter before it can possibly appear in the
// queue, so observing zero proves there is no one to wake.
func (wl *WaitList) SleepyCount() int64 {
	return wl.sleepies.Load()
}

// WaitersScopeCounter keeps the sleepy hint raised for the lifetime
// of a prospective waiter. Close must run on every path, typically
// via defer, and is idempotent.
type WaitersScopeCounter struct {
	wl     *WaitList
	closed bool
}

// NewWaitersScopeCounter raises the wait list's sleepy hint.
func NewWaitersScopeCounter(wl *WaitList) *WaitersScopeCounter {
	wl.sleepies.Add(1)
	return &WaitersScopeCounter{wl: wl}
}

// Close drops the hint.
func (c *WaitersScopeCounter) Close() {
	if !c.closed {
		c.closed = true
		c.wl.sleepies.Add(-1)
	}
}
