package engine

import "sync/atomic"

// WaitGroup waits for a collection of tasks to finish. Tasks call
// Add(1) when they start and Done when they finish; other tasks call
// Wait to suspend until the counter drops to zero. Waiters are
// cooperative tasks parked on a WaitList, not blocked threads.
type WaitGroup struct {
	noCopy  noCopy
	count   atomic.Int64
	waiters WaitList
}

// Add adds delta to the counter. When the counter reaches zero every
// waiter is woken. A delta that would drive the counter negative
// panics before the counter is touched.
func (wg *WaitGroup) Add(delta int) {
	var v int64
	for {
		old := wg.count.Load()
		v = old + int64(delta)
		if v < 0 {
			panic("engine: negative WaitGroup counter")
		}
		if wg.count.CompareAndSwap(old, v) {
			break
		}
	}
	if v > 0 {
		return
	}

	if wg.waiters.SleepyCount() > 0 {
		wg.waiters.Lock()
		wg.waiters.WakeupAll()
		wg.waiters.Unlock()
	}
}

// Done decrements the counter by one.
func (wg *WaitGroup) Done() {
	wg.Add(-1)
}

// Wait suspends the task until the counter is zero. Cancellation is
// blocked for the duration: Wait has no failure channel.
func (wg *WaitGroup) Wait(task *TaskContext) {
	if wg.count.Load() == 0 {
		return
	}

	blocker := BlockCancellation(task)
	defer blocker.Release()

	strategy := &waitGroupWaitStrategy{
		wg:    wg,
		task:  task,
		token: NewWaitersScopeCounter(&wg.waiters),
	}
	defer strategy.token.Close()

	for wg.count.Load() != 0 {
		task.Sleep(strategy, Deadline{})
	}
}

// waitGroupWaitStrategy parks a waiter until the counter hits zero.
// The zero check and the append happen under the wait-list lock,
// matching Add taking the same lock to broadcast.
type waitGroupWaitStrategy struct {
	wg    *WaitGroup
	task  *TaskContext
	token *WaitersScopeCounter
}

func (s *waitGroupWaitStrategy) SetupWakeups() EarlyWakeup {
	s.wg.waiters.Lock()
	defer s.wg.waiters.Unlock()

	if s.wg.count.Load() == 0 {
		return true
	}
	s.wg.waiters.Append(s.task)
	return false
}

func (s *waitGroupWaitStrategy) DisableWakeups() {
	s.wg.waiters.Lock()
	s.wg.waiters.Remove(s.task)
	s.wg.waiters.Unlock()
}
