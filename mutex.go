package engine

import "sync/atomic"

// mutexCore is the owner cell and the lock/unlock state machine
// shared by both mutex variants. owner == nil means the lock is
// free; otherwise it points at the task that acquired and has not
// yet unlocked.
type mutexCore struct {
	owner atomic.Pointer[TaskContext]
}

// tryLockFast is the uncontended path: one CAS of the owner cell from
// nil to the current task. It never touches any wait list.
func (c *mutexCore) tryLockFast(current *TaskContext) bool {
	return c.owner.CompareAndSwap(nil, current)
}

// tryLock is the slow-path retry. Unlike the fast path it diagnoses
// recursive locking, which on this path would otherwise deadlock the
// task against itself.
func (c *mutexCore) tryLock(current *TaskContext) bool {
	if c.owner.CompareAndSwap(nil, current) {
		return true
	}
	if c.owner.Load() == current {
		panic("engine: mutex locked twice from the same task")
	}
	return false
}

// unlock releases the owner cell. Ownership is not handed to a
// waiter; the cell goes to nil and the woken waiter races fast-path
// acquirers for it. A rejected call panics without touching the cell,
// so a recovered misuse leaves the real owner's lock intact.
func (c *mutexCore) unlock(current *TaskContext) {
	if !current.IsCurrent() {
		panic("engine: mutex unlocked on behalf of a task that is not running")
	}
	old := c.owner.Load()
	if old == nil {
		panic("engine: unlock of an unlocked mutex")
	}
	if old != current {
		panic("engine: mutex unlocked by a task that does not own it")
	}
	c.owner.Swap(nil)
}

// lockSlowPath parks the task until it owns the mutex or the deadline
// elapses. Cancellation stays blocked for the whole wait: Lock has no
// failure channel, and for TryLockUntil the deadline is the only
// non-success outcome. The loop absorbs wakeups that lost the race to
// a fast-path acquirer.
func (c *mutexCore) lockSlowPath(current *TaskContext, deadline Deadline, strategy WaitStrategy) bool {
	blocker := BlockCancellation(current)
	defer blocker.Release()

	for {
		source := current.Sleep(strategy, deadline)
		if c.owner.Load() == current {
			return true
		}
		if !HasWaitSucceeded(source) {
			return false
		}
	}
}

// Mutex provides mutual exclusion for tasks, queueing contenders on
// a WaitList. Uncontended acquisition and release are two atomic
// RMWs on the owner cell; contenders suspend and are woken
// approximately FIFO. Not reentrant. Must not be copied after first
// use.
type Mutex struct {
	noCopy  noCopy
	core    mutexCore
	waiters WaitList
}

// Lock acquires the mutex, suspending the task until it is available.
func (m *Mutex) Lock(task *TaskContext) {
	m.TryLockUntil(task, Deadline{})
}

// TryLock attempts to acquire the mutex without suspending. Returns
// true iff acquired.
func (m *Mutex) TryLock(task *TaskContext) bool {
	return m.core.tryLockFast(task)
}

// TryLockUntil attempts to acquire the mutex, suspending up to the
// deadline. Returns true iff acquired before the deadline.
func (m *Mutex) TryLockUntil(task *TaskContext, deadline Deadline) bool {
	if m.core.tryLockFast(task) {
		return true
	}

	strategy := &mutexWaitStrategy{
		mutex: m,
		task:  task,
		token: NewWaitersScopeCounter(&m.waiters),
	}
	defer strategy.token.Close()

	return m.core.lockSlowPath(task, deadline, strategy)
}

// Unlock releases the mutex and wakes one waiter, if any. The task
// must be the current owner. When the sleepy hint reads zero the wait
// list is skipped entirely, so an uncontended unlock never takes its
// lock.
func (m *Mutex) Unlock(task *TaskContext) {
	m.core.unlock(task)

	if m.waiters.SleepyCount() > 0 {
		m.waiters.Lock()
		m.waiters.WakeupOne()
		m.waiters.Unlock()
	}
}

// WaitCount returns the sleepy hint: an upper bound on the number of
// tasks currently waiting to acquire the mutex.
func (m *Mutex) WaitCount() int64 {
	return m.waiters.SleepyCount()
}

// mutexWaitStrategy queues a contender on the heavy wait list. The
// retry and the append happen under the wait-list lock, and wakeup
// takes the same lock, so an unlock cannot slip between them.
type mutexWaitStrategy struct {
	mutex *Mutex
	task  *TaskContext
	token *WaitersScopeCounter
}

func (s *mutexWaitStrategy) SetupWakeups() EarlyWakeup {
	s.mutex.waiters.Lock()
	defer s.mutex.waiters.Unlock()

	if s.mutex.core.tryLock(s.task) {
		return true
	}
	s.mutex.waiters.Append(s.task)
	return false
}

func (s *mutexWaitStrategy) DisableWakeups() {
	s.mutex.waiters.Lock()
	s.mutex.waiters.Remove(s.task)
	s.mutex.waiters.Unlock()
}

// LightMutex is a mutex for the two-party case: at any moment at most
// one task may be suspended on it. Contention collapses onto the
// owner CAS, so the single WaitListLight slot suffices and the whole
// wait path is lock-free. With three or more simultaneous contenders
// use Mutex instead.
type LightMutex struct {
	noCopy  noCopy
	core    mutexCore
	waiters WaitListLight
}

// Lock acquires the mutex, suspending the task until it is available.
func (m *LightMutex) Lock(task *TaskContext) {
	m.TryLockUntil(task, Deadline{})
}

// TryLock attempts to acquire the mutex without suspending. Returns
// true iff acquired.
func (m *LightMutex) TryLock(task *TaskContext) bool {
	return m.core.tryLockFast(task)
}

// TryLockUntil attempts to acquire the mutex, suspending up to the
// deadline. Returns true iff acquired before the deadline.
func (m *LightMutex) TryLockUntil(task *TaskContext, deadline Deadline) bool {
	if m.core.tryLockFast(task) {
		return true
	}

	strategy := &lightMutexWaitStrategy{mutex: m, task: task}
	return m.core.lockSlowPath(task, deadline, strategy)
}

// Unlock releases the mutex and publishes a wakeup to the waiter, if
// one is parked. The task must be the current owner.
func (m *LightMutex) Unlock(task *TaskContext) {
	m.core.unlock(task)
	m.waiters.WakeupOne()
}

// lightMutexWaitStrategy queues the single contender on the atomic
// slot. There is no lock to close the check-append race, so after
// appending it re-reads the owner cell: if the mutex got released in
// the window, the append is undone and the wait completes early,
// which substitutes for the heavy list's lock.
type lightMutexWaitStrategy struct {
	mutex *LightMutex
	task  *TaskContext
}

func (s *lightMutexWaitStrategy) SetupWakeups() EarlyWakeup {
	if s.mutex.core.tryLock(s.task) {
		return true
	}
	s.mutex.waiters.Append(s.task)
	if s.mutex.core.owner.Load() == nil {
		s.mutex.waiters.Remove(s.task)
		return true
	}
	return false
}

func (s *lightMutexWaitStrategy) DisableWakeups() {
	s.mutex.waiters.Remove(s.task)
}
