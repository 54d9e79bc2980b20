package engine

import (
	"errors"
	"sync/atomic"
)

// ErrCancelled is returned by cancellable waits interrupted by a
// cancellation request.
var ErrCancelled = errors.New("engine: wait cancelled")

// Semaphore is a counting semaphore for tasks. Unlike the mutex,
// acquisition is cancellable: a task parked in Acquire can be
// unblocked by RequestCancel.
type Semaphore struct {
	noCopy   noCopy
	capacity int64
	free     atomic.Int64
	waiters  WaitList
}

// NewSemaphore returns a semaphore with the given number of units,
// all free.
func NewSemaphore(capacity int64) *Semaphore {
	if capacity <= 0 {
		panic("engine: semaphore capacity must be positive")
	}
	s := &Semaphore{capacity: capacity}
	s.free.Store(capacity)
	return s
}

// TryAcquire takes a unit without suspending. Returns true iff one
// was free.
func (s *Semaphore) TryAcquire() bool {
	for {
		v := s.free.Load()
		if v <= 0 {
			return false
		}
		if s.free.CompareAndSwap(v, v-1) {
			return true
		}
	}
}

// Acquire takes a unit, suspending while none is free. Returns
// ErrCancelled if the wait is interrupted by a cancellation request.
func (s *Semaphore) Acquire(task *TaskContext) error {
	if s.TryAcquire() {
		return nil
	}
	_, err := s.acquireSlow(task, Deadline{})
	return err
}

// TryAcquireUntil takes a unit, suspending up to the deadline.
// Returns true iff a unit was taken; both a reached deadline and a
// cancellation yield false.
func (s *Semaphore) TryAcquireUntil(task *TaskContext, deadline Deadline) bool {
	if s.TryAcquire() {
		return true
	}
	ok, _ := s.acquireSlow(task, deadline)
	return ok
}

// Release returns a unit and wakes one waiter, if any. Releasing
// more units than the capacity is a programming error and panics
// before the counter is touched.
func (s *Semaphore) Release() {
	for {
		v := s.free.Load()
		if v >= s.capacity {
			panic("engine: semaphore released above capacity")
		}
		if s.free.CompareAndSwap(v, v+1) {
			break
		}
	}

	if s.waiters.SleepyCount() > 0 {
		s.waiters.Lock()
		s.waiters.WakeupOne()
		s.waiters.Unlock()
	}
}

func (s *Semaphore) acquireSlow(task *TaskContext, deadline Deadline) (bool, error) {
	strategy := &semaWaitStrategy{
		sema:  s,
		task:  task,
		token: NewWaitersScopeCounter(&s.waiters),
	}
	defer strategy.token.Close()

	for {
		source := task.Sleep(strategy, deadline)
		if strategy.acquired {
			return true, nil
		}
		if source == SourceCancelRequest {
			return false, ErrCancelled
		}
		if !HasWaitSucceeded(source) {
			return false, nil
		}
	}
}

// semaWaitStrategy queues a contender for a unit. The retry and the
// append happen under the wait-list lock, matching Release taking
// the same lock to wake.
type semaWaitStrategy struct {
	sema     *Semaphore
	task     *TaskContext
	token    *WaitersScopeCounter
	acquired bool
}

func (s *semaWaitStrategy) SetupWakeups() EarlyWakeup {
	s.sema.waiters.Lock()
	defer s.sema.waiters.Unlock()

	if s.sema.TryAcquire() {
		s.acquired = true
		return true
	}
	s.sema.waiters.Append(s.task)
	return false
}

func (s *semaWaitStrategy) DisableWakeups() {
	s.sema.waiters.Lock()
	s.sema.waiters.Remove(s.task)
	s.sema.waiters.Unlock()
}
