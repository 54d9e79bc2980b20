package engine

import (
	"context"
	"runtime"
	"sync"

	"github.com/gammazero/deque"
)

// runItem pairs a ready task with the wakeup source its resume must
// deliver.
type runItem struct {
	task   *TaskContext
	source WakeupSource
}

// Scheduler multiplexes tasks onto a fixed pool of workers. Ready
// tasks sit on a FIFO run queue; a task appears on the queue at most
// once, because only the winner of the sleep-state transition may
// enqueue it.
type Scheduler struct {
	mu      sync.Mutex
	cond    *sync.Cond
	runq    deque.Deque[runItem]
	active  int
	stopped bool
	workers sync.WaitGroup
}

// NewScheduler starts a scheduler with the given number of workers.
// Non-positive counts default to the number of CPUs.
func NewScheduler(workers int) *Scheduler {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	s := new(Scheduler)
	s.cond = sync.NewCond(&s.mu)

	for i := 0; i < workers; i++ {
		s.workers.Add(1)
		go s.worker()
	}

	return s
}

// Go spawns a task running fn. The task's context carries its handle
// and derives from context.Background.
func (s *Scheduler) Go(fn func(context.Context, *TaskContext)) *TaskContext {
	return s.GoWithContext(context.Background(), fn)
}

// GoWithContext spawns a task running fn with a context derived from
// ctx. The returned handle may be used for wakeups and cancellation;
// it must not be retained past the task's completion by code that
// expects the task to still exist.
func (s *Scheduler) GoWithContext(ctx context.Context, fn func(context.Context, *TaskContext)) *TaskContext {
	task := newTask(ctx, s, fn)

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		panic("engine: Go on a stopped Scheduler")
	}
	s.active++
	s.mu.Unlock()

	task.Log("SPAWN")
	s.enqueue(task, SourceBootstrap)
	return task
}

// enqueue puts a ready task on the run queue. Callers must hold the
// exclusive right to schedule the task (a won wakeup transition or
// the bootstrap of a fresh task).
func (s *Scheduler) enqueue(task *TaskContext, source WakeupSource) {
	s.mu.Lock()
	s.runq.PushBack(runItem{task: task, source: source})
	s.cond.Broadcast()
	s.mu.Unlock()
}

func (s *Scheduler) worker() {
	defer s.workers.Done()

	for {
		s.mu.Lock()
		for s.runq.Len() == 0 && !s.stopped {
			s.cond.Wait()
		}
		if s.runq.Len() == 0 && s.stopped {
			s.mu.Unlock()
			return
		}
		item := s.runq.PopFront()
		s.mu.Unlock()

		item.task.run(item.source)
	}
}

// taskDone records the completion of a task and unblocks Wait when
// the last one finishes.
func (s *Scheduler) taskDone() {
	s.mu.Lock()
	s.active--
	if s.active == 0 {
		s.cond.Broadcast()
	}
	s.mu.Unlock()
}

// Wait blocks until every spawned task has finished.
func (s *Scheduler) Wait() {
	s.mu.Lock()
	for s.active > 0 {
		s.cond.Wait()
	}
	s.mu.Unlock()
}

// Stop shuts the workers down and waits for them to exit. All tasks
// must have finished; stopping a scheduler with live tasks strands
// them.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.cond.Broadcast()
	s.mu.Unlock()
	s.workers.Wait()
}
