package engine

import (
	"context"
	"fmt"
	"runtime/trace"
	"sync/atomic"
	"time"

	"github.com/webriots/coro"
)

const (
	taskTraceTaskType   = "engine-task"
	taskTraceRegionType = "engine-region"
	taskTraceCategory   = "engine"
)

// Sleep-state phases. The packed state is epoch<<phaseBits|phase; the
// epoch advances once per Sleep, so a wakeup is a single CAS that can
// neither be lost nor delivered to a later sleep.
const (
	phaseRunning uint64 = iota
	phaseSleeping
	phaseWoken

	phaseBits = 2
	phaseMask = 1<<phaseBits - 1
)

func packSleepState(epoch, phase uint64) uint64 {
	return epoch<<phaseBits | phase
}

// TaskContext identifies a cooperatively scheduled task. The task
// body runs as a coroutine; workers resume it, and it returns control
// to its worker whenever it parks inside Sleep. A TaskContext is
// shared between the task itself and any task that may wake it, and
// outlives its tenure in any wait list because a task cannot exit
// while suspended.
type TaskContext struct {
	sched      *Scheduler
	ctx        context.Context
	resume     func(WakeupSource) (struct{}, bool)
	cancelCoro func()
	suspend    func() WakeupSource

	sleepState    atomic.Uint64
	executing     atomic.Bool
	cancelPending atomic.Bool
	cancelBlocked atomic.Int32
}

func newTask(ctx context.Context, sched *Scheduler, fn func(context.Context, *TaskContext)) *TaskContext {
	task := &TaskContext{sched: sched}

	var tracer *trace.Task
	ctx, tracer = trace.NewTask(ctx, taskTraceTaskType)
	task.ctx = withTaskContext(ctx, task)

	resume, cancel := coro.New(
		func(_ func(struct{}) WakeupSource, suspend func() WakeupSource) (z struct{}) {
			defer tracer.End()

			region := trace.StartRegion(task.ctx, taskTraceRegionType)
			defer region.End()

			task.suspend = suspend
			fn(task.ctx, task)
			return
		},
	)

	task.resume = resume
	task.cancelCoro = cancel
	return task
}

// Context returns the context the task body was started with. It
// carries the task handle (see TaskFromContext).
func (c *TaskContext) Context() context.Context {
	return c.ctx
}

// IsCurrent reports whether the task is executing right now, as
// opposed to being suspended or queued for a worker.
func (c *TaskContext) IsCurrent() bool {
	return c.executing.Load()
}

// sleepEpoch returns the epoch of the sleep currently being prepared
// or slept. Wakers capture it so a stale wakeup cannot land on a
// later sleep of the same task.
func (c *TaskContext) sleepEpoch() uint64 {
	return c.sleepState.Load() >> phaseBits
}

// wakeup delivers a wakeup for the given sleep epoch. The caller that
// wins the transition puts the task back on the run queue; all others
// see false and must leave the task alone.
func (c *TaskContext) wakeup(source WakeupSource, epoch uint64) bool {
	if c.sleepState.CompareAndSwap(
		packSleepState(epoch, phaseSleeping),
		packSleepState(epoch, phaseWoken),
	) {
		c.Logf("WAKE %v", source)
		c.sched.enqueue(c, source)
		return true
	}
	return false
}

// Sleep suspends the task until the strategy reports completion, an
// external wakeup arrives, or the deadline elapses. SetupWakeups runs
// after the task has published its about-to-sleep state, and
// DisableWakeups runs on every exit path, so a wakeup can neither be
// lost nor outlive the wait. Must be called by the task itself.
func (c *TaskContext) Sleep(strategy WaitStrategy, deadline Deadline) WakeupSource {
	epoch := c.sleepEpoch() + 1
	c.sleepState.Store(packSleepState(epoch, phaseSleeping))
	defer strategy.DisableWakeups()

	if c.cancelPending.Load() && c.cancelBlocked.Load() == 0 {
		return c.wakeSelf(epoch, SourceCancelRequest)
	}

	if bool(strategy.SetupWakeups()) {
		return c.wakeSelf(epoch, SourceWaitList)
	}

	var timer *time.Timer
	if deadline.IsReachable() {
		left := deadline.TimeLeft()
		if left <= 0 {
			return c.wakeSelf(epoch, SourceDeadline)
		}
		timer = time.AfterFunc(left, func() { c.wakeup(SourceDeadline, epoch) })
	}

	c.Log("SLEEP")
	source := c.suspend()
	if timer != nil {
		timer.Stop()
	}
	c.sleepState.Store(packSleepState(epoch, phaseRunning))
	return source
}

// Yield moves the task to the back of the run queue, giving other
// ready tasks a turn. The task resumes with SourceSpurious.
func (c *TaskContext) Yield() {
	c.Sleep(yieldStrategy{task: c}, Deadline{})
}

// yieldStrategy re-enqueues the task immediately, so the following
// park is over as soon as a worker reaches it.
type yieldStrategy struct {
	task *TaskContext
}

func (s yieldStrategy) SetupWakeups() EarlyWakeup {
	s.task.wakeup(SourceSpurious, s.task.sleepEpoch())
	return false
}

func (s yieldStrategy) DisableWakeups() {}

// wakeSelf ends a sleep from within Sleep itself. If an external
// waker got there first the task is already on the run queue, so it
// parks once to consume the matching resume and reports the source
// that was actually delivered.
func (c *TaskContext) wakeSelf(epoch uint64, source WakeupSource) WakeupSource {
	if c.sleepState.CompareAndSwap(
		packSleepState(epoch, phaseSleeping),
		packSleepState(epoch, phaseRunning),
	) {
		return source
	}
	delivered := c.suspend()
	c.sleepState.Store(packSleepState(epoch, phaseRunning))
	return delivered
}

// run resumes the task on the calling worker with the given wakeup
// source. When the body finishes, the coroutine is torn down and the
// scheduler is told the task is gone.
func (c *TaskContext) run(source WakeupSource) {
	c.executing.Store(true)
	_, alive := c.resume(source)
	c.executing.Store(false)

	if !alive {
		c.cancelCoro()
		c.sched.taskDone()
	}
}

// Log emits a task-scoped execution trace event. Events only cost
// anything while runtime/trace collection is enabled.
func (c *TaskContext) Log(msg string) {
	if trace.IsEnabled() {
		trace.Log(c.ctx, taskTraceCategory, fmt.Sprintf("%p %s", c, msg))
	}
}

// Logf is Log with formatting.
func (c *TaskContext) Logf(format string, args ...any) {
	if trace.IsEnabled() {
		trace.Log(c.ctx, taskTraceCategory, fmt.Sprintf("%p %s", c, fmt.Sprintf(format, args...)))
	}
}
