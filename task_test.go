package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// noWakeupStrategy parks the task with no wakeup of its own, leaving
// the deadline or an external request as the only ways out.
type noWakeupStrategy struct{}

func (noWakeupStrategy) SetupWakeups() EarlyWakeup { return false }
func (noWakeupStrategy) DisableWakeups()           {}

type earlyWakeupStrategy struct{}

func (earlyWakeupStrategy) SetupWakeups() EarlyWakeup { return true }
func (earlyWakeupStrategy) DisableWakeups()           {}

func isSleeping(task *TaskContext) bool {
	return task.sleepState.Load()&phaseMask == phaseSleeping
}

func TestSleepDeadline(t *testing.T) {
	r := require.New(t)

	runTasks(t, 1, func(_ context.Context, task *TaskContext) {
		start := time.Now()
		source := task.Sleep(noWakeupStrategy{}, DeadlineFromDuration(30*time.Millisecond))
		r.Equal(SourceDeadline, source)
		r.GreaterOrEqual(time.Since(start), 25*time.Millisecond)
	})
}

func TestSleepDeadlineAlreadyPassed(t *testing.T) {
	r := require.New(t)

	runTasks(t, 1, func(_ context.Context, task *TaskContext) {
		source := task.Sleep(noWakeupStrategy{}, DeadlinePassed())
		r.Equal(SourceDeadline, source)
	})
}

func TestSleepEarlyWakeup(t *testing.T) {
	r := require.New(t)

	runTasks(t, 1, func(_ context.Context, task *TaskContext) {
		source := task.Sleep(earlyWakeupStrategy{}, Deadline{})
		r.Equal(SourceWaitList, source)
	})
}

func TestSleepExternalWakeup(t *testing.T) {
	r := require.New(t)
	sched := NewScheduler(1)
	defer sched.Stop()

	task := sched.Go(func(_ context.Context, task *TaskContext) {
		source := task.Sleep(noWakeupStrategy{}, Deadline{})
		r.Equal(SourceWaitList, source)
	})

	r.Eventually(func() bool { return isSleeping(task) },
		time.Second, time.Millisecond)

	epoch := task.sleepEpoch()
	r.True(task.wakeup(SourceWaitList, epoch))
	r.False(task.wakeup(SourceWaitList, epoch))

	sched.Wait()
}

func TestWakeupStaleEpoch(t *testing.T) {
	r := require.New(t)
	sched := NewScheduler(1)
	defer sched.Stop()

	task := sched.Go(func(_ context.Context, task *TaskContext) {
		task.Sleep(noWakeupStrategy{}, DeadlineFromDuration(5*time.Millisecond))
	})
	sched.Wait()

	r.False(task.wakeup(SourceWaitList, task.sleepEpoch()))
	r.False(task.wakeup(SourceWaitList, 0))
}

func TestYieldOrder(t *testing.T) {
	r := require.New(t)
	sched := NewScheduler(1)
	defer sched.Stop()

	var order []string
	sched.Go(func(_ context.Context, task *TaskContext) {
		sched.Go(func(_ context.Context, _ *TaskContext) {
			order = append(order, "b")
		})
		order = append(order, "a1")
		task.Yield()
		order = append(order, "a2")
	})
	sched.Wait()

	r.Equal([]string{"a1", "b", "a2"}, order)
}

func TestRequestCancelWakesSleeper(t *testing.T) {
	r := require.New(t)
	sched := NewScheduler(1)
	defer sched.Stop()

	task := sched.Go(func(_ context.Context, task *TaskContext) {
		source := task.Sleep(noWakeupStrategy{}, Deadline{})
		r.Equal(SourceCancelRequest, source)
		r.True(task.IsCancelRequested())
	})

	r.Eventually(func() bool { return isSleeping(task) },
		time.Second, time.Millisecond)
	task.RequestCancel()

	sched.Wait()
}

func TestCancelPendingShortCircuitsSleep(t *testing.T) {
	r := require.New(t)

	runTasks(t, 1, func(_ context.Context, task *TaskContext) {
		task.RequestCancel()
		source := task.Sleep(noWakeupStrategy{}, Deadline{})
		r.Equal(SourceCancelRequest, source)
	})
}

func TestBlockCancellationDefersDelivery(t *testing.T) {
	r := require.New(t)

	runTasks(t, 1, func(_ context.Context, task *TaskContext) {
		blocker := BlockCancellation(task)
		task.RequestCancel()

		source := task.Sleep(noWakeupStrategy{}, DeadlineFromDuration(10*time.Millisecond))
		r.Equal(SourceDeadline, source)
		r.True(task.IsCancelRequested())

		blocker.Release()
		blocker.Release()

		source = task.Sleep(noWakeupStrategy{}, Deadline{})
		r.Equal(SourceCancelRequest, source)
	})
}

func TestRequestCancelWhileBlockedStaysPending(t *testing.T) {
	r := require.New(t)
	sched := NewScheduler(1)
	defer sched.Stop()

	task := sched.Go(func(_ context.Context, task *TaskContext) {
		blocker := BlockCancellation(task)
		source := task.Sleep(noWakeupStrategy{}, DeadlineFromDuration(30*time.Millisecond))
		r.Equal(SourceDeadline, source)
		blocker.Release()

		source = task.Sleep(noWakeupStrategy{}, Deadline{})
		r.Equal(SourceCancelRequest, source)
	})

	r.Eventually(func() bool { return isSleeping(task) },
		time.Second, time.Millisecond)
	task.RequestCancel()

	sched.Wait()
}
