package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSingleFlight(t *testing.T) {
	r := require.New(t)
	sched := NewScheduler(1)
	defer sched.Stop()

	var sf SingleFlight
	execs := 0
	shares := 0

	sched.Go(func(_ context.Context, _ *TaskContext) {
		for i := 0; i < 50; i++ {
			sched.Go(func(_ context.Context, task *TaskContext) {
				v, err, shared := sf.Do(task, "key", func() (any, error) {
					execs++
					for j := 0; j < 100; j++ {
						task.Yield()
					}
					return "value", nil
				})
				r.NoError(err)
				r.Equal("value", v)
				if shared {
					shares++
				}
			})
		}
	})
	sched.Wait()

	r.Equal(1, execs)
	r.Equal(50, shares)
}

func TestSingleFlightDistinctKeys(t *testing.T) {
	r := require.New(t)

	runTasks(t, 1, func(_ context.Context, task *TaskContext) {
		var sf SingleFlight
		execs := 0

		for _, key := range []string{"a", "b", "a"} {
			v, err, shared := sf.Do(task, key, func() (any, error) {
				execs++
				return key, nil
			})
			r.NoError(err)
			r.Equal(key, v)
			r.False(shared)
		}

		r.Equal(3, execs)
	})
}

func TestSingleFlightError(t *testing.T) {
	r := require.New(t)
	sched := NewScheduler(1)
	defer sched.Stop()

	boom := errors.New("boom")
	var sf SingleFlight
	fails := 0

	sched.Go(func(_ context.Context, _ *TaskContext) {
		for i := 0; i < 10; i++ {
			sched.Go(func(_ context.Context, task *TaskContext) {
				_, err, _ := sf.Do(task, "key", func() (any, error) {
					for j := 0; j < 20; j++ {
						task.Yield()
					}
					return nil, boom
				})
				r.ErrorIs(err, boom)
				fails++
			})
		}
	})
	sched.Wait()

	r.Equal(10, fails)
}
