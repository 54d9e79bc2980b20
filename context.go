package engine

import "context"

// taskContextKey is a unique type used as a key for storing a task
// handle in a context.
type taskContextKey struct{}

// withTaskContext returns a context carrying the task, so code that
// only receives a context can still reach its task handle.
func withTaskContext(ctx context.Context, task *TaskContext) context.Context {
	return context.WithValue(ctx, taskContextKey{}, task)
}

// TaskFromContext retrieves the task handle stored in a context.
// Returns the task and whether one was found.
func TaskFromContext(ctx context.Context) (*TaskContext, bool) {
	task, ok := ctx.Value(taskContextKey{}).(*TaskContext)
	return task, ok
}

// MustTaskFromContext retrieves the task handle stored in a context,
// panicking if the context does not carry one.
func MustTaskFromContext(ctx context.Context) *TaskContext {
	task, ok := TaskFromContext(ctx)
	if !ok {
		panic("engine: task not found in context")
	}
	return task
}
