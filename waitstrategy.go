package engine

// EarlyWakeup is returned by SetupWakeups to report that the wait
// completed during registration and the task does not need to park.
type EarlyWakeup bool

// WaitStrategy is the two-phase suspend contract between a primitive
// and the scheduler. The scheduler invokes SetupWakeups after the
// task has published its about-to-sleep state but before parking it;
// the strategy registers the task for wakeup under whatever
// synchronization the primitive needs, or completes early.
// DisableWakeups runs when the sleep ends, on every path, and must
// deregister the task so that stale wakeups are impossible afterward.
type WaitStrategy interface {
	SetupWakeups() EarlyWakeup
	DisableWakeups()
}
