package engine

import "sync/atomic"

// WaitListLight holds at most one waiter in a single atomic slot. It
// serves primitives that guarantee at most one concurrent waiter;
// with that guarantee every operation is at most one pointer RMW and
// no lock exists anywhere on the wait path.
type WaitListLight struct {
	noCopy noCopy
	slot   atomic.Pointer[waiter]
}

// Append stores the task in the slot. The slot must be empty; a
// second concurrent waiter means the caller broke the single-waiter
// contract.
func (wl *WaitListLight) Append(task *TaskContext) {
	w := &waiter{task: task, epoch: task.sleepEpoch()}
	if !wl.slot.CompareAndSwap(nil, w) {
		panic("engine: WaitListLight supports at most one waiter")
	}
}

// Remove clears the slot if it still holds the task. Losing the race
// to WakeupOne is fine; the wakeup then targets the epoch captured at
// Append time and cannot reach a later sleep.
func (wl *WaitListLight) Remove(task *TaskContext) {
	w := wl.slot.Load()
	if w != nil && w.task == task {
		wl.slot.CompareAndSwap(w, nil)
	}
}

// WakeupOne publishes a wakeup to the current occupant, if any.
func (wl *WaitListLight) WakeupOne() {
	if w := wl.slot.Swap(nil); w != nil {
		w.task.wakeup(SourceWaitList, w.epoch)
	}
}
