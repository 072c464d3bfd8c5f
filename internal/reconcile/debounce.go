package reconcile

import (
	"sync"
	"time"
)

// Debouncer runs the last scheduled task once no new task has been
// scheduled for its delay. Every Schedule resets the wait.
//
// At most one task is pending. A task whose timer has already fired
// but which was superseded before it could take the lock does not run:
// the generation counter identifies the latest Schedule.
type Debouncer struct {
	// clock provides the timers.
	clock Clock

	// mu guards timer and gen; timer callbacks may run on other goroutines.
	mu sync.Mutex
	// timer is the pending task's timer, nil when nothing is pending.
	timer Timer
	// gen increases with every Schedule and Cancel.
	gen uint64
}

// NewDebouncer returns a Debouncer driven by clock.
func NewDebouncer(clock Clock) *Debouncer {
	return &Debouncer{clock: clock}
}

// Schedule replaces any pending task with task, to run after delay.
func (d *Debouncer) Schedule(task func(), delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = d.clock.AfterFunc(delay, func() {
		d.mu.Lock()
		if gen != d.gen {
			// Superseded after the timer had already fired.
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock()
		task()
	})
}

// Cancel drops the pending task. It reports whether one was pending.
func (d *Debouncer) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer == nil {
		return false
	}
	d.timer.Stop()
	d.timer = nil
	d.gen++
	return true
}

// Pending reports whether a task is waiting to run.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}
