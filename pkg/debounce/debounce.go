// Package debounce provides a trailing-edge debouncer: rapid repeated
// triggers coalesce into a single invocation of the action after the
// configured delay of quiet.
package debounce

import (
	"sync"
	"time"
)

// Debouncer invokes its action once per burst of triggers. The zero value is
// not usable; construct with New.
type Debouncer struct {
	mu    sync.Mutex
	delay time.Duration
	fn    func()
	timer *time.Timer
}

// New returns a Debouncer that runs fn after delay has elapsed since the
// most recent Trigger.
func New(delay time.Duration, fn func()) *Debouncer {
	return &Debouncer{delay: delay, fn: fn}
}

// Trigger schedules the action, resetting the delay if one is already
// pending.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.fn)
}

// Flush runs the action immediately if one is pending. Used on shutdown so a
// pending save is not lost.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	pending := d.timer != nil && d.timer.Stop()
	d.timer = nil
	d.mu.Unlock()
	if pending {
		d.fn()
	}
}

// Stop cancels any pending invocation without running it.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
