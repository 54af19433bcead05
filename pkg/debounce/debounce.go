// Package debounce coalesces rapid repeated triggers into one delayed action
// per key. Scheduling a key again before its timer fires replaces both the
// pending callback and its deadline.
package debounce

import (
	"sync"
	"time"
)

type entry struct {
	timer *time.Timer
	gen   uint64
}

// Debouncer is a keyed timer table. The zero value is not usable; call New.
type Debouncer struct {
	mu      sync.Mutex
	entries map[string]*entry
	gen     uint64
	stopped bool
}

// New creates an empty Debouncer.
func New() *Debouncer {
	return &Debouncer{entries: make(map[string]*entry)}
}

// AddEvent schedules fn to run after delay under key, cancelling whatever
// was pending for the same key. fn runs on its own goroutine.
func (d *Debouncer) AddEvent(key string, fn func(), delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if e, ok := d.entries[key]; ok {
		e.timer.Stop()
	}
	d.gen++
	gen := d.gen
	e := &entry{gen: gen}
	// A timer whose Stop lost the race still fires; the generation check
	// keeps a superseded callback from running.
	e.timer = time.AfterFunc(delay, func() {
		d.mu.Lock()
		cur, ok := d.entries[key]
		if !ok || cur.gen != gen {
			d.mu.Unlock()
			return
		}
		delete(d.entries, key)
		d.mu.Unlock()
		fn()
	})
	d.entries[key] = e
}

// Cancel drops the pending callback for key, if any.
// It reports whether something was pending.
func (d *Debouncer) Cancel(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.entries[key]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(d.entries, key)
	return true
}

// Pending reports whether a callback is waiting under key.
func (d *Debouncer) Pending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.entries[key]
	return ok
}

// Stop cancels every pending callback. Later AddEvent calls are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	for key, e := range d.entries {
		e.timer.Stop()
		delete(d.entries, key)
	}
}
