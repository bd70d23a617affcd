// Package debounce coalesces bursts of triggers into a single call per key.
package debounce

import (
	"sync"
	"time"
)

// Debouncer keeps one pending timer per key. Triggering a key again before its
// quiet period ends cancels the earlier call; only the latest fn runs.
type Debouncer struct {
	delay time.Duration

	mu      sync.Mutex
	pending map[string]*entry
	stopped bool
}

type entry struct {
	timer *time.Timer
	gen   uint64
}

func New(delay time.Duration) *Debouncer {
	return &Debouncer{
		delay:   delay,
		pending: make(map[string]*entry),
	}
}

// Trigger schedules fn for key after the quiet period, replacing any call still
// pending for that key. It is a no-op after Stop.
func (d *Debouncer) Trigger(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	e, ok := d.pending[key]
	if !ok {
		e = &entry{}
		d.pending[key] = e
	} else if e.timer != nil {
		e.timer.Stop()
	}

	e.gen++
	gen := e.gen
	e.timer = time.AfterFunc(d.delay, func() {
		// A timer that fired while a newer Trigger was replacing it must not run.
		d.mu.Lock()
		current, ok := d.pending[key]
		if !ok || current.gen != gen || d.stopped {
			d.mu.Unlock()
			return
		}
		delete(d.pending, key)
		d.mu.Unlock()

		fn()
	})
}

// Stop cancels every pending call. Later triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	for key, e := range d.pending {
		e.timer.Stop()
		delete(d.pending, key)
	}
}
