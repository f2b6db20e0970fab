// Package debounce filters contact bounce from a binary input.
//
// Raw readings are handed to SetValue as they arrive, typically from an edge
// handler. A periodic Check promotes the latest reading once it has been stable
// for the timeout.
package debounce

import (
	"sync"
	"time"
)

// Debouncer holds a debounced boolean value.
type Debouncer struct {
	timeout time.Duration
	now     func() time.Time

	mu      sync.Mutex
	value   bool
	holding bool
	held    bool
	heldAt  time.Time
}

// Option configures a Debouncer.
type Option func(*Debouncer)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(d *Debouncer) { d.now = now }
}

// New returns a debouncer reporting initial until a different value settles.
func New(timeout time.Duration, initial bool, opts ...Option) *Debouncer {
	d := &Debouncer{
		timeout: timeout,
		now:     time.Now,
		value:   initial,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Value returns the debounced value.
func (d *Debouncer) Value() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.value
}

// SetValue records a raw reading. Every call restarts the timeout.
func (d *Debouncer) SetValue(v bool) {
	d.mu.Lock()
	d.holding = true
	d.held = v
	d.heldAt = d.now()
	d.mu.Unlock()
}

// Check promotes the held reading once the timeout has elapsed. It reports the
// debounced value and whether it changed in this call.
func (d *Debouncer) Check() (value, changed bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.holding && d.now().Sub(d.heldAt) >= d.timeout {
		d.holding = false
		changed = d.value != d.held
		d.value = d.held
	}
	return d.value, changed
}
