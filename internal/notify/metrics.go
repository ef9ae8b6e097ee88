package notify

import (
	"sync"
	"time"
)

type debounceState int

const (
	stateIdle debounceState = iota
	statePending
)

// Debouncer collapses bursts of metric-update requests into one broadcast
// per window. Invalidation happens on the leading edge so stale reads are
// bounded by the window; the broadcast fires on the trailing edge.
type Debouncer struct {
	mu         sync.Mutex
	state      debounceState
	window     time.Duration
	timer      *time.Timer
	invalidate func()
	broadcast  func()
}

// NewDebouncer builds a debouncer. invalidate or broadcast may be nil when a
// caller only needs one edge.
func NewDebouncer(window time.Duration, invalidate, broadcast func()) *Debouncer {
	if window <= 0 {
		window = 8 * time.Second
	}
	return &Debouncer{
		window:     window,
		invalidate: invalidate,
		broadcast:  broadcast,
	}
}

// Trigger invalidates and broadcasts immediately, resolving any pending
// window so the burst does not fire a second broadcast later.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	if d.state == statePending && d.timer != nil {
		d.timer.Stop()
	}
	d.state = stateIdle
	d.timer = nil
	d.mu.Unlock()

	d.runInvalidate()
	d.runBroadcast()
}

// Schedule requests a deferred broadcast. The first call in a window
// invalidates immediately and arms the timer; further calls inside the
// window collapse into the already-pending broadcast.
func (d *Debouncer) Schedule() {
	d.mu.Lock()
	if d.state == statePending {
		d.mu.Unlock()
		return
	}
	d.state = statePending
	d.timer = time.AfterFunc(d.window, d.fire)
	d.mu.Unlock()

	d.runInvalidate()
}

// Flush forces a pending window to resolve now. A flush with nothing
// pending is a no-op.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.state != statePending {
		d.mu.Unlock()
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.state = stateIdle
	d.timer = nil
	d.mu.Unlock()

	d.runBroadcast()
}

// Stop cancels any pending broadcast without firing it.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.state = stateIdle
	d.timer = nil
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	if d.state != statePending {
		d.mu.Unlock()
		return
	}
	d.state = stateIdle
	d.timer = nil
	d.mu.Unlock()

	d.runBroadcast()
}

func (d *Debouncer) runInvalidate() {
	if d.invalidate != nil {
		d.invalidate()
	}
}

func (d *Debouncer) runBroadcast() {
	if d.broadcast != nil {
		d.broadcast()
	}
}
