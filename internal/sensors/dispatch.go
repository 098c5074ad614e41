// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sensors provides the location sensors that feed a tracking
// session: a GPS receiver on a serial port, GPS fixes received over MQTT and
// a synthetic circular track.
package sensors

import (
	"sync"
	"time"

	"github.com/relabs-tech/situation_viewer/internal/track"
	"github.com/relabs-tech/situation_viewer/internal/tracking"
)

// dispatcher holds the handler registrations, the tracking flag and the last
// known position shared by all sensors.
type dispatcher struct {
	mu       sync.Mutex
	onUpdate func(tracking.Update)
	onError  func(code int, message string)
	tracking bool

	last    track.Point
	hasLast bool

	// no-fix watchdog
	lastFix  time.Time
	timedOut bool
	// set while the receiver reports void fixes
	noFix bool
}

// OnUpdate registers the handler for new fixes.
func (d *dispatcher) OnUpdate(fn func(tracking.Update)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onUpdate = fn
}

// OnError registers the handler for sensor failures.
func (d *dispatcher) OnError(fn func(code int, message string)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onError = fn
}

// CurrentPosition returns the last position seen by the sensor, whether or
// not it was tracking at the time.
func (d *dispatcher) CurrentPosition() (track.Point, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last, d.hasLast
}

// Tracking reports whether fixes are being delivered.
func (d *dispatcher) Tracking() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tracking
}

// setTracking flips the tracking flag and rearms the watchdog. It reports
// whether the flag changed.
func (d *dispatcher) setTracking(enabled bool, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.tracking == enabled {
		return false
	}
	d.tracking = enabled
	d.lastFix = now
	d.timedOut = false
	d.noFix = false
	return true
}

// emitUpdate records the position and, while tracking, hands u to the
// registered handler. Handlers run without the dispatcher lock held.
func (d *dispatcher) emitUpdate(u tracking.Update, now time.Time) {
	d.mu.Lock()
	d.last = track.Point{X: u.X, Y: u.Y}
	d.hasLast = true
	d.lastFix = now
	d.timedOut = false
	d.noFix = false
	fn := d.onUpdate
	deliver := d.tracking
	d.mu.Unlock()

	if deliver && fn != nil {
		fn(u)
	}
}

// emitError hands a failure to the registered handler while tracking.
func (d *dispatcher) emitError(code int, message string) {
	d.mu.Lock()
	fn := d.onError
	deliver := d.tracking
	d.mu.Unlock()

	if deliver && fn != nil {
		fn(code, message)
	}
}

// emitNoFix reports a void fix as CodePositionUnavailable once per outage.
// The outage ends with the next valid fix or a change of the tracking flag.
// It reports whether the error was raised.
func (d *dispatcher) emitNoFix() bool {
	d.mu.Lock()
	first := !d.noFix
	d.noFix = true
	d.mu.Unlock()

	if first {
		d.emitError(tracking.CodePositionUnavailable, "GPS receiver has no fix")
	}
	return first
}

// checkTimeout raises a timeout error once per silent period longer than
// timeout. A zero timeout disables the check.
func (d *dispatcher) checkTimeout(now time.Time, timeout time.Duration) {
	if timeout <= 0 {
		return
	}
	d.mu.Lock()
	expired := d.tracking && !d.timedOut && now.Sub(d.lastFix) >= timeout
	if expired {
		d.timedOut = true
	}
	d.mu.Unlock()

	if expired {
		d.emitError(tracking.CodeTimeout, "timeout expired waiting for a position")
	}
}
