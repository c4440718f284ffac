// Package gesture detects double taps for the like toggle.
package gesture

import "time"

// DefaultThreshold is the maximum gap between two taps that still
// counts as a double tap.
const DefaultThreshold = 300 * time.Millisecond

type state int

const (
	idle state = iota
	pendingTap
)

// Detector is a two-state machine over tap timestamps. A tap in Idle
// opens a detection window; a second tap inside the threshold completes
// the double tap and resets to Idle, while a later tap just restarts
// the window.
type Detector struct {
	threshold time.Duration
	st        state
	pendingAt time.Time
}

// NewDetector creates a detector. A non-positive threshold falls back
// to DefaultThreshold.
func NewDetector(threshold time.Duration) *Detector {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Detector{threshold: threshold}
}

// Tap feeds one tap at the given time and reports whether it completed
// a double tap.
func (d *Detector) Tap(at time.Time) bool {
	switch d.st {
	case pendingTap:
		if at.Sub(d.pendingAt) <= d.threshold {
			d.st = idle
			return true
		}
	}
	d.st = pendingTap
	d.pendingAt = at
	return false
}

// Reset returns the detector to Idle, discarding any pending window.
func (d *Detector) Reset() {
	d.st = idle
}
