// Package sequence detects secret input sequences in a stream of tokens.
package sequence

import "slices"

// Detector matches the most recent tokens against a fixed target sequence.
// Each detector owns its window, so several detectors can observe the same
// input stream independently.
type Detector[T comparable] struct {
	target  []T
	window  []T
	onMatch func()
}

// New creates a detector for target. onMatch may be nil.
func New[T comparable](target []T, onMatch func()) *Detector[T] {
	return &Detector[T]{
		target:  slices.Clone(target),
		window:  make([]T, 0, len(target)),
		onMatch: onMatch,
	}
}

// Feed appends tok to the window and reports whether the target matched.
// On a match the callback runs once and the window is cleared, so the whole
// sequence has to be entered again to fire again.
func (d *Detector[T]) Feed(tok T) bool {
	if len(d.target) == 0 {
		return false
	}
	d.window = append(d.window, tok)
	if over := len(d.window) - len(d.target); over > 0 {
		d.window = append(d.window[:0], d.window[over:]...)
	}
	if !slices.Equal(d.window, d.target) {
		return false
	}
	d.window = d.window[:0]
	if d.onMatch != nil {
		d.onMatch()
	}
	return true
}

// Target returns a copy of the target sequence.
func (d *Detector[T]) Target() []T {
	return slices.Clone(d.target)
}

// Window returns a copy of the tokens currently held.
func (d *Detector[T]) Window() []T {
	return slices.Clone(d.window)
}

// Reset clears the window.
func (d *Detector[T]) Reset() {
	d.window = d.window[:0]
}
