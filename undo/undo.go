// Package undo implements the single-slot undo policy shared by every delete
// flow: at most one pending undo exists at a time, it expires after a fixed
// window, and arming a new one cancels whatever was pending.
package undo

import (
	"sync"
	"time"
)

// DefaultWindow is how long a snapshot stays claimable after a delete.
const DefaultWindow = 5 * time.Second

// Slot holds at most one pending snapshot. The zero value is usable with the
// default window.
type Slot struct {
	mu      sync.Mutex
	window  time.Duration
	pending any
	timer   *time.Timer
	seq     uint64
}

func NewSlot(window time.Duration) *Slot {
	return &Slot{window: window}
}

// Arm stores a snapshot and starts its expiry countdown, replacing and
// cancelling any previously pending undo.
func (s *Slot) Arm(snapshot any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
	}
	s.pending = snapshot
	s.seq++
	seq := s.seq

	window := s.window
	if window <= 0 {
		window = DefaultWindow
	}
	s.timer = time.AfterFunc(window, func() {
		s.expire(seq)
	})
}

// Take consumes the pending snapshot, if any. It returns the snapshot at
// most once: a second call, or a call after expiry, reports false.
func (s *Slot) Take() (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == nil {
		return nil, false
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	snap := s.pending
	s.pending = nil
	return snap, true
}

// Pending reports whether an undo is currently claimable.
func (s *Slot) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

func (s *Slot) expire(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Only drop the snapshot this timer was armed for; a newer one stays.
	if s.seq == seq {
		s.pending = nil
		s.timer = nil
	}
}
