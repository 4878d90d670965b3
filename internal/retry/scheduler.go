// Package retry holds the single-shot delayed retry primitive shared by the
// video and telemetry managers.
package retry

import (
	"time"

	"github.com/dkeye/Dash/internal/loop"
)

// Scheduler keeps at most one outstanding delayed action.
// It must only be used from the loop goroutine.
type Scheduler struct {
	loop  *loop.Loop
	timer loop.Timer
	gen   uint64
}

func New(l *loop.Loop) *Scheduler {
	return &Scheduler{loop: l}
}

// Schedule replaces any pending action with action, fired after delay.
func (s *Scheduler) Schedule(delay time.Duration, action func()) {
	s.Cancel()
	gen := s.gen
	s.timer = s.loop.AfterFunc(delay, func() {
		// a fire already queued before Cancel/Schedule belongs to an old generation
		if gen != s.gen {
			return
		}
		s.timer = nil
		s.gen++
		action()
	})
}

// Ensure arms action only if nothing is pending. Reports whether it armed.
func (s *Scheduler) Ensure(delay time.Duration, action func()) bool {
	if s.Pending() {
		return false
	}
	s.Schedule(delay, action)
	return true
}

// Cancel drops the pending action, if any. Idempotent.
func (s *Scheduler) Cancel() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
}

func (s *Scheduler) Pending() bool { return s.timer != nil }
