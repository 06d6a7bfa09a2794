package executor

import (
	"sync/atomic"
	"time"
)

// Supervisor races a deadline against a process's natural exit. When the
// deadline elapses first it invokes terminate exactly once; when the process
// exits first, Cancel stops the timer and nothing fires.
type Supervisor struct {
	timer *time.Timer
	fired atomic.Bool
}

// NewSupervisor arms a deadline of d. terminate runs on the timer goroutine
// when the deadline expires.
func NewSupervisor(d time.Duration, terminate func()) *Supervisor {
	s := &Supervisor{}
	s.timer = time.AfterFunc(d, func() {
		s.fired.Store(true)
		terminate()
	})
	return s
}

// Cancel disarms the deadline. Calling Cancel after expiry is harmless.
func (s *Supervisor) Cancel() {
	s.timer.Stop()
}

// Fired reports whether the deadline expired before cancellation.
func (s *Supervisor) Fired() bool {
	return s.fired.Load()
}
