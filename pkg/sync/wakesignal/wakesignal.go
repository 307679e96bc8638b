package wakesignal

import (
	"context"
	"sync"
)

// State is the observable state of a Signal.
type State int

const (
	// Idle means no notification is pending and nobody is waiting.
	Idle State = iota

	// Signaled means one notification arrived with nobody waiting. The next
	// Wait consumes it without suspending.
	Signaled

	// Waiting means one or more callers are parked in Wait.
	Waiting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Signaled:
		return "signaled"
	case Waiting:
		return "waiting"
	default:
		return "unknown"
	}
}

// Signal is a single-slot, auto-resetting notification. Notify wakes the
// oldest waiter or, if there is none, is remembered for the next Wait. At
// most one notification is ever remembered.
//
// The zero value is an idle Signal ready for use.
type Signal struct {
	mu       sync.Mutex
	signaled bool
	waiters  []*waiter
}

// waiter represents a goroutine parked in Wait
type waiter struct {
	ready chan struct{} // closed by Notify
}

// New returns an idle Signal.
func New() *Signal {
	return &Signal{}
}

// Wait blocks until the Signal is notified or ctx is done. A pending
// notification is consumed and Wait returns immediately.
//
// If ctx is done, Wait returns ctx.Err() and no notification is consumed: a
// notification that raced with the cancellation is passed on to the next
// waiter, or remembered.
func (s *Signal) Wait(ctx context.Context) error {
	// Check if context is already canceled
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.mu.Lock()
	if s.signaled {
		s.signaled = false
		s.mu.Unlock()
		return nil
	}

	w := &waiter{ready: make(chan struct{})}
	s.waiters = append(s.waiters, w)
	s.mu.Unlock()

	select {
	case <-w.ready:
		return nil
	case <-ctx.Done():
		if !s.removeWaiter(w) {
			// Notify already dequeued us; hand the wake on.
			s.Notify()
		}
		return ctx.Err()
	}
}

// Notify wakes the oldest waiter. With no waiters it leaves one pending
// notification; further calls before the next Wait are no-ops.
// Notify never blocks.
func (s *Signal) Notify() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.waiters) == 0 {
		s.signaled = true
		return
	}

	w := s.waiters[0]
	s.waiters[0] = nil
	s.waiters = s.waiters[1:]
	close(w.ready)
}

// State returns the current state.
func (s *Signal) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case len(s.waiters) > 0:
		return Waiting
	case s.signaled:
		return Signaled
	default:
		return Idle
	}
}

// Waiters returns the number of goroutines parked in Wait.
func (s *Signal) Waiters() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.waiters)
}

// removeWaiter drops w from the queue and reports whether it was still
// queued.
func (s *Signal) removeWaiter(w *waiter) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, queued := range s.waiters {
		if queued == w {
			s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
			return true
		}
	}
	return false
}
