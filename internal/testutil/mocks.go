package testutil

import (
	"sync"
	"time"

	"github.com/vnykmshr/governor/pkg/common/clock"
)

// ManualClock implements clock.Clock with time that only moves on Advance.
// Tickers created from it fire when Advance crosses their next deadline.
type ManualClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*ManualTicker
}

var _ clock.Clock = (*ManualClock)(nil)

// NewManualClock creates a new ManualClock starting at the given time.
// If zero time is provided, uses current time.
func NewManualClock(start time.Time) *ManualClock {
	if start.IsZero() {
		start = time.Now()
	}
	return &ManualClock{now: start}
}

// Now returns the current mock time.
func (m *ManualClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// NewTicker registers a ticker with period d.
func (m *ManualClock) NewTicker(d time.Duration) clock.Ticker {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := &ManualTicker{
		period: d,
		next:   m.now.Add(d),
		c:      make(chan time.Time, 1),
	}
	m.tickers = append(m.tickers, t)
	return t
}

// Advance moves the clock forward by d, firing every ticker whose deadline
// was reached. A ticker that is already holding an unread tick drops the new one.
func (m *ManualClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.now = m.now.Add(d)
	for _, t := range m.tickers {
		t.fire(m.now)
	}
}

// Tickers returns the number of tickers that have not been stopped.
func (m *ManualClock) Tickers() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, t := range m.tickers {
		if !t.isStopped() {
			n++
		}
	}
	return n
}

// ManualTicker is the clock.Ticker handed out by ManualClock.
type ManualTicker struct {
	mu      sync.Mutex
	period  time.Duration
	next    time.Time
	stopped bool
	c       chan time.Time
}

// C returns the tick channel.
func (t *ManualTicker) C() <-chan time.Time {
	return t.c
}

// Stop prevents further ticks.
func (t *ManualTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

func (t *ManualTicker) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

func (t *ManualTicker) fire(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped || now.Before(t.next) {
		return
	}
	for !now.Before(t.next) {
		t.next = t.next.Add(t.period)
	}

	select {
	case t.c <- now:
	default:
	}
}
