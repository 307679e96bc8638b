// Package clock abstracts wall time and periodic tickers so that
// replenishment can be driven deterministically in tests.
package clock

import "time"

// Clock provides the current time and periodic tickers.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker delivers ticks on C until stopped. Ticks that the receiver is not
// ready for are dropped, as with time.Ticker.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// System implements Clock using the system time.
type System struct{}

// Now returns the current system time.
func (System) Now() time.Time {
	return time.Now()
}

// NewTicker wraps time.NewTicker.
func (System) NewTicker(d time.Duration) Ticker {
	return systemTicker{time.NewTicker(d)}
}

type systemTicker struct {
	t *time.Ticker
}

func (st systemTicker) C() <-chan time.Time { return st.t.C }

func (st systemTicker) Stop() { st.t.Stop() }
