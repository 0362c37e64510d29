// Package clock abstracts time so elapsed and rest calculations can be driven
// deterministically in tests.
package clock

import "time"

// Clock is a monotonic time source.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker delivers ticks on C. Like time.Ticker, slow receivers drop ticks.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// System is the real clock. time.Now carries a monotonic reading, so
// differences between two System times ignore wall-clock adjustments.
type System struct{}

// New returns the system clock.
func New() System { return System{} }

func (System) Now() time.Time { return time.Now() }

func (System) NewTicker(d time.Duration) Ticker {
	return &systemTicker{t: time.NewTicker(d)}
}

type systemTicker struct {
	t *time.Ticker
}

func (s *systemTicker) C() <-chan time.Time { return s.t.C }
func (s *systemTicker) Stop()               { s.t.Stop() }
