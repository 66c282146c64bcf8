// Package clock provides the clockwork.Clock that cmd/httpcoreserve hands
// to each server.Connection, so tests can substitute
// clockwork.NewFakeClock() instead of sleeping real time. Not every
// wall-clock read goes through it: cookies and responses default to
// clockwork.NewRealClock, and internal/app times requests with time.Now.
package clock

import "github.com/jonboulle/clockwork"

// New returns the clock a running server should use, keeping the
// server command's real-vs-fake decision in one place.
func New() clockwork.Clock {
	return clockwork.NewRealClock()
}
