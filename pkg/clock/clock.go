// Injected time source. Detectors stamp findings through a
// Clock rather than the wall clock so tests stay deterministic.
package clock

import "time"

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

func Real() Clock { return realClock{} }

// A clock pinned to a single instant.
type fixedClock struct {
	at time.Time
}

func (c fixedClock) Now() time.Time { return c.at }

func Fixed(at time.Time) Clock { return fixedClock{at: at} }
