// Package clock abstracts the two time operations the pipeline depends on
// so cadence and polling logic can be tested deterministically.
//
// Production code uses Real(); tests use Fake, whose time only moves when
// Sleep or Advance is called.
package clock

import (
	"sync"
	"time"
)

// Clock is the subset of the time package used by the producer and the
// coordinator.
type Clock interface {
	Now() time.Time
	// Sleep pauses the calling goroutine for at least d. d <= 0 returns
	// immediately.
	Sleep(d time.Duration)
}

// Real returns a Clock backed by the standard time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

// Fake is a Clock whose time advances only through Sleep and Advance.
// Sleep returns immediately after moving the clock forward by d, which
// makes a single-goroutine loop fully deterministic.
//
// Fake is safe for concurrent use.
type Fake struct {
	mu      sync.Mutex
	current time.Time
	slept   []time.Duration
}

// NewFake returns a Fake set to initial.
func NewFake(initial time.Time) *Fake {
	return &Fake{current: initial}
}

// Now returns the fake current time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// Sleep records d and advances the clock by it. Non-positive durations are
// recorded as zero and do not move time.
func (f *Fake) Sleep(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d < 0 {
		d = 0
	}
	f.slept = append(f.slept, d)
	f.current = f.current.Add(d)
}

// Advance moves the clock forward by d without recording a sleep. Tests use
// it to simulate work done between clock reads.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = f.current.Add(d)
}

// Slept returns a copy of every duration passed to Sleep, in call order.
func (f *Fake) Slept() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]time.Duration, len(f.slept))
	copy(out, f.slept)
	return out
}
