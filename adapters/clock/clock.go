// Package clock provides Clock implementations.
package clock

import (
	"sync"
	"time"

	"github.com/artpar/predefine/ports"
)

// Precision is the resolution timestamps are stored with.
const Precision = time.Millisecond

// Real returns the current UTC time truncated to Precision, so a stored
// timestamp reads back equal to the one that was written.
type Real struct{}

// Now returns the current time.
func (Real) Now() time.Time {
	return time.Now().UTC().Truncate(Precision)
}

// Fake provides a controllable clock for testing.
type Fake struct {
	mu      sync.RWMutex
	current time.Time
}

// NewFake creates a fake clock set to the given time.
func NewFake(t time.Time) *Fake {
	return &Fake{current: t.UTC()}
}

// Now returns the fake current time.
func (f *Fake) Now() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.current
}

// Advance moves the fake time forward by d and returns the new time.
func (f *Fake) Advance(d time.Duration) time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = f.current.Add(d)
	return f.current
}

var (
	_ ports.Clock = Real{}
	_ ports.Clock = (*Fake)(nil)
)
