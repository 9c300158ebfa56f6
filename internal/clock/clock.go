// Package clock provides the monotonic millisecond time sources that drive
// scheduling passes.
package clock

import (
	"sync"
	"time"
)

// Clock returns a monotonic time in milliseconds.
type Clock interface {
	NowMillis() uint64
}

// System measures milliseconds elapsed since it was created. It relies on the
// monotonic reading carried by time.Now, so wall-clock changes do not affect it.
type System struct {
	start time.Time
}

// NewSystem creates a system clock starting at 0.
func NewSystem() *System {
	return &System{start: time.Now()}
}

// NowMillis returns the milliseconds since the clock was created.
func (c *System) NowMillis() uint64 {
	return uint64(time.Since(c.start).Milliseconds())
}

// Manual is a clock that only moves when told to. Safe for concurrent use.
type Manual struct {
	mu  sync.Mutex
	now uint64
}

// NewManual creates a manual clock at the given time.
func NewManual(start uint64) *Manual {
	return &Manual{now: start}
}

// NowMillis returns the current manual time.
func (c *Manual) NowMillis() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to now. Moving backwards is ignored.
func (c *Manual) Set(now uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if now > c.now {
		c.now = now
	}
}

// Advance moves the clock forward by d milliseconds and returns the new time.
func (c *Manual) Advance(d uint64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += d
	return c.now
}

// Millis converts a duration to whole milliseconds, clamping negatives to 0.
func Millis(d time.Duration) uint64 {
	if d <= 0 {
		return 0
	}
	return uint64(d / time.Millisecond)
}
