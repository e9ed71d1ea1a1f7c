package beat

import (
	"math"
	"sync/atomic"
)

// Width is the number of ticks per cycle.
const Width = 8

const tickMask = Width - 1

// ClockSource supplies cycles to a scheduler.
//
// Inject a shared ClockSource when several schedulers must agree on the
// cadence; otherwise each scheduler owns a private Clock.
type ClockSource interface {
	// Next enters the next cycle and returns it.
	Next() uint64
	// Current returns the cycle that the next call to Next will enter.
	Current() uint64
	// Saturated reports whether the counter reached its maximum.
	Saturated() bool
}

// Clock is the monotonic beat counter.
//
// Next has fetch-add semantics: a fresh clock enters cycle 0 first, then
// 1, 2, ... Current always names the cycle the next beat will enter, so a
// producer stamping deltas with Current targets the upcoming tick.
//
// Wraparound policy: saturate. Once the counter reaches math.MaxUint64,
// Next keeps returning math.MaxUint64 and Saturated reports true. The
// scheduler alerts on it; it never silently wraps to cycle 0.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
// The scheduler's single driving goroutine is the only writer in practice.
type Clock struct {
	seq       atomic.Uint64
	saturated atomic.Bool
}

// NewClock creates a clock whose first beat enters cycle 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock whose first beat enters start.
// Used to resume a cadence after restart.
func NewClockAt(start uint64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	if start == math.MaxUint64 {
		c.saturated.Store(true)
	}
	return c
}

// Next enters the next cycle and returns it.
// Calls are linearizable: each call returns a unique, increasing value
// until saturation.
func (c *Clock) Next() uint64 {
	for {
		cur := c.seq.Load()
		if cur == math.MaxUint64 {
			c.saturated.Store(true)
			return cur
		}
		if c.seq.CompareAndSwap(cur, cur+1) {
			return cur
		}
	}
}

// Current returns the cycle the next beat will enter.
func (c *Clock) Current() uint64 {
	return c.seq.Load()
}

// Saturated reports whether the counter has hit math.MaxUint64.
func (c *Clock) Saturated() bool {
	return c.saturated.Load()
}

// Tick returns cycle mod 8.
func Tick(cycle uint64) uint64 {
	return cycle & tickMask
}

// Pulse returns 1 when the cycle's tick is 0 and 0 otherwise.
//
// For t = cycle&7, (t | -t) has its top bit set exactly when t != 0;
// shifting that bit down and flipping it yields the pulse flag.
func Pulse(cycle uint64) uint64 {
	t := cycle & tickMask
	return ((t | -t) >> 63) ^ 1
}

// IsPulse reports whether cycle is a commit boundary.
func IsPulse(cycle uint64) bool {
	return Pulse(cycle) == 1
}

// Epoch returns the commit epoch (cycle / 8) used to key provenance.
func Epoch(cycle uint64) uint64 {
	return cycle >> 3
}
