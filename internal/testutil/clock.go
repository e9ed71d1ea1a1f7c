package testutil

import "sync"

// DeterministicClock is a settable beat clock for tests.
//
// It follows the same fetch-add contract as beat.Clock: Next returns the
// cycle being entered and Current names the next one. Unlike beat.Clock it
// can be reset, positioned anywhere, and forced into saturation.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu        sync.Mutex
	seq       uint64
	saturated bool
}

// NewDeterministicClock creates a clock whose first Next returns 0.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{}
}

// Next returns the current cycle and advances by one.
func (c *DeterministicClock) Next() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	cycle := c.seq
	if !c.saturated {
		c.seq++
	}
	return cycle
}

// Current returns the cycle the next call to Next will return.
func (c *DeterministicClock) Current() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Saturated reports whether Saturate was called.
func (c *DeterministicClock) Saturated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saturated
}

// Set positions the clock so the next Next returns cycle.
func (c *DeterministicClock) Set(cycle uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = cycle
}

// Saturate freezes the clock at its current cycle.
func (c *DeterministicClock) Saturate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saturated = true
}

// Reset returns the clock to cycle 0 and clears saturation.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
	c.saturated = false
}
