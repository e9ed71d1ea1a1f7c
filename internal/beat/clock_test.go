package beat

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClock_NewClock(t *testing.T) {
	c := NewClock()
	assert.Equal(t, uint64(0), c.Current(), "new clock should start at 0")
	assert.False(t, c.Saturated())
}

func TestClock_NewClockAt(t *testing.T) {
	c := NewClockAt(100)
	assert.Equal(t, uint64(100), c.Current())
	assert.Equal(t, uint64(100), c.Next(), "first beat enters the start cycle")
	assert.Equal(t, uint64(101), c.Current())
}

func TestClock_Next_FetchAdd(t *testing.T) {
	c := NewClock()

	assert.Equal(t, uint64(0), c.Next())
	assert.Equal(t, uint64(1), c.Next())
	assert.Equal(t, uint64(2), c.Next())

	assert.Equal(t, uint64(3), c.Current())
}

func TestClock_Saturates(t *testing.T) {
	c := NewClockAt(math.MaxUint64 - 1)

	assert.Equal(t, uint64(math.MaxUint64-1), c.Next())
	assert.False(t, c.Saturated())

	assert.Equal(t, uint64(math.MaxUint64), c.Next())
	assert.True(t, c.Saturated())
	assert.Equal(t, uint64(math.MaxUint64), c.Next(), "saturated clock never wraps")
	assert.Equal(t, uint64(math.MaxUint64), c.Current())
}

func TestClock_ThreadSafe(t *testing.T) {
	c := NewClock()
	const goroutines = 50
	const callsPerGoroutine = 100

	var wg sync.WaitGroup
	cycles := make(chan uint64, goroutines*callsPerGoroutine)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < callsPerGoroutine; j++ {
				cycles <- c.Next()
			}
		}()
	}

	wg.Wait()
	close(cycles)

	seen := make(map[uint64]bool)
	for cycle := range cycles {
		assert.False(t, seen[cycle], "cycle %d entered twice", cycle)
		seen[cycle] = true
	}
	assert.Len(t, seen, goroutines*callsPerGoroutine)
}

func TestTickPulseAlgebra(t *testing.T) {
	cycles := []uint64{0, 1, 7, 8, 9, 15, 16, 1023, 1024, math.MaxUint64, math.MaxUint64 - 7}
	for cycle := uint64(0); cycle < 64; cycle++ {
		cycles = append(cycles, cycle)
	}

	for _, cycle := range cycles {
		tick := Tick(cycle)
		assert.Equal(t, cycle%8, tick, "tick(%d)", cycle)
		assert.Less(t, tick, uint64(8))
		assert.Equal(t, tick == 0, IsPulse(cycle), "pulse(%d)", cycle)
		if tick == 0 {
			assert.Equal(t, uint64(1), Pulse(cycle))
		} else {
			assert.Equal(t, uint64(0), Pulse(cycle))
		}
	}
}

func TestEpoch(t *testing.T) {
	assert.Equal(t, uint64(0), Epoch(7))
	assert.Equal(t, uint64(1), Epoch(8))
	assert.Equal(t, uint64(2), Epoch(23))
}

func TestClockSatisfiesClockSource(t *testing.T) {
	var _ ClockSource = NewClock()
}
