package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cadence/internal/ir"
	"github.com/roach88/cadence/internal/testutil"
)

func TestDriver_StopsAtMaxBeats(t *testing.T) {
	s := newTestScheduler(t, 1, 1, 8)
	d := NewDriver(s, WithMaxBeats(20))

	require.NoError(t, d.Run(context.Background()))
	assert.Equal(t, uint64(20), s.CurrentCycle())
}

func TestDriver_CancelledContext(t *testing.T) {
	s := newTestScheduler(t, 1, 1, 8)
	d := NewDriver(s, WithBeatRate(1000))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := d.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Greater(t, s.CurrentCycle(), uint64(0))
}

func TestDriver_AlreadyCancelled(t *testing.T) {
	s := newTestScheduler(t, 1, 1, 8)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewDriver(s).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, uint64(0), s.CurrentCycle())
}

func TestDriver_Handlers(t *testing.T) {
	kernel := &testutil.CostKernel{Cost: 100}
	s := newTestScheduler(t, 1, 1, 16, WithKernel(kernel))
	require.NoError(t, s.EnqueueDelta(0, testutil.Triples("p", 1), 0))
	require.NoError(t, s.EnqueueDelta(0, testutil.Triples("q", 1), 9))

	var parked []ir.ParkedDelta
	var pulses []uint64
	d := NewDriver(s,
		WithMaxBeats(17),
		WithParkedHandler(func(p []ir.ParkedDelta) { parked = append(parked, p...) }),
		WithPulseHandler(func(cycle uint64, _ []ir.Receipt) { pulses = append(pulses, cycle) }),
	)

	require.NoError(t, d.Run(context.Background()))

	assert.Equal(t, []uint64{0, 8, 16}, pulses)
	require.Len(t, parked, 2)
	assert.Equal(t, uint64(0), parked[0].CycleID)
	assert.Equal(t, uint64(9), parked[1].CycleID)
	assert.Zero(t, s.ParkCount())
}
