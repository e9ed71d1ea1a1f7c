package fiber

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cadence/internal/ir"
)

func batch(t *testing.T, n int) ir.Batch {
	t.Helper()
	triples := make([]ir.RawTriple, n)
	for i := range triples {
		triples[i] = ir.RawTriple{
			Subject:   "http://example.org/s" + string(rune('a'+i)),
			Predicate: "http://example.org/p",
			Object:    "http://example.org/o" + string(rune('a'+i)),
		}
	}
	b, err := ir.NewBatch(triples, 0)
	require.NoError(t, err)
	return b
}

func TestFiber_CompletesWithinBudget(t *testing.T) {
	f := New(2, DefaultTickBudget, ReflexKernel{Hook: 7})
	b := batch(t, 3)

	res := f.ExecuteTick(1, b, 9)

	require.True(t, res.Completed())
	assert.Equal(t, b.Columns, res.Action)
	assert.Equal(t, uint64(9), res.Receipt.CycleID)
	assert.Equal(t, uint32(2), res.Receipt.ShardID)
	assert.Equal(t, uint32(7), res.Receipt.HookID)
	assert.Equal(t, uint32(8), res.Receipt.Ticks)
	assert.Equal(t, uint32(3), res.Receipt.ActualTicks)
	assert.Equal(t, uint32(3), res.Receipt.Lanes)
	assert.Equal(t, ir.ReceiptIDFor(res.Receipt.SpanID), res.Receipt.ID)
	assert.Equal(t, AHash(b.Columns), res.Receipt.AHash)

	s := f.Snapshot()
	assert.Equal(t, uint32(3), s.CycleTicks)
	assert.Equal(t, 1, s.CycleRuns)
	assert.False(t, s.IsReset())
}

func TestFiber_ParksOverBudget(t *testing.T) {
	f := New(0, DefaultTickBudget, ReflexKernel{LaneCost: 3})
	b := batch(t, 3) // 9 ticks > 8

	res := f.ExecuteTick(0, b, 16)

	require.False(t, res.Completed())
	assert.Equal(t, OutcomeParked, res.Outcome)
	assert.Equal(t, ir.ParkCauseTickBudgetExceeded, res.Cause)
	assert.Equal(t, b, res.Delta)
	assert.Equal(t, uint32(9), res.Receipt.ActualTicks)
	assert.Equal(t, 1, f.Snapshot().CycleParks)
	assert.Equal(t, uint32(0), f.Snapshot().CycleTicks, "parked work does not consume budget")
}

func TestFiber_BudgetIsPerExecution(t *testing.T) {
	f := New(0, DefaultTickBudget, ReflexKernel{})

	// 6 + 6 ticks exceeds the budget for the cycle, but each batch fits.
	first := f.ExecuteTick(2, batch(t, 6), 2)
	second := f.ExecuteTick(2, batch(t, 6), 2)

	assert.True(t, first.Completed())
	assert.True(t, second.Completed())
	s := f.Snapshot()
	assert.Equal(t, uint32(12), s.CycleTicks)
	assert.Equal(t, 2, s.CycleRuns)
}

func TestFiber_YieldControlResets(t *testing.T) {
	f := New(1, DefaultTickBudget, nil)
	f.ExecuteTick(0, batch(t, 2), 0)
	f.ExecuteTick(1, batch(t, 2), 1)

	f.YieldControl()

	s := f.Snapshot()
	assert.True(t, s.IsReset())
	assert.Equal(t, uint64(2), s.TotalRuns, "lifetime counters survive yield")
	assert.Equal(t, uint64(1), s.Yields)
}

func TestFiber_SpansAreDeterministic(t *testing.T) {
	a := New(1, DefaultTickBudget, nil)
	b := New(1, DefaultTickBudget, nil)

	ra := a.ExecuteTick(0, batch(t, 1), 8)
	rb := b.ExecuteTick(0, batch(t, 1), 8)
	assert.Equal(t, ra.Receipt, rb.Receipt)

	second := a.ExecuteTick(1, batch(t, 1), 8)
	assert.NotEqual(t, ra.Receipt.SpanID, second.Receipt.SpanID)
}

func TestAHash_OrderSensitive(t *testing.T) {
	c := ir.Columns{S: []uint64{1, 2}, P: []uint64{3, 3}, O: []uint64{5, 6}}
	swapped := ir.Columns{S: []uint64{2, 1}, P: []uint64{3, 3}, O: []uint64{6, 5}}
	assert.NotEqual(t, AHash(c), AHash(swapped))
	assert.Equal(t, uint64(0), AHash(ir.Columns{}))
}

func TestStateString(t *testing.T) {
	f := New(3, DefaultTickBudget, nil)
	assert.Equal(t, "fiber[3] ticks=0/8 runs=0 parks=0", f.Snapshot().String())
}
