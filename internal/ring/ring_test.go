package ring

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cadence/internal/ir"
)

func batchOf(t *testing.T, n int, tag string) ir.Batch {
	t.Helper()
	triples := make([]ir.RawTriple, n)
	for i := range triples {
		triples[i] = ir.RawTriple{
			Subject:   fmt.Sprintf("http://example.org/%s/s%d", tag, i),
			Predicate: "http://example.org/p",
			Object:    fmt.Sprintf("http://example.org/%s/o%d", tag, i),
		}
	}
	b, err := ir.NewBatch(triples, 0)
	require.NoError(t, err)
	return b
}

func TestValidateCapacity(t *testing.T) {
	for _, c := range []int{8, 16, 64, 1024} {
		assert.NoError(t, ValidateCapacity(c), "capacity %d", c)
	}
	for _, c := range []int{0, 1, 4, 7, 12, 100} {
		assert.ErrorIs(t, ValidateCapacity(c), ErrInvalidCapacity, "capacity %d", c)
	}
}

func TestDeltaRing_EnqueueDequeue(t *testing.T) {
	r, err := NewDeltaRing(16)
	require.NoError(t, err)
	assert.Equal(t, 2, r.SlotCapacity())

	b := batchOf(t, 1, "a")
	require.NoError(t, r.Enqueue(3, b))
	assert.Equal(t, 1, r.Len(3))
	assert.Zero(t, r.Len(2), "slots are independent")

	got := r.Dequeue(3, ir.MaxRunLen)
	require.Len(t, got, 1)
	assert.Equal(t, b.Columns, got[0].Columns)
	assert.Zero(t, r.Len(3))
}

func TestDeltaRing_FIFO(t *testing.T) {
	r, err := NewDeltaRing(64)
	require.NoError(t, err)

	for _, tag := range []string{"A", "B", "C"} {
		require.NoError(t, r.Enqueue(0, batchOf(t, 2, tag)))
	}

	got := r.Dequeue(0, ir.MaxRunLen)
	require.Len(t, got, 3)
	assert.Contains(t, got[0].Triples[0].Subject, "/A/")
	assert.Contains(t, got[1].Triples[0].Subject, "/B/")
	assert.Contains(t, got[2].Triples[0].Subject, "/C/")
}

func TestDeltaRing_DequeueRespectsRowBudget(t *testing.T) {
	r, err := NewDeltaRing(128) // 16 rows per slot
	require.NoError(t, err)

	require.NoError(t, r.Enqueue(1, batchOf(t, 5, "A")))
	require.NoError(t, r.Enqueue(1, batchOf(t, 5, "B")))

	first := r.Dequeue(1, ir.MaxRunLen)
	require.Len(t, first, 1, "second batch would exceed 8 rows")
	assert.Equal(t, 5, r.Len(1))

	second := r.Dequeue(1, ir.MaxRunLen)
	require.Len(t, second, 1)
	assert.Contains(t, second[0].Triples[0].Subject, "/B/")
}

func TestDeltaRing_Full(t *testing.T) {
	r, err := NewDeltaRing(8) // one row per slot
	require.NoError(t, err)

	require.NoError(t, r.Enqueue(0, batchOf(t, 1, "a")))
	err = r.Enqueue(0, batchOf(t, 1, "b"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFull))

	// Draining frees the slot again.
	r.Dequeue(0, ir.MaxRunLen)
	assert.NoError(t, r.Enqueue(0, batchOf(t, 1, "c")))
}

func TestDeltaRing_RejectsInvalid(t *testing.T) {
	r, err := NewDeltaRing(8)
	require.NoError(t, err)

	assert.ErrorIs(t, r.Enqueue(8, batchOf(t, 1, "a")), ErrInvalidTick)
	assert.ErrorIs(t, r.Enqueue(0, ir.Batch{}), ErrInvalidBatch)

	ragged := batchOf(t, 2, "a")
	ragged.Columns.O = ragged.Columns.O[:1]
	assert.ErrorIs(t, r.Enqueue(0, ragged), ErrInvalidBatch)

	assert.Nil(t, r.Dequeue(9, 8))
	assert.Nil(t, r.Dequeue(0, 0))
}

func TestDeltaRing_CopiesColumns(t *testing.T) {
	r, err := NewDeltaRing(8)
	require.NoError(t, err)

	b := batchOf(t, 1, "a")
	want := b.Columns.S[0]
	require.NoError(t, r.Enqueue(0, b))
	b.Columns.S[0] = 0

	got := r.Dequeue(0, 8)
	require.Len(t, got, 1)
	assert.Equal(t, want, got[0].Columns.S[0])
}

func TestNewRingsRejectBadCapacity(t *testing.T) {
	_, err := NewDeltaRing(6)
	assert.ErrorIs(t, err, ErrInvalidCapacity)
	_, err = NewAssertionRing(24)
	assert.ErrorIs(t, err, ErrInvalidCapacity)
}

func TestAssertionRing_EnqueueDrain(t *testing.T) {
	r, err := NewAssertionRing(16)
	require.NoError(t, err)

	b := batchOf(t, 1, "a")
	require.NoError(t, r.Enqueue(2, b.Columns, ir.Receipt{SpanID: 1}))
	require.NoError(t, r.Enqueue(2, b.Columns, ir.Receipt{SpanID: 2}))
	assert.ErrorIs(t, r.Enqueue(2, b.Columns, ir.Receipt{SpanID: 3}), ErrFull)

	got := r.Drain(2)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(1), got[0].Receipt.SpanID)
	assert.Equal(t, uint64(2), got[1].Receipt.SpanID)
	assert.Equal(t, 0, r.Len(2))
	assert.Nil(t, r.Drain(2))
}

func TestDeltaRing_ConcurrentProducers(t *testing.T) {
	r, err := NewDeltaRing(1024) // 128 rows per slot
	require.NoError(t, err)

	const producers = 16
	const perProducer = 16 // 256 attempts, 128 fit

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted, rejected := 0, 0

	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				err := r.Enqueue(5, batchOf(t, 1, fmt.Sprintf("%d-%d", p, i)))
				mu.Lock()
				if err == nil {
					accepted++
				} else {
					assert.ErrorIs(t, err, ErrFull)
					rejected++
				}
				mu.Unlock()
			}
		}(p)
	}
	wg.Wait()

	assert.Equal(t, 128, accepted)
	assert.Equal(t, producers*perProducer-128, rejected)

	drained := 0
	for {
		got := r.Dequeue(5, ir.MaxRunLen)
		if len(got) == 0 {
			break
		}
		drained += len(got)
	}
	assert.Equal(t, accepted, drained)
}
