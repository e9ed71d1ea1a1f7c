package ring

import (
	"fmt"

	"github.com/roach88/cadence/internal/ir"
)

// Slots is the number of tick slots per ring.
const Slots = ir.BeatWidth

// ValidateCapacity checks the ring capacity invariant.
func ValidateCapacity(capacity int) error {
	if capacity < Slots || capacity&(capacity-1) != 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)
	}
	return nil
}

func validColumns(c ir.Columns) bool {
	n := len(c.S)
	return n > 0 && n <= ir.MaxRunLen && len(c.P) == n && len(c.O) == n
}

// DeltaRing is the input ring of one domain.
type DeltaRing struct {
	capacity int
	slots    [Slots]*slotQueue[ir.Batch]
}

// NewDeltaRing allocates a delta ring. capacity is split evenly across
// the eight tick slots.
func NewDeltaRing(capacity int) (*DeltaRing, error) {
	if err := ValidateCapacity(capacity); err != nil {
		return nil, err
	}
	r := &DeltaRing{capacity: capacity}
	for i := range r.slots {
		r.slots[i] = newSlotQueue[ir.Batch](capacity / Slots)
	}
	return r, nil
}

// Capacity returns the total row capacity.
func (r *DeltaRing) Capacity() int {
	return r.capacity
}

// SlotCapacity returns the row capacity of a single tick slot.
func (r *DeltaRing) SlotCapacity() int {
	return r.capacity / Slots
}

// Enqueue admits a batch into the given tick slot.
// The batch's columns are copied; the caller may reuse its slices.
func (r *DeltaRing) Enqueue(tick uint64, b ir.Batch) error {
	if tick >= Slots {
		return fmt.Errorf("%w: %d", ErrInvalidTick, tick)
	}
	if !validColumns(b.Columns) {
		return ErrInvalidBatch
	}
	b.Columns = b.Columns.Clone()
	if !r.slots[tick].push(b, b.Len()) {
		return fmt.Errorf("%w: tick %d holds %d rows", ErrFull, tick, r.SlotCapacity())
	}
	return nil
}

// Dequeue removes whole batches from the slot, oldest first, up to
// maxRows rows in total. Returns nil when nothing fits or the slot is empty.
func (r *DeltaRing) Dequeue(tick uint64, maxRows int) []ir.Batch {
	if tick >= Slots || maxRows <= 0 {
		return nil
	}
	return r.slots[tick].pop(maxRows)
}

// Len returns the number of rows waiting in the slot.
func (r *DeltaRing) Len(tick uint64) int {
	if tick >= Slots {
		return 0
	}
	_, rows := r.slots[tick].len()
	return rows
}

// Assertion is a completed batch together with its receipt.
type Assertion struct {
	Columns ir.Columns
	Receipt ir.Receipt
}

// AssertionRing is the output ring of one domain.
type AssertionRing struct {
	capacity int
	slots    [Slots]*slotQueue[Assertion]
}

// NewAssertionRing allocates an assertion ring.
func NewAssertionRing(capacity int) (*AssertionRing, error) {
	if err := ValidateCapacity(capacity); err != nil {
		return nil, err
	}
	r := &AssertionRing{capacity: capacity}
	for i := range r.slots {
		r.slots[i] = newSlotQueue[Assertion](capacity / Slots)
	}
	return r, nil
}

// SlotCapacity returns the row capacity of a single tick slot.
func (r *AssertionRing) SlotCapacity() int {
	return r.capacity / Slots
}

// Enqueue stores a completed batch in the given tick slot.
func (r *AssertionRing) Enqueue(tick uint64, cols ir.Columns, receipt ir.Receipt) error {
	if tick >= Slots {
		return fmt.Errorf("%w: %d", ErrInvalidTick, tick)
	}
	if !validColumns(cols) {
		return ErrInvalidBatch
	}
	a := Assertion{Columns: cols.Clone(), Receipt: receipt}
	if !r.slots[tick].push(a, cols.Len()) {
		return fmt.Errorf("%w: tick %d holds %d rows", ErrFull, tick, r.SlotCapacity())
	}
	return nil
}

// Drain removes every assertion in the slot.
func (r *AssertionRing) Drain(tick uint64) []Assertion {
	if tick >= Slots {
		return nil
	}
	return r.slots[tick].pop(-1)
}

// Len returns the number of rows waiting in the slot.
func (r *AssertionRing) Len(tick uint64) int {
	if tick >= Slots {
		return 0
	}
	_, rows := r.slots[tick].len()
	return rows
}
