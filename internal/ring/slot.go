package ring

import "sync"

// slotQueue is a fixed-size FIFO of row-weighted entries.
//
// The backing array is allocated once: every entry weighs at least one
// row, so a slot of maxRows rows never holds more than maxRows entries.
type slotQueue[T any] struct {
	mu      sync.Mutex
	entries []T
	weights []int
	head    int
	count   int
	rows    int
	maxRows int
}

func newSlotQueue[T any](maxRows int) *slotQueue[T] {
	return &slotQueue[T]{
		entries: make([]T, maxRows),
		weights: make([]int, maxRows),
		maxRows: maxRows,
	}
}

// push appends v if weight more rows fit. Returns false when full.
func (q *slotQueue[T]) push(v T, weight int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.rows+weight > q.maxRows {
		return false
	}
	idx := (q.head + q.count) % len(q.entries)
	q.entries[idx] = v
	q.weights[idx] = weight
	q.count++
	q.rows += weight
	return true
}

// pop removes entries from the front while their cumulative weight stays
// within maxRows. A negative maxRows drains the slot.
func (q *slotQueue[T]) pop(maxRows int) []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []T
	taken := 0
	for q.count > 0 {
		w := q.weights[q.head]
		if maxRows >= 0 && taken+w > maxRows {
			break
		}
		out = append(out, q.entries[q.head])

		// Zero the slot so the GC can reclaim the entry's slices.
		var zero T
		q.entries[q.head] = zero
		q.weights[q.head] = 0

		q.head = (q.head + 1) % len(q.entries)
		q.count--
		q.rows -= w
		taken += w
	}
	if q.count == 0 {
		q.head = 0
	}
	return out
}

func (q *slotQueue[T]) len() (entries, rows int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count, q.rows
}
