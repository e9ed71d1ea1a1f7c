package ring

import "errors"

var (
	// ErrFull is returned when a tick slot cannot hold the rows offered.
	ErrFull = errors.New("ring slot full")

	// ErrInvalidCapacity is returned for capacities that are not a power
	// of two or are smaller than one row per tick.
	ErrInvalidCapacity = errors.New("ring capacity must be a power of two and at least 8")

	// ErrInvalidTick is returned for ticks outside [0,7].
	ErrInvalidTick = errors.New("tick out of range")

	// ErrInvalidBatch is returned for empty, oversized or ragged batches.
	ErrInvalidBatch = errors.New("batch must have 1 to 8 equal-length columns")
)
