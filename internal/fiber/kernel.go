package fiber

import (
	"math/bits"

	"github.com/roach88/cadence/internal/ir"
)

// Kernel computes the assertions for one batch.
//
// Run returns the asserted columns and the number of ticks the work
// consumed. Kernels must be deterministic: the same batch always yields
// the same action and cost.
type Kernel interface {
	HookID() uint32
	Run(b ir.Batch) (action ir.Columns, ticks uint32)
}

// ReflexKernel asserts each batch unchanged. Each lane costs LaneCost
// ticks (one when zero).
type ReflexKernel struct {
	Hook     uint32
	LaneCost uint32
}

// HookID implements Kernel.
func (k ReflexKernel) HookID() uint32 {
	return k.Hook
}

// Run implements Kernel.
func (k ReflexKernel) Run(b ir.Batch) (ir.Columns, uint32) {
	cost := k.LaneCost
	if cost == 0 {
		cost = 1
	}
	return b.Columns.Clone(), cost * uint32(b.Len())
}

// AHash folds the asserted rows into a single 64-bit digest.
// Row order matters; each row's terms are rotated apart so that swapping
// subject and object changes the result.
func AHash(c ir.Columns) uint64 {
	var h uint64
	for i := range c.S {
		row := c.S[i] ^ bits.RotateLeft64(c.P[i], 21) ^ bits.RotateLeft64(c.O[i], 42)
		h = bits.RotateLeft64(h, 7) ^ row
	}
	return h
}
