package testutil

import (
	"sync"

	"github.com/roach88/cadence/internal/ir"
)

// CostKernel asserts batches unchanged and reports a fixed cost per
// batch, regardless of lanes. Use a cost above the fiber budget to force
// parking.
//
// Thread-safety: Runs is guarded; safe for concurrent use.
type CostKernel struct {
	Hook uint32
	Cost uint32

	mu   sync.Mutex
	runs int
}

// HookID implements fiber.Kernel.
func (k *CostKernel) HookID() uint32 {
	return k.Hook
}

// Run implements fiber.Kernel.
func (k *CostKernel) Run(b ir.Batch) (ir.Columns, uint32) {
	k.mu.Lock()
	k.runs++
	k.mu.Unlock()
	return b.Columns.Clone(), k.Cost
}

// Runs returns the number of batches executed.
func (k *CostKernel) Runs() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.runs
}

// Triples builds n distinct triples tagged with prefix.
func Triples(prefix string, n int) []ir.RawTriple {
	out := make([]ir.RawTriple, n)
	for i := range out {
		out[i] = ir.RawTriple{
			Subject:   "http://example.org/" + prefix + "/s" + string(rune('a'+i)),
			Predicate: "http://example.org/p",
			Object:    "http://example.org/" + prefix + "/o" + string(rune('a'+i)),
		}
	}
	return out
}
