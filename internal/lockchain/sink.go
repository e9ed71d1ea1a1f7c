package lockchain

import (
	"context"

	"github.com/roach88/cadence/internal/ir"
)

// Sink consumes the receipts of one committed cycle.
//
// The commit path calls AddReceipt for every receipt, then ComputeRoot,
// AchieveConsensus and PersistRoot in that order, and Reset regardless
// of the outcome. Errors are reported to the caller, which logs them;
// a failing sink must never stall admission or execution.
type Sink interface {
	AddReceipt(r ir.Receipt)
	ComputeRoot() ir.Hash
	AchieveConsensus(ctx context.Context, root ir.Hash, cycleID uint64) (ir.QuorumProof, error)
	PersistRoot(ctx context.Context, cycleID uint64, root ir.Hash, proof ir.QuorumProof) error
	Reset()
	Close() error
}

// NopSink discards provenance. The zero value is ready to use.
type NopSink struct{}

func (NopSink) AddReceipt(ir.Receipt) {}

func (NopSink) ComputeRoot() ir.Hash { return ir.Hash{} }

func (NopSink) AchieveConsensus(_ context.Context, root ir.Hash, cycleID uint64) (ir.QuorumProof, error) {
	return ir.QuorumProof{CycleID: cycleID, Root: root.String()}, nil
}

func (NopSink) PersistRoot(context.Context, uint64, ir.Hash, ir.QuorumProof) error { return nil }

func (NopSink) Reset() {}

func (NopSink) Close() error { return nil }

var (
	_ Sink = NopSink{}
	_ Sink = (*Lockchain)(nil)
)
