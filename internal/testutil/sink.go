package testutil

import (
	"context"
	"sync"

	"github.com/roach88/cadence/internal/ir"
)

// RecordingSink is a provenance sink that records every call.
//
// Set ConsensusErr or PersistErr to simulate quorum or storage failure.
// Set Hold to stall AchieveConsensus until Hold is closed; Holding, when
// set, receives a value once the call is stalled.
// Root is derived from the receipt span IDs so tests can tell cycles apart
// without a real Merkle tree.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type RecordingSink struct {
	mu sync.Mutex

	ConsensusErr error
	PersistErr   error
	Hold         chan struct{}
	Holding      chan struct{}

	pending   []ir.Receipt
	Calls     []string
	Epochs    []uint64
	Persisted []ir.ProvenanceRoot
	Resets    int
	Closed    bool
}

// NewRecordingSink creates an empty recording sink.
func NewRecordingSink() *RecordingSink {
	return &RecordingSink{}
}

func (s *RecordingSink) AddReceipt(r ir.Receipt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, r)
	s.Calls = append(s.Calls, "add_receipt")
}

func (s *RecordingSink) ComputeRoot() ir.Hash {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, "compute_root")
	var root ir.Hash
	for i, r := range s.pending {
		root[i%len(root)] ^= byte(r.SpanID)
	}
	root[len(root)-1] = byte(len(s.pending))
	return root
}

func (s *RecordingSink) AchieveConsensus(_ context.Context, root ir.Hash, cycleID uint64) (ir.QuorumProof, error) {
	if s.Hold != nil {
		if s.Holding != nil {
			s.Holding <- struct{}{}
		}
		<-s.Hold
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, "achieve_consensus")
	s.Epochs = append(s.Epochs, cycleID)
	if s.ConsensusErr != nil {
		return ir.QuorumProof{}, s.ConsensusErr
	}
	return ir.QuorumProof{CycleID: cycleID, Root: root.String(), Threshold: 1}, nil
}

func (s *RecordingSink) PersistRoot(_ context.Context, cycleID uint64, root ir.Hash, proof ir.QuorumProof) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, "persist_root")
	if s.PersistErr != nil {
		return s.PersistErr
	}
	s.Persisted = append(s.Persisted, ir.ProvenanceRoot{CycleID: cycleID, Root: root, Proof: proof})
	return nil
}

func (s *RecordingSink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, "reset")
	s.pending = nil
	s.Resets++
}

func (s *RecordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, "close")
	s.Closed = true
	return nil
}

// CallLog returns a copy of the recorded call names.
func (s *RecordingSink) CallLog() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.Calls...)
}

// PersistedRoots returns a copy of the persisted roots.
func (s *RecordingSink) PersistedRoots() []ir.ProvenanceRoot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ir.ProvenanceRoot(nil), s.Persisted...)
}
