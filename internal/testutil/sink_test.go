package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cadence/internal/ir"
)

func TestRecordingSink_RecordsCallOrder(t *testing.T) {
	s := NewRecordingSink()
	ctx := context.Background()

	s.AddReceipt(ir.Receipt{SpanID: 1})
	root := s.ComputeRoot()
	proof, err := s.AchieveConsensus(ctx, root, 2)
	require.NoError(t, err)
	require.NoError(t, s.PersistRoot(ctx, 2, root, proof))
	s.Reset()

	assert.Equal(t, []string{"add_receipt", "compute_root", "achieve_consensus", "persist_root", "reset"}, s.CallLog())
	require.Len(t, s.PersistedRoots(), 1)
	assert.Equal(t, uint64(2), s.PersistedRoots()[0].CycleID)
}

func TestRecordingSink_InjectedFailures(t *testing.T) {
	s := NewRecordingSink()
	s.ConsensusErr = errors.New("no quorum")
	s.PersistErr = errors.New("disk full")

	_, err := s.AchieveConsensus(context.Background(), ir.Hash{}, 0)
	assert.EqualError(t, err, "no quorum")
	assert.EqualError(t, s.PersistRoot(context.Background(), 0, ir.Hash{}, ir.QuorumProof{}), "disk full")
	assert.Empty(t, s.PersistedRoots())
}

func TestCostKernel(t *testing.T) {
	k := &CostKernel{Hook: 3, Cost: 9}
	b, err := ir.NewBatch(Triples("k", 2), 0)
	require.NoError(t, err)

	action, cost := k.Run(b)
	assert.Equal(t, uint32(9), cost)
	assert.Equal(t, b.Columns, action)
	assert.Equal(t, 1, k.Runs())
	assert.Equal(t, uint32(3), k.HookID())
}

func TestTriplesAreDistinct(t *testing.T) {
	ts := Triples("x", 8)
	seen := map[string]bool{}
	for _, tr := range ts {
		assert.False(t, seen[tr.Subject])
		seen[tr.Subject] = true
	}
}

func TestRecordingSink_HoldStallsConsensus(t *testing.T) {
	s := NewRecordingSink()
	s.Hold = make(chan struct{})
	s.Holding = make(chan struct{}, 1)

	done := make(chan struct{})
	go func() {
		_, _ = s.AchieveConsensus(context.Background(), ir.Hash{}, 0)
		close(done)
	}()
	<-s.Holding
	assert.Empty(t, s.CallLog(), "stalled before recording")

	close(s.Hold)
	<-done
	require.NoError(t, s.Close())
	assert.Equal(t, []string{"achieve_consensus", "close"}, s.CallLog())
	assert.True(t, s.Closed)
}
