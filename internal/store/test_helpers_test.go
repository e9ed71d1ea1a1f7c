package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/cadence/internal/ir"
)

// createTestStore creates a new file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestReceipt creates a receipt with minimal distinguishing fields.
func createTestReceipt(cycle uint64, span uint64) ir.Receipt {
	return ir.Receipt{
		ID:          ir.ReceiptIDFor(span),
		CycleID:     cycle,
		ShardID:     uint32(span % 4),
		Ticks:       8,
		ActualTicks: 1,
		Lanes:       1,
		SpanID:      span,
		AHash:       span * 31,
	}
}

func testRoot(b byte) ir.Hash {
	var h ir.Hash
	for i := range h {
		h[i] = b
	}
	return h
}
