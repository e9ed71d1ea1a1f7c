package store

import (
	"errors"

	"github.com/roach88/cadence/internal/ir"
)

// ErrRootNotFound is returned when no root is stored for an epoch.
var ErrRootNotFound = errors.New("root not found")

// RootEntry is one persisted lockchain root.
type RootEntry struct {
	Epoch        uint64         `json:"epoch"`
	Root         ir.Hash        `json:"root"`
	Proof        ir.QuorumProof `json:"proof"`
	ReceiptCount int            `json:"receipt_count"`
}

// ReceiptRecord is one Merkle leaf as stored alongside its root.
type ReceiptRecord struct {
	Epoch     uint64     `json:"epoch"`
	LeafIndex int        `json:"leaf_index"`
	LeafHash  ir.Hash    `json:"leaf_hash"`
	Receipt   ir.Receipt `json:"receipt"`
}
