package lockchain

import (
	"errors"
	"fmt"

	"github.com/roach88/cadence/internal/ir"
)

// ErrLeafOutOfRange is returned by Proof for an index past the last leaf.
var ErrLeafOutOfRange = errors.New("merkle leaf index out of range")

// MerkleTree accumulates receipt leaves for one cycle.
//
// Leaves are the canonical receipt hashes in insertion order. Interior
// nodes hash the concatenation of their children under DomainMerkle.
// A level with an odd node count duplicates its last node. The root of
// an empty tree is the zero hash.
//
// Thread-safety: not safe for concurrent use; Lockchain serializes access.
type MerkleTree struct {
	leaves []ir.Hash
}

// NewMerkleTree creates an empty tree.
func NewMerkleTree() *MerkleTree {
	return &MerkleTree{}
}

// AddReceipt appends the receipt's canonical hash as a leaf.
func (t *MerkleTree) AddReceipt(r ir.Receipt) {
	t.leaves = append(t.leaves, ir.MustReceiptHash(r))
}

// AddLeaf appends a precomputed leaf hash.
func (t *MerkleTree) AddLeaf(h ir.Hash) {
	t.leaves = append(t.leaves, h)
}

// Len returns the number of leaves.
func (t *MerkleTree) Len() int {
	return len(t.leaves)
}

// Root computes the current root.
func (t *MerkleTree) Root() ir.Hash {
	return RootOf(t.leaves)
}

// Reset drops all leaves, keeping the backing array.
func (t *MerkleTree) Reset() {
	clear(t.leaves)
	t.leaves = t.leaves[:0]
}

// ProofStep is one sibling on the path from a leaf to the root.
// Left is true when the sibling sits to the left of the running hash.
type ProofStep struct {
	Sibling ir.Hash `json:"sibling"`
	Left    bool    `json:"left"`
}

// Proof returns the inclusion path for the leaf at index.
func (t *MerkleTree) Proof(index int) ([]ProofStep, error) {
	if index < 0 || index >= len(t.leaves) {
		return nil, fmt.Errorf("%w: %d of %d", ErrLeafOutOfRange, index, len(t.leaves))
	}

	var steps []ProofStep
	level := append([]ir.Hash(nil), t.leaves...)
	for len(level) > 1 {
		level = padLevel(level)
		if index%2 == 0 {
			steps = append(steps, ProofStep{Sibling: level[index+1]})
		} else {
			steps = append(steps, ProofStep{Sibling: level[index-1], Left: true})
		}
		level = nextLevel(level)
		index /= 2
	}
	return steps, nil
}

// VerifyProof reports whether leaf hashes up to root along steps.
func VerifyProof(leaf ir.Hash, steps []ProofStep, root ir.Hash) bool {
	h := leaf
	for _, s := range steps {
		if s.Left {
			h = hashPair(s.Sibling, h)
		} else {
			h = hashPair(h, s.Sibling)
		}
	}
	return h == root
}

// RootOf computes the Merkle root over leaves without building a tree.
// Used to re-verify persisted epochs.
func RootOf(leaves []ir.Hash) ir.Hash {
	if len(leaves) == 0 {
		return ir.Hash{}
	}
	level := append([]ir.Hash(nil), leaves...)
	for len(level) > 1 {
		level = nextLevel(padLevel(level))
	}
	return level[0]
}

func padLevel(level []ir.Hash) []ir.Hash {
	if len(level)%2 == 1 {
		level = append(level, level[len(level)-1])
	}
	return level
}

func nextLevel(level []ir.Hash) []ir.Hash {
	next := make([]ir.Hash, len(level)/2)
	for i := range next {
		next[i] = hashPair(level[2*i], level[2*i+1])
	}
	return next
}

func hashPair(left, right ir.Hash) ir.Hash {
	var buf [64]byte
	copy(buf[:32], left[:])
	copy(buf[32:], right[:])
	return ir.HashWithDomain(ir.DomainMerkle, buf[:])
}
