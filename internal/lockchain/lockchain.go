package lockchain

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/cadence/internal/ir"
	"github.com/roach88/cadence/internal/store"
)

// Config describes a lockchain deployment.
type Config struct {
	Peers           []string
	QuorumThreshold int
	SelfPeerID      string
	StoragePath     string
}

// Lockchain is the reference Sink: Merkle tree, quorum, SQLite storage.
//
// A Lockchain without a quorum manager produces an unsigned proof; one
// without a store skips persistence. Both are useful in tests.
//
// Thread-safety: all methods are safe for concurrent use.
type Lockchain struct {
	mu       sync.Mutex
	tree     *MerkleTree
	receipts []ir.Receipt
	quorum   *QuorumManager
	store    *store.Store
	logger   *slog.Logger
}

// Option configures a Lockchain.
type Option func(*Lockchain)

// WithQuorum sets the quorum manager.
func WithQuorum(q *QuorumManager) Option {
	return func(l *Lockchain) {
		l.quorum = q
	}
}

// WithStore sets the root storage. The Lockchain takes ownership and
// closes it on Close.
func WithStore(s *store.Store) Option {
	return func(l *Lockchain) {
		l.store = s
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Lockchain) {
		l.logger = logger
	}
}

// New creates a Lockchain from options.
func New(opts ...Option) *Lockchain {
	l := &Lockchain{
		tree:   NewMerkleTree(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Open builds a Lockchain with in-process voters for cfg.Peers and
// SQLite storage at cfg.StoragePath.
func Open(cfg Config, logger *slog.Logger) (*Lockchain, error) {
	if logger == nil {
		logger = slog.Default()
	}
	q, err := NewQuorumManager(cfg.SelfPeerID, LocalPeers(cfg.Peers), cfg.QuorumThreshold, logger)
	if err != nil {
		return nil, err
	}
	s, err := store.Open(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("open lockchain storage: %w", err)
	}
	return New(WithQuorum(q), WithStore(s), WithLogger(logger)), nil
}

// AddReceipt appends a receipt leaf.
func (l *Lockchain) AddReceipt(r ir.Receipt) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tree.AddReceipt(r)
	l.receipts = append(l.receipts, r)
}

// ComputeRoot returns the Merkle root over the receipts added so far.
func (l *Lockchain) ComputeRoot() ir.Hash {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tree.Root()
}

// AchieveConsensus collects a quorum proof for root.
func (l *Lockchain) AchieveConsensus(ctx context.Context, root ir.Hash, cycleID uint64) (ir.QuorumProof, error) {
	if l.quorum == nil {
		return ir.QuorumProof{CycleID: cycleID, Root: root.String()}, nil
	}
	return l.quorum.AchieveConsensus(ctx, root, cycleID)
}

// PersistRoot writes the root, proof and current leaves to storage.
func (l *Lockchain) PersistRoot(ctx context.Context, cycleID uint64, root ir.Hash, proof ir.QuorumProof) error {
	if l.store == nil {
		return nil
	}
	l.mu.Lock()
	receipts := append([]ir.Receipt(nil), l.receipts...)
	l.mu.Unlock()

	if err := l.store.PersistRoot(ctx, cycleID, root, proof, receipts); err != nil {
		return err
	}
	l.logger.Debug("lockchain root persisted",
		"epoch", cycleID,
		"root", root.String(),
		"receipts", len(receipts),
		"votes", proof.VoteCount())
	return nil
}

// Reset clears the tree for the next cycle.
func (l *Lockchain) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tree.Reset()
	clear(l.receipts)
	l.receipts = l.receipts[:0]
}

// Store returns the underlying storage, or nil.
func (l *Lockchain) Store() *store.Store {
	return l.store
}

// Close closes storage.
func (l *Lockchain) Close() error {
	if l.store == nil {
		return nil
	}
	return l.store.Close()
}
