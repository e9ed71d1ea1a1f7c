package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/cadence/internal/ir"
)

// PersistRoot stores an epoch's Merkle root, quorum proof and leaves.
//
// Uses ON CONFLICT(epoch) DO UPDATE: persisting the same epoch twice
// replaces the earlier root and its receipts atomically.
// receipts must be in Merkle leaf order.
func (s *Store) PersistRoot(ctx context.Context, epoch uint64, root ir.Hash, proof ir.QuorumProof, receipts []ir.Receipt) error {
	proofJSON, err := json.Marshal(proof)
	if err != nil {
		return fmt.Errorf("persist root: marshal proof: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("persist root: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO lockchain_roots (epoch, root, proof, receipt_count, vote_count)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(epoch) DO UPDATE SET
			root = excluded.root,
			proof = excluded.proof,
			receipt_count = excluded.receipt_count,
			vote_count = excluded.vote_count
	`,
		int64(epoch),
		root.String(),
		string(proofJSON),
		len(receipts),
		proof.VoteCount(),
	)
	if err != nil {
		return fmt.Errorf("persist root: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM lockchain_receipts WHERE epoch = ?`, int64(epoch)); err != nil {
		return fmt.Errorf("persist root: clear receipts: %w", err)
	}

	for i, r := range receipts {
		leaf, err := ir.ReceiptHash(r)
		if err != nil {
			return fmt.Errorf("persist root: receipt %d: %w", i, err)
		}
		body, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("persist root: receipt %d: %w", i, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO lockchain_receipts
			(epoch, leaf_index, receipt_id, cycle_id, shard_id, leaf_hash, body)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			int64(epoch),
			i,
			r.ID,
			int64(r.CycleID),
			int64(r.ShardID),
			leaf.String(),
			string(body),
		)
		if err != nil {
			return fmt.Errorf("persist root: receipt %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("persist root: commit: %w", err)
	}
	return nil
}
