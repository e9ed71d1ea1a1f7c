package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/cadence/internal/ir"
)

// GetRoot returns the root stored for an epoch.
// Returns ErrRootNotFound if the epoch was never persisted.
func (s *Store) GetRoot(ctx context.Context, epoch uint64) (RootEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT epoch, root, proof, receipt_count
		FROM lockchain_roots
		WHERE epoch = ?
	`, int64(epoch))

	entry, err := scanRoot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RootEntry{}, fmt.Errorf("%w: epoch %d", ErrRootNotFound, epoch)
	}
	return entry, err
}

// GetRootsRange returns all roots with from <= epoch <= to, ascending.
// Returns an empty slice (not nil) if none exist.
func (s *Store) GetRootsRange(ctx context.Context, from, to uint64) ([]RootEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT epoch, root, proof, receipt_count
		FROM lockchain_roots
		WHERE epoch >= ? AND epoch <= ?
		ORDER BY epoch ASC
	`, int64(from), int64(to))
	if err != nil {
		return nil, fmt.Errorf("query roots: %w", err)
	}
	defer rows.Close()

	entries := []RootEntry{}
	for rows.Next() {
		entry, err := scanRoot(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roots: %w", err)
	}
	return entries, nil
}

// LatestRoot returns the root with the highest epoch.
// Returns ErrRootNotFound on an empty store.
func (s *Store) LatestRoot(ctx context.Context) (RootEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT epoch, root, proof, receipt_count
		FROM lockchain_roots
		ORDER BY epoch DESC
		LIMIT 1
	`)

	entry, err := scanRoot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RootEntry{}, ErrRootNotFound
	}
	return entry, err
}

// RootCount returns the number of persisted roots.
func (s *Store) RootCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM lockchain_roots`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count roots: %w", err)
	}
	return n, nil
}

// VerifyContinuity reports whether every epoch in [from, to] has a root.
func (s *Store) VerifyContinuity(ctx context.Context, from, to uint64) (bool, error) {
	if to < from {
		return false, fmt.Errorf("verify continuity: invalid range %d..%d", from, to)
	}
	var n uint64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM lockchain_roots WHERE epoch >= ? AND epoch <= ?
	`, int64(from), int64(to)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("verify continuity: %w", err)
	}
	return n == to-from+1, nil
}

// ReadReceipts returns an epoch's receipts in Merkle leaf order.
func (s *Store) ReadReceipts(ctx context.Context, epoch uint64) ([]ReceiptRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT epoch, leaf_index, leaf_hash, body
		FROM lockchain_receipts
		WHERE epoch = ?
		ORDER BY leaf_index ASC
	`, int64(epoch))
	if err != nil {
		return nil, fmt.Errorf("query receipts: %w", err)
	}
	defer rows.Close()

	records := []ReceiptRecord{}
	for rows.Next() {
		var (
			ep   int64
			rec  ReceiptRecord
			leaf string
			body string
		)
		if err := rows.Scan(&ep, &rec.LeafIndex, &leaf, &body); err != nil {
			return nil, fmt.Errorf("scan receipt: %w", err)
		}
		rec.Epoch = uint64(ep)
		if rec.LeafHash, err = ir.ParseHash(leaf); err != nil {
			return nil, fmt.Errorf("scan receipt: %w", err)
		}
		if err := json.Unmarshal([]byte(body), &rec.Receipt); err != nil {
			return nil, fmt.Errorf("scan receipt: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate receipts: %w", err)
	}
	return records, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoot(row rowScanner) (RootEntry, error) {
	var (
		epoch int64
		root  string
		proof string
		entry RootEntry
	)
	if err := row.Scan(&epoch, &root, &proof, &entry.ReceiptCount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RootEntry{}, err
		}
		return RootEntry{}, fmt.Errorf("scan root: %w", err)
	}
	entry.Epoch = uint64(epoch)

	h, err := ir.ParseHash(root)
	if err != nil {
		return RootEntry{}, fmt.Errorf("scan root: %w", err)
	}
	entry.Root = h

	if err := json.Unmarshal([]byte(proof), &entry.Proof); err != nil {
		return RootEntry{}, fmt.Errorf("scan root: proof: %w", err)
	}
	return entry, nil
}
