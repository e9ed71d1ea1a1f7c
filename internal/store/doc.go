// Package store provides SQLite-backed durable storage for the lockchain.
//
// The store is an append-mostly log with:
//   - Roots: one Merkle root and quorum proof per committed epoch
//   - Receipts: the receipts each root was built from, in leaf order
//
// # Keys
//
// Rows are keyed by epoch (cycle / 8), the commit boundary index. Writing a
// root for an epoch that already exists replaces it and its receipts in a
// single transaction, so a root is never stored without its leaves.
//
// # Deterministic Reads
//
// All multi-row reads use ORDER BY epoch ASC (and leaf_index ASC for
// receipts), so audits and verification see identical results every time.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
