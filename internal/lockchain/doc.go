// Package lockchain records verifiable provenance for committed cycles.
//
// The scheduler talks to provenance only through the Sink interface.
// NopSink disables provenance. Lockchain is the reference sink: receipts
// become leaves of a SHA-256 Merkle tree, the root is signed by a quorum
// of peers, and root plus proof are persisted to SQLite via the store
// package, keyed by epoch (cycle / 8).
package lockchain
