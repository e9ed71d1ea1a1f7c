package ir

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainTerm    = "cadence/term/v1"
	DomainReceipt = "cadence/receipt/v1"
	DomainMerkle  = "cadence/merkle/v1"
	DomainVote    = "cadence/vote/v1"
	DomainSpan    = "cadence/span/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) Hash {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// HashWithDomain exposes domain-separated hashing to sibling packages
// (Merkle nodes, quorum signatures).
func HashWithDomain(domain string, data []byte) Hash {
	return hashWithDomain(domain, data)
}

// TermID maps an RDF term to its 64-bit column value.
// Terms are NFC normalized first so equivalent IRIs collide on purpose.
// Zero is reserved for "empty lane" and never returned.
func TermID(term string) uint64 {
	sum := hashWithDomain(DomainTerm, []byte(norm.NFC.String(term)))
	id := binary.BigEndian.Uint64(sum[:8])
	if id == 0 {
		return 1
	}
	return id
}

// SpanID derives a deterministic span identifier for one fiber execution.
// Replaying the same cadence yields the same spans.
func SpanID(shardID uint32, cycleID, seq uint64) uint64 {
	var buf [20]byte
	binary.BigEndian.PutUint32(buf[0:4], shardID)
	binary.BigEndian.PutUint64(buf[4:12], cycleID)
	binary.BigEndian.PutUint64(buf[12:20], seq)
	sum := hashWithDomain(DomainSpan, buf[:])
	return binary.BigEndian.Uint64(sum[:8])
}

// ReceiptHash computes the content hash of a receipt.
// This is the Merkle leaf value for provenance.
func ReceiptHash(r Receipt) (Hash, error) {
	canonical, err := MarshalCanonical(receiptObject(r))
	if err != nil {
		return Hash{}, fmt.Errorf("ReceiptHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainReceipt, canonical), nil
}

// MustReceiptHash is like ReceiptHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustReceiptHash(r Receipt) Hash {
	h, err := ReceiptHash(r)
	if err != nil {
		panic(err)
	}
	return h
}

// receiptObject is the canonical shape of a receipt. 64-bit identifiers are
// hex strings so no consumer has to reason about JSON number precision.
func receiptObject(r Receipt) map[string]any {
	return map[string]any{
		"id":           r.ID,
		"cycle_id":     fmt.Sprintf("%d", r.CycleID),
		"shard_id":     int64(r.ShardID),
		"hook_id":      int64(r.HookID),
		"ticks":        int64(r.Ticks),
		"actual_ticks": int64(r.ActualTicks),
		"lanes":        int64(r.Lanes),
		"span_id":      fmt.Sprintf("%016x", r.SpanID),
		"a_hash":       fmt.Sprintf("%016x", r.AHash),
		"version":      ReceiptVersion,
	}
}

// MarshalText implements encoding.TextMarshaler (lowercase hex).
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(h[:])), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := ParseHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// ParseHash decodes a 64-character hex string.
func ParseHash(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("parse hash: %w", err)
	}
	if len(b) != len(h) {
		return h, fmt.Errorf("parse hash: want %d bytes, got %d", len(h), len(b))
	}
	copy(h[:], b)
	return h, nil
}
