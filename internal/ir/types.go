package ir

import (
	"fmt"
)

// Cadence constants. Every hot-path operation is bounded by BeatWidth steps.
const (
	// BeatWidth is the number of ticks in one cycle (the Chatman constant).
	BeatWidth = 8

	// TickMask extracts the tick from a cycle.
	TickMask = BeatWidth - 1

	// MaxRunLen is the maximum number of triples admitted in one delta.
	MaxRunLen = 8

	// MaxShards bounds the shard count to the cadence width.
	MaxShards = BeatWidth
)

// RawTriple is the logical unit of work admitted by producers.
type RawTriple struct {
	Subject   string  `json:"subject" yaml:"subject"`
	Predicate string  `json:"predicate" yaml:"predicate"`
	Object    string  `json:"object" yaml:"object"`
	Graph     *string `json:"graph,omitempty" yaml:"graph,omitempty"`
}

// Columns is the struct-of-arrays form of a delta as stored in rings.
// S, P and O always have equal length; each entry is a term ID.
type Columns struct {
	S []uint64 `json:"s"`
	P []uint64 `json:"p"`
	O []uint64 `json:"o"`
}

// Len returns the number of rows (lanes).
func (c Columns) Len() int {
	return len(c.S)
}

// Clone returns a deep copy so ring slots never alias caller memory.
func (c Columns) Clone() Columns {
	return Columns{
		S: append([]uint64(nil), c.S...),
		P: append([]uint64(nil), c.P...),
		O: append([]uint64(nil), c.O...),
	}
}

// Batch is one admitted delta travelling through a ring slot.
// Triples keeps the original terms so a parked delta can be handed back
// to a warm-path consumer verbatim.
type Batch struct {
	Columns Columns     `json:"columns"`
	Triples []RawTriple `json:"triples"`
	CycleID uint64      `json:"cycle_id"`
}

// Len returns the number of rows in the batch.
func (b Batch) Len() int {
	return b.Columns.Len()
}

// Receipt records one successfully executed batch.
type Receipt struct {
	ID          string `json:"id"`
	CycleID     uint64 `json:"cycle_id"`
	ShardID     uint32 `json:"shard_id"`
	HookID      uint32 `json:"hook_id"`
	Ticks       uint32 `json:"ticks"`        // declared tick budget
	ActualTicks uint32 `json:"actual_ticks"` // ticks consumed
	Lanes       uint32 `json:"lanes"`
	SpanID      uint64 `json:"span_id"`
	AHash       uint64 `json:"a_hash"`
}

// ReceiptIDFor derives the receipt ID from its span.
func ReceiptIDFor(spanID uint64) string {
	return fmt.Sprintf("receipt_%016x", spanID)
}

// ParkCause explains why a delta was parked instead of completed.
type ParkCause int

const (
	// ParkCauseTickBudgetExceeded covers batches whose cost exceeded the
	// fiber budget.
	ParkCauseTickBudgetExceeded ParkCause = iota + 1

	// ParkCauseRingOverflow covers completed batches that found their
	// assertion ring slot full.
	ParkCauseRingOverflow
)

// String returns the wire name of the cause.
func (c ParkCause) String() string {
	switch c {
	case ParkCauseTickBudgetExceeded:
		return "tick_budget_exceeded"
	case ParkCauseRingOverflow:
		return "ring_overflow"
	default:
		return fmt.Sprintf("park_cause(%d)", int(c))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c ParkCause) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *ParkCause) UnmarshalText(text []byte) error {
	switch string(text) {
	case "tick_budget_exceeded":
		*c = ParkCauseTickBudgetExceeded
	case "ring_overflow":
		*c = ParkCauseRingOverflow
	default:
		return fmt.Errorf("unknown park cause %q", string(text))
	}
	return nil
}

// ParkedDelta is a delta deferred to the warm path.
type ParkedDelta struct {
	ID       string      `json:"id"`
	Delta    []RawTriple `json:"delta"`
	Receipt  Receipt     `json:"receipt"`
	Cause    ParkCause   `json:"cause"`
	CycleID  uint64      `json:"cycle_id"`
	Tick     uint64      `json:"tick"`
	DomainID int         `json:"domain_id"`
}

// Vote is one peer's signature over a (root, cycle) pair.
type Vote struct {
	ID        string `json:"id"`
	PeerID    string `json:"peer_id"`
	CycleID   uint64 `json:"cycle_id"`
	Signature string `json:"signature"`
}

// QuorumProof is the set of votes that ratified a Merkle root.
type QuorumProof struct {
	CycleID   uint64 `json:"cycle_id"`
	Root      string `json:"root"`
	Threshold int    `json:"threshold"`
	Votes     []Vote `json:"votes"`
}

// VoteCount returns the number of collected votes.
func (p QuorumProof) VoteCount() int {
	return len(p.Votes)
}

// Hash is a 32-byte SHA-256 digest.
type Hash [32]byte

// String returns the lowercase hex encoding.
func (h Hash) String() string {
	return fmt.Sprintf("%x", h[:])
}

// IsZero reports whether h is the all-zero hash.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// ProvenanceRoot is a committed cycle's Merkle root and its proof.
type ProvenanceRoot struct {
	CycleID uint64      `json:"cycle_id"`
	Root    Hash        `json:"root"`
	Proof   QuorumProof `json:"proof"`
}
