// Package ring provides the per-domain, per-tick bounded queues that sit
// between admission and execution.
//
// A ring of capacity N (a power of two, at least 8) is split into eight
// tick slots of N/8 rows each. A row is one triple lane; a delta of k
// triples occupies k rows of the slot matching its tick. Slots are
// independent: saturating tick 3 never affects tick 4.
//
// Concurrency: any number of producers may enqueue while a single consumer
// dequeues. Each slot is guarded by its own mutex, held only for a bounded
// copy of at most eight rows. Enqueue never waits for space; a full slot is
// reported as ErrFull immediately so the caller can apply backpressure.
package ring
