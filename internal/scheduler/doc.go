// Package scheduler implements the 8-beat admission and execution cadence.
//
// Producers admit deltas into per-domain rings with EnqueueDelta. A single
// driving goroutine calls AdvanceBeat: each beat enters the next cycle,
// executes the deltas waiting in that tick's slot on their shard's fiber,
// and on the pulse (tick 0) commits the cycle's receipts to the
// provenance sink. Overflow is parked, never dropped.
//
// Driver wraps AdvanceBeat in a paced loop for long-running processes.
package scheduler
